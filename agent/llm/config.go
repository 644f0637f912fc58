package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/MazarSayed/stock-platform/agent/contract"
	openrouterx "github.com/MazarSayed/stock-platform/pkg/openrouter"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" default:"openai/gpt-4o"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.3"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"60s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`
	MaxToolSteps       int           `envconfig:"MAX_TOOL_STEPS" split_words:"true" default:"12"`

	SupervisorModel       string  `envconfig:"SUPERVISOR_MODEL" split_words:"true"`
	FAQModel              string  `envconfig:"FAQ_MODEL" split_words:"true"`
	TaskModel             string  `envconfig:"TASK_MODEL" split_words:"true"`
	MarketModel           string  `envconfig:"MARKET_MODEL" split_words:"true"`
	SupervisorTemperature float32 `envconfig:"SUPERVISOR_TEMPERATURE" split_words:"true" default:"0"`
	FAQTemperature        float32 `envconfig:"FAQ_TEMPERATURE" split_words:"true" default:"-1"`
	TaskTemperature       float32 `envconfig:"TASK_TEMPERATURE" split_words:"true" default:"-1"`
	MarketTemperature     float32 `envconfig:"MARKET_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

// OpenRouterFor resolves the model settings for one agent. A per-agent
// model or a non-negative per-agent temperature overrides the default.
func (c Config) OpenRouterFor(agent contractx.AgentName) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	override := func(m string, t float32) {
		if v := strings.TrimSpace(m); v != "" {
			modelName = v
		}
		if t >= 0 {
			temp = t
		}
	}

	switch agent {
	case contractx.AgentSupervisor:
		override(c.SupervisorModel, c.SupervisorTemperature)
	case contractx.AgentFAQ:
		override(c.FAQModel, c.FAQTemperature)
	case contractx.AgentTask:
		override(c.TaskModel, c.TaskTemperature)
	case contractx.AgentMarketInsights:
		override(c.MarketModel, c.MarketTemperature)
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}

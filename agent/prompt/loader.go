package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/supervisor.txt
	supervisorRaw string

	//go:embed template/faq_agent.txt
	faqRaw string

	//go:embed template/task_agent.txt
	taskRaw string

	//go:embed template/market_insights_agent.txt
	marketInsightsRaw string
)

// PromptSet holds the system prompt of every agent.
type PromptSet struct {
	Supervisor     string
	FAQ            string
	Task           string
	MarketInsights string
}

// LoadPromptSet returns the embedded prompts, trimmed.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Supervisor:     strings.TrimSpace(supervisorRaw),
		FAQ:            strings.TrimSpace(faqRaw),
		Task:           strings.TrimSpace(taskRaw),
		MarketInsights: strings.TrimSpace(marketInsightsRaw),
	}
}

package websearch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

type TavilyConfig struct {
	APIKey     string        `envconfig:"API_KEY" split_words:"true"`
	BaseURL    string        `envconfig:"BASE_URL" split_words:"true" default:"https://api.tavily.com"`
	MaxResults int           `envconfig:"MAX_RESULTS" split_words:"true" default:"5"`
	Timeout    time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"15s"`
}

type Tavily struct {
	client     *resty.Client
	apiKey     string
	maxResults int
}

type tavilyRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

type tavilyError struct {
	Detail any `json:"detail"`
}

func NewTavily(cfg TavilyConfig) (*Tavily, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("tavily api key is required")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = "https://api.tavily.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}

	client := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &Tavily{client: client, apiKey: strings.TrimSpace(cfg.APIKey), maxResults: maxResults}, nil
}

func (t *Tavily) Search(ctx context.Context, query string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	var out tavilyResponse
	var apiErr tavilyError
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(tavilyRequest{APIKey: t.apiKey, Query: query, MaxResults: t.maxResults, SearchDepth: "basic"}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/search")
	if err != nil {
		return nil, fmt.Errorf("tavily search: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("tavily search: status %d: %v", resp.StatusCode(), apiErr.Detail)
	}

	results := make([]Result, 0, len(out.Results))
	for _, r := range out.Results {
		results = append(results, Result{Title: r.Title, URL: r.URL, Content: r.Content})
	}
	return results, nil
}

package tool

import (
	"context"
	"errors"
	"strings"

	einotool "github.com/cloudwego/eino/components/tool"
	toolutils "github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"github.com/MazarSayed/stock-platform/agent/rag"
	"github.com/MazarSayed/stock-platform/pkg/websearch"
)

const (
	ToolFAQSearch      = "faq_rag_tool"
	ToolMarketAnalysis = "market_analysis_rag_tool"
	ToolWebSearch      = "web_search_tool"
)

type QueryInput struct {
	Query string `json:"query"`
}

func queryParams(desc string) *schema.ParamsOneOf {
	return schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
		"query": {Type: schema.String, Desc: desc, Required: true},
	})
}

func newDocumentSearchTool(searcher rag.Searcher, name string, desc string, docType string) einotool.InvokableTool {
	return toolutils.NewTool(
		&schema.ToolInfo{
			Name:        name,
			Desc:        desc,
			ParamsOneOf: queryParams("Search query written as a question or keywords"),
		},
		func(ctx context.Context, in QueryInput) (string, error) {
			if strings.TrimSpace(in.Query) == "" {
				return errorOutput("query is required"), nil
			}
			out, err := rag.Retrieve(ctx, searcher, in.Query, docType, rag.DefaultTopK)
			if errors.Is(err, rag.ErrEmptyQuery) {
				return "No relevant information found.", nil
			}
			if err != nil {
				log.Error().Err(err).Str("tool", name).Msg("document search failed")
				return errorOutput("document search is unavailable right now"), nil
			}
			return out, nil
		},
	)
}

// FAQSearchTool searches FAQ and user guide documents.
func FAQSearchTool(searcher rag.Searcher) einotool.InvokableTool {
	return newDocumentSearchTool(searcher, ToolFAQSearch,
		"Search FAQ and user guide documents about platform features, account management and trading rules.",
		rag.DocTypeFAQ)
}

// MarketAnalysisTool searches the market analysis reports.
func MarketAnalysisTool(searcher rag.Searcher) einotool.InvokableTool {
	return newDocumentSearchTool(searcher, ToolMarketAnalysis,
		"Search market analysis reports for sector trends, company analysis and market outlook.",
		rag.DocTypeMarketAnalysis)
}

// WebSearchTool searches the web for recent market news. A nil searcher
// yields a tool that reports search as unavailable.
func WebSearchTool(searcher websearch.Searcher) einotool.InvokableTool {
	return toolutils.NewTool(
		&schema.ToolInfo{
			Name:        ToolWebSearch,
			Desc:        "Search the web for recent stock market news and information.",
			ParamsOneOf: queryParams("Search query, e.g. 'AAPL earnings this week'"),
		},
		func(ctx context.Context, in QueryInput) (string, error) {
			if searcher == nil {
				return "Web search is not configured.", nil
			}
			if strings.TrimSpace(in.Query) == "" {
				return errorOutput("query is required"), nil
			}
			results, err := searcher.Search(ctx, in.Query)
			if err != nil {
				log.Error().Err(err).Msg("web search failed")
				return errorOutput("web search is unavailable right now"), nil
			}
			return websearch.Format(results), nil
		},
	)
}

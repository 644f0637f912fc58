package tool

import (
	"fmt"

	einotool "github.com/cloudwego/eino/components/tool"

	contractx "github.com/MazarSayed/stock-platform/agent/contract"
	"github.com/MazarSayed/stock-platform/agent/guardrail"
	"github.com/MazarSayed/stock-platform/agent/rag"
	"github.com/MazarSayed/stock-platform/pkg/websearch"
)

// Deps are the collaborators tools call out to. Web and Alerts are optional.
type Deps struct {
	Guard     *guardrail.ToolGuardrails
	Documents rag.Searcher
	Web       websearch.Searcher
	Alerts    AlertPublisher
}

// BuildForAgent returns the tool set of one specialist.
func BuildForAgent(agent contractx.AgentName, deps Deps) ([]einotool.BaseTool, error) {
	switch agent {
	case contractx.AgentFAQ:
		if deps.Documents == nil {
			return nil, fmt.Errorf("%w: document searcher is required for %s", contractx.ErrValidation, agent)
		}
		return []einotool.BaseTool{FAQSearchTool(deps.Documents)}, nil
	case contractx.AgentTask:
		return TradingTools(deps.Guard, deps.Alerts), nil
	case contractx.AgentMarketInsights:
		if deps.Documents == nil {
			return nil, fmt.Errorf("%w: document searcher is required for %s", contractx.ErrValidation, agent)
		}
		return []einotool.BaseTool{MarketAnalysisTool(deps.Documents), WebSearchTool(deps.Web)}, nil
	default:
		return nil, fmt.Errorf("%w: no tools for agent=%s", contractx.ErrValidation, agent)
	}
}

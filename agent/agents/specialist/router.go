package specialist

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"

	contractx "github.com/MazarSayed/stock-platform/agent/contract"
)

type routerImpl struct {
	runner compose.Runnable[map[string]any, routerLLMOutput]
}

type routerLLMOutput struct {
	Next string `json:"next"`
}

var _ contractx.Decider = (*routerImpl)(nil)

func newRouter(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*routerImpl, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: supervisor", contractx.ErrPromptMissing)
	}
	runner, err := compileRouterGraph(ctx, chatModel, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: compile router graph: %v", contractx.ErrModelInvoke, err)
	}
	return &routerImpl{runner: runner}, nil
}

// Decide asks the model to pick among options. The raw choice is returned
// as-is; closing it over the option set is the supervisor's job.
func (r *routerImpl) Decide(ctx context.Context, history []contractx.Message, options []contractx.Route) (contractx.Route, error) {
	if len(history) == 0 {
		return "", fmt.Errorf("%w: router needs conversation history", contractx.ErrValidation)
	}

	names := make([]string, 0, len(options))
	for _, o := range options {
		names = append(names, string(o))
	}

	out, err := r.runner.Invoke(ctx, map[string]any{
		"history": toSchemaMessages(history),
		"options": strings.Join(names, ", "),
	})
	if err != nil {
		return "", fmt.Errorf("%w: router invoke: %v", contractx.ErrModelInvoke, err)
	}

	return contractx.Route(strings.TrimSpace(out.Next)), nil
}

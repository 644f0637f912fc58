package specialist

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"

	contractx "github.com/MazarSayed/stock-platform/agent/contract"
	llmx "github.com/MazarSayed/stock-platform/agent/llm"
	promptx "github.com/MazarSayed/stock-platform/agent/prompt"
	toolx "github.com/MazarSayed/stock-platform/agent/tool"
)

type registryImpl struct {
	router      contractx.Decider
	specialists map[contractx.AgentName]contractx.Specialist
}

func (r *registryImpl) Router() contractx.Decider {
	return r.router
}

func (r *registryImpl) Specialist(name contractx.AgentName) (contractx.Specialist, bool) {
	sp, ok := r.specialists[name]
	return sp, ok
}

type modelFactory func(ctx context.Context, agent contractx.AgentName) (einomodel.ToolCallingChatModel, error)

// NewRegistry builds the router and every specialist against OpenRouter.
func NewRegistry(ctx context.Context, cfg llmx.Config, deps toolx.Deps) (contractx.Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	models := func(ctx context.Context, agent contractx.AgentName) (einomodel.ToolCallingChatModel, error) {
		modelCfg := cfg.OpenRouterFor(agent)
		m, err := modelCfg.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: create %s model: %v", contractx.ErrModelInvoke, agent, err)
		}
		return m, nil
	}

	return buildRegistry(ctx, models, promptx.LoadPromptSet(), deps, cfg.MaxToolSteps)
}

func buildRegistry(
	ctx context.Context,
	models modelFactory,
	prompts promptx.PromptSet,
	deps toolx.Deps,
	maxToolSteps int,
) (*registryImpl, error) {
	routerModel, err := models(ctx, contractx.AgentSupervisor)
	if err != nil {
		return nil, err
	}
	router, err := newRouter(ctx, routerModel, prompts.Supervisor)
	if err != nil {
		return nil, err
	}

	systemPrompts := map[contractx.AgentName]string{
		contractx.AgentFAQ:            prompts.FAQ,
		contractx.AgentTask:           prompts.Task,
		contractx.AgentMarketInsights: prompts.MarketInsights,
	}

	specialists := make(map[contractx.AgentName]contractx.Specialist, len(contractx.Members))
	for _, name := range contractx.Members {
		chatModel, err := models(ctx, name)
		if err != nil {
			return nil, err
		}
		tools, err := toolx.BuildForAgent(name, deps)
		if err != nil {
			return nil, err
		}
		worker, err := newWorker(ctx, name, chatModel, systemPrompts[name], tools, maxToolSteps)
		if err != nil {
			return nil, err
		}
		specialists[name] = worker
	}

	return &registryImpl{router: router, specialists: specialists}, nil
}

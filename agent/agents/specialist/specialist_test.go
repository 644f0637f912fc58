package specialist

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/MazarSayed/stock-platform/agent/contract"
	"github.com/MazarSayed/stock-platform/agent/guardrail"
	promptx "github.com/MazarSayed/stock-platform/agent/prompt"
	"github.com/MazarSayed/stock-platform/agent/rag"
	toolx "github.com/MazarSayed/stock-platform/agent/tool"
)

type fakeToolCallingModel struct {
	mu        sync.Mutex
	responses []*schema.Message
	err       error
	idx       int
	inputs    [][]*schema.Message
}

func (f *fakeToolCallingModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	if f.idx >= len(f.responses) {
		return nil, errors.New("no fake response left")
	}
	msg := f.responses[f.idx]
	f.idx++
	return msg, nil
}

func (f *fakeToolCallingModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (f *fakeToolCallingModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	return f, nil
}

func history() []contractx.Message {
	return []contractx.Message{
		contractx.UserMessage("How do margin accounts work?"),
		contractx.SpecialistMessage(contractx.AgentFAQ, "Margin lets you borrow funds."),
		contractx.UserMessage("Buy 10 shares of AAPL"),
	}
}

func TestRouterDecideParsesFencedJSON(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{
		responses: []*schema.Message{
			schema.AssistantMessage("```json\n{\"next\": \"task_agent\"}\n```", nil),
		},
	}

	router, err := newRouter(context.Background(), fake, "Pick one of: {options}")
	if err != nil {
		t.Fatalf("newRouter() error = %v", err)
	}

	got, err := router.Decide(context.Background(), history(), []contractx.Route{contractx.RouteFinish, "faq_agent", "task_agent"})
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if got != contractx.Route(contractx.AgentTask) {
		t.Fatalf("Decide() = %q, want task_agent", got)
	}

	input := fake.inputs[0]
	if len(input) != 4 {
		t.Fatalf("model input = %d messages, want system + 3", len(input))
	}
	if input[0].Role != schema.System || input[0].Content != "Pick one of: FINISH, faq_agent, task_agent" {
		t.Fatalf("system message = %#v", input[0])
	}
	if input[2].Role != schema.Assistant || input[2].Name != "faq_agent" {
		t.Fatalf("specialist message = %#v", input[2])
	}
}

func TestRouterDecidePassesUnknownChoiceThrough(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{
		responses: []*schema.Message{schema.AssistantMessage(`{"next":"trading_bot"}`, nil)},
	}
	router, err := newRouter(context.Background(), fake, "Pick one of: {options}")
	if err != nil {
		t.Fatalf("newRouter() error = %v", err)
	}

	got, err := router.Decide(context.Background(), history(), nil)
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if got != "trading_bot" {
		t.Fatalf("Decide() = %q", got)
	}
}

func TestRouterDecideModelFailure(t *testing.T) {
	t.Parallel()

	router, err := newRouter(context.Background(), &fakeToolCallingModel{err: errors.New("503")}, "Pick one of: {options}")
	if err != nil {
		t.Fatalf("newRouter() error = %v", err)
	}

	_, err = router.Decide(context.Background(), history(), nil)
	if !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("Decide() error = %v, want ErrModelInvoke", err)
	}
}

func TestRouterDecideInvalidJSON(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{
		responses: []*schema.Message{schema.AssistantMessage("I think the task agent", nil)},
	}
	router, err := newRouter(context.Background(), fake, "Pick one of: {options}")
	if err != nil {
		t.Fatalf("newRouter() error = %v", err)
	}

	if _, err := router.Decide(context.Background(), history(), nil); err == nil {
		t.Fatal("expected error but got nil")
	}
}

func TestNewRouterRequiresPrompt(t *testing.T) {
	t.Parallel()

	_, err := newRouter(context.Background(), &fakeToolCallingModel{}, "  ")
	if !errors.Is(err, contractx.ErrPromptMissing) {
		t.Fatalf("newRouter() error = %v, want ErrPromptMissing", err)
	}
}

func TestWorkerRunsToolLoop(t *testing.T) {
	t.Parallel()

	guard := guardrail.NewToolGuardrails(nil)
	tools, err := toolx.BuildForAgent(contractx.AgentTask, toolx.Deps{Guard: guard})
	if err != nil {
		t.Fatalf("BuildForAgent() error = %v", err)
	}

	fake := &fakeToolCallingModel{
		responses: []*schema.Message{
			{
				Role: schema.Assistant,
				ToolCalls: []schema.ToolCall{
					{
						ID:   "call_1",
						Type: "function",
						Function: schema.FunctionCall{
							Name:      toolx.ToolBuyStock,
							Arguments: `{"symbol":"AAPL","quantity":10}`,
						},
					},
				},
			},
			schema.AssistantMessage("Done. I bought 10 shares of AAPL at market.", nil),
		},
	}

	worker, err := newWorker(context.Background(), contractx.AgentTask, fake, "task prompt", tools, 0)
	if err != nil {
		t.Fatalf("newWorker() error = %v", err)
	}

	ctx := contractx.WithSessionID(context.Background(), "session-1")
	answer, err := worker.Run(ctx, history())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if answer != "Done. I bought 10 shares of AAPL at market." {
		t.Fatalf("Run() = %q", answer)
	}

	count, err := guard.OrderCount(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("OrderCount() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("order count = %d, want 1", count)
	}

	if len(fake.inputs) != 2 {
		t.Fatalf("model called %d times, want 2", len(fake.inputs))
	}
	first := fake.inputs[0]
	if first[0].Role != schema.System || first[0].Content != "task prompt" {
		t.Fatalf("first model message = %#v", first[0])
	}
	second := fake.inputs[1]
	last := second[len(second)-1]
	if last.Role != schema.Tool || !strings.Contains(last.Content, "Order placed: Buy 10 shares of AAPL") {
		t.Fatalf("tool result message = %#v", last)
	}
}

func TestWorkerModelFailure(t *testing.T) {
	t.Parallel()

	worker, err := newWorker(context.Background(), contractx.AgentFAQ, &fakeToolCallingModel{err: errors.New("boom")}, "faq prompt",
		[]einotool.BaseTool{toolx.FAQSearchTool(rag.NewKeywordSearcher(nil))}, 0)
	if err != nil {
		t.Fatalf("newWorker() error = %v", err)
	}

	if _, err := worker.Run(context.Background(), history()); !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("Run() error = %v, want ErrModelInvoke", err)
	}
}

func TestBuildRegistry(t *testing.T) {
	t.Parallel()

	models := func(ctx context.Context, agent contractx.AgentName) (einomodel.ToolCallingChatModel, error) {
		return &fakeToolCallingModel{}, nil
	}
	deps := toolx.Deps{
		Guard:     guardrail.NewToolGuardrails(nil),
		Documents: rag.NewKeywordSearcher(nil),
	}

	reg, err := buildRegistry(context.Background(), models, promptx.LoadPromptSet(), deps, 5)
	if err != nil {
		t.Fatalf("buildRegistry() error = %v", err)
	}
	if reg.Router() == nil {
		t.Fatal("router must not be nil")
	}
	for _, name := range contractx.Members {
		if sp, ok := reg.Specialist(name); !ok || sp == nil {
			t.Fatalf("specialist %s missing", name)
		}
	}
	if _, ok := reg.Specialist(contractx.AgentSupervisor); ok {
		t.Fatal("supervisor is not a specialist")
	}
}

func TestBuildRegistryModelError(t *testing.T) {
	t.Parallel()

	models := func(ctx context.Context, agent contractx.AgentName) (einomodel.ToolCallingChatModel, error) {
		return nil, contractx.ErrModelInvoke
	}
	_, err := buildRegistry(context.Background(), models, promptx.LoadPromptSet(), toolx.Deps{}, 0)
	if !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("buildRegistry() error = %v, want ErrModelInvoke", err)
	}
}

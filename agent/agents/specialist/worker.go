package specialist

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/MazarSayed/stock-platform/agent/contract"
)

const defaultMaxToolSteps = 12

// workerImpl runs a react loop: model, tools, model, until the model
// answers without tool calls.
type workerImpl struct {
	name  contractx.AgentName
	agent *react.Agent
}

var _ contractx.Specialist = (*workerImpl)(nil)

func newWorker(
	ctx context.Context,
	name contractx.AgentName,
	chatModel einomodel.ToolCallingChatModel,
	systemPrompt string,
	tools []einotool.BaseTool,
	maxStep int,
) (*workerImpl, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: %s", contractx.ErrPromptMissing, name)
	}
	if maxStep <= 0 {
		maxStep = defaultMaxToolSteps
	}

	agent, err := react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: chatModel,
		ToolsConfig: compose.ToolsNodeConfig{
			Tools: tools,
		},
		MessageModifier: func(_ context.Context, input []*schema.Message) []*schema.Message {
			out := make([]*schema.Message, 0, len(input)+1)
			out = append(out, schema.SystemMessage(systemPrompt))
			return append(out, input...)
		},
		MaxStep: maxStep,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create react agent for %s: %v", contractx.ErrModelInvoke, name, err)
	}

	return &workerImpl{name: name, agent: agent}, nil
}

func (w *workerImpl) Run(ctx context.Context, history []contractx.Message) (string, error) {
	if len(history) == 0 {
		return "", fmt.Errorf("%w: %s needs conversation history", contractx.ErrValidation, w.name)
	}

	msg, err := w.agent.Generate(ctx, toSchemaMessages(history))
	if err != nil {
		return "", fmt.Errorf("%w: %s invoke: %v", contractx.ErrModelInvoke, w.name, err)
	}
	if msg == nil {
		return "", nil
	}
	return strings.TrimSpace(msg.Content), nil
}

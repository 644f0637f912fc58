package specialist

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

func compileRouterGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
) (compose.Runnable[map[string]any, routerLLMOutput], error) {
	runner, err := compileStructuredLLMGraph[routerLLMOutput](ctx, chatModel, systemPrompt, "router.decision_graph")
	if err != nil {
		return nil, fmt.Errorf("compile router graph: %w", err)
	}
	return runner, nil
}

// compileStructuredLLMGraph renders the system prompt over the "history"
// messages and decodes the model's JSON reply into T.
func compileStructuredLLMGraph[T any](
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
	graphName string,
) (compose.Runnable[map[string]any, T], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.MessagesPlaceholder("history", false),
	)

	parser := schema.NewMessageJSONParser[T](&schema.MessageJSONParseConfig{
		ParseFrom: schema.MessageParseFromContent,
	})

	graph := compose.NewGraph[map[string]any, T]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add structured prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add structured model node: %w", err)
	}
	if err := graph.AddLambdaNode("strip_fence", compose.InvokableLambda(stripCodeFence)); err != nil {
		return nil, fmt.Errorf("add structured fence node: %w", err)
	}
	if err := graph.AddLambdaNode("parse_json", compose.MessageParser(parser)); err != nil {
		return nil, fmt.Errorf("add structured parser node: %w", err)
	}

	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add structured edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add structured edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", "strip_fence"); err != nil {
		return nil, fmt.Errorf("add structured edge model->fence: %w", err)
	}
	if err := graph.AddEdge("strip_fence", "parse_json"); err != nil {
		return nil, fmt.Errorf("add structured edge fence->parse: %w", err)
	}
	if err := graph.AddEdge("parse_json", compose.END); err != nil {
		return nil, fmt.Errorf("add structured edge parse->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName(graphName))
	if err != nil {
		return nil, fmt.Errorf("compile structured graph: %w", err)
	}
	return runner, nil
}

// stripCodeFence removes a ```json fence some models wrap around JSON.
func stripCodeFence(_ context.Context, msg *schema.Message) (*schema.Message, error) {
	if msg == nil {
		return nil, fmt.Errorf("model returned no message")
	}
	content := strings.TrimSpace(msg.Content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		if nl := strings.IndexByte(content, '\n'); nl >= 0 {
			content = content[nl+1:]
		}
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}
	out := *msg
	out.Content = strings.TrimSpace(content)
	return &out, nil
}

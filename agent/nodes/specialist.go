package orchestratornode

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/MazarSayed/stock-platform/agent/contract"
)

// RunSpecialist hands the full history to the specialist and appends its
// answer tagged with the specialist's name. The answer is also copied into
// Response for the supervisor's finish rule.
func RunSpecialist(
	ctx context.Context,
	in *contractx.ConversationState,
	name contractx.AgentName,
	specialist contractx.Specialist,
) (*contractx.ConversationState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: conversation state is nil", contractx.ErrValidation)
	}
	if specialist == nil {
		return nil, fmt.Errorf("%w: specialist=%s is not registered", contractx.ErrValidation, name)
	}

	history := append([]contractx.Message(nil), in.Messages...)
	answer, err := specialist.Run(ctx, history)
	if err != nil {
		return nil, fmt.Errorf("specialist=%s: %w", name, err)
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = completionFallback(name)
	}

	in.Messages = append(in.Messages, contractx.SpecialistMessage(name, answer))
	in.Response = answer
	return in, nil
}

func completionFallback(name contractx.AgentName) string {
	switch name {
	case contractx.AgentFAQ:
		return "FAQ response completed."
	case contractx.AgentTask:
		return "Task completed."
	case contractx.AgentMarketInsights:
		return "Market insights analysis completed."
	default:
		return "Response completed."
	}
}

package orchestratornode

import (
	"fmt"

	contractx "github.com/MazarSayed/stock-platform/agent/contract"
)

// NextNode maps the supervisor's decision to a graph node key. finishKey is
// the graph's terminal key.
func NextNode(in *contractx.ConversationState, finishKey string) (string, error) {
	if in == nil {
		return "", fmt.Errorf("%w: conversation state is nil", contractx.ErrValidation)
	}
	if in.Next == contractx.RouteFinish {
		return finishKey, nil
	}
	if name, ok := in.Next.Agent(); ok {
		return string(name), nil
	}
	return "", fmt.Errorf("%w: unroutable next=%q", contractx.ErrValidation, in.Next)
}

// TurnAnswer returns the specialist answer produced after index from, if any.
func TurnAnswer(in *contractx.ConversationState, from int) (contractx.Message, bool) {
	if in == nil {
		return contractx.Message{}, false
	}
	for i := len(in.Messages) - 1; i >= from && i >= 0; i-- {
		if in.Messages[i].IsSpecialistAnswer() {
			return in.Messages[i], true
		}
	}
	return contractx.Message{}, false
}

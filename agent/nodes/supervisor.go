package orchestratornode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/MazarSayed/stock-platform/agent/contract"
	"github.com/MazarSayed/stock-platform/pkg/metrics"
)

// Supervise is the router transition, evaluated once per visit.
//
// If the latest message is a specialist answer the turn is finished and
// Response is finalized (existing value, else the latest specialist answer).
// Otherwise the decider picks the next specialist; anything outside members,
// including FINISH, is coerced to members[0] so every turn delegates at
// least once.
func Supervise(
	ctx context.Context,
	in *contractx.ConversationState,
	decider contractx.Decider,
	members []contractx.AgentName,
) (*contractx.ConversationState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: conversation state is nil", contractx.ErrValidation)
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: supervisor has no members", contractx.ErrValidation)
	}

	if last, ok := in.Last(); ok && last.IsSpecialistAnswer() {
		in.Next = contractx.RouteFinish
		if in.Response == "" {
			if answer, ok := in.LastSpecialistAnswer(); ok {
				in.Response = answer.Content
			}
		}
		return in, nil
	}

	if decider == nil {
		return nil, fmt.Errorf("%w: decider is required", contractx.ErrValidation)
	}

	choice, err := decider.Decide(ctx, in.Messages, Options(members))
	if err != nil {
		return nil, err
	}

	next, coerced := coerceRoute(choice, members)
	if coerced {
		log.Debug().Str("choice", string(choice)).Str("fallback", string(next)).Msg("router choice coerced")
	}
	metrics.RecordRoute(string(next), coerced)

	in.Next = next
	in.Response = ""
	return in, nil
}

// Options is the closed label set offered to the decision function.
func Options(members []contractx.AgentName) []contractx.Route {
	out := make([]contractx.Route, 0, len(members)+1)
	out = append(out, contractx.RouteFinish)
	for _, m := range members {
		out = append(out, contractx.Route(m))
	}
	return out
}

func coerceRoute(choice contractx.Route, members []contractx.AgentName) (contractx.Route, bool) {
	for _, m := range members {
		if contractx.Route(m) == choice {
			return choice, false
		}
	}
	return contractx.Route(members[0]), true
}

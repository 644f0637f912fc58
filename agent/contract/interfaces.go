package contract

import "context"

// Decider is the structured routing call used by the supervisor. It must
// return one of the enumerated labels or an error; coercion of anything else
// happens in the supervisor node.
type Decider interface {
	Decide(ctx context.Context, history []Message, options []Route) (Route, error)
}

// Specialist runs its own tool loop over the full history and returns one
// final answer.
type Specialist interface {
	Run(ctx context.Context, history []Message) (string, error)
}

type Registry interface {
	Router() Decider
	Specialist(name AgentName) (Specialist, bool)
}

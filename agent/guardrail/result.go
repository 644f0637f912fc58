// Package guardrail holds the input, output and tool policy checks that wrap
// the orchestration loop.
package guardrail

// Result is the verdict of one check. Blocked implies !Passed, and a blocked
// result never carries sanitized text.
type Result struct {
	Passed          bool    `json:"passed"`
	Reason          string  `json:"reason,omitempty"`
	SanitizedOutput *string `json:"sanitized_output,omitempty"`
	Blocked         bool    `json:"blocked"`
}

func Pass() Result {
	return Result{Passed: true}
}

func Fail(reason string) Result {
	return Result{Reason: reason}
}

// Block fails the check and marks the content as unusable.
func Block(reason string) Result {
	return Result{Reason: reason, Blocked: true}
}

// WithSanitized attaches a cleaned replacement. It is a no-op on blocked
// results.
func (r Result) WithSanitized(text string) Result {
	if r.Blocked {
		return r
	}
	r.SanitizedOutput = &text
	return r
}

// Sanitized returns the replacement text if the check produced one.
func (r Result) Sanitized() (string, bool) {
	if r.SanitizedOutput == nil {
		return "", false
	}
	return *r.SanitizedOutput, true
}

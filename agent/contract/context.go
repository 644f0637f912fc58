package contract

import "context"

type sessionIDKey struct{}

// WithSessionID stores the caller's session id so tools deep inside a
// specialist loop can key per-session policy.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, sessionID)
}

func SessionIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(sessionIDKey{}).(string)
	return id
}

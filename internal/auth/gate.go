package auth

import "context"

// Gate answers whether the caller behind ctx is signed in.
// The place flows consult it before touching a store.
type Gate interface {
	IsAuthenticated(ctx context.Context) bool
}

// ContextGate trusts the user id RequireAuth/OptionalAuth put in the context.
type ContextGate struct{}

func (ContextGate) IsAuthenticated(ctx context.Context) bool {
	_, ok := UserIDFromContext(ctx)
	return ok
}

// GateFunc adapts a plain function to Gate.
type GateFunc func(ctx context.Context) bool

func (f GateFunc) IsAuthenticated(ctx context.Context) bool { return f(ctx) }

// WithUserID returns a copy of ctx carrying userID, as RequireAuth does.
// Used by non-HTTP entry points (placectl) and tests.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

package core

import "context"

// Caller is the identity carried by the internal API token.
type Caller struct {
	// FromID is the bot framework user id of the caller (activity.from.id).
	FromID string

	// ServiceURL is the bot framework service URL of the caller's tenant.
	ServiceURL string
}

type callerKey struct{}

func WithCaller(ctx context.Context, c *Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFromContext returns the caller attached by the auth middleware, or nil.
func CallerFromContext(ctx context.Context) *Caller {
	c, _ := ctx.Value(callerKey{}).(*Caller)
	return c
}

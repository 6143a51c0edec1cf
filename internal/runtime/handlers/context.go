package handlers

import (
	"context"

	"github.com/relaykit/relay/internal/runtime/component"
)

type ctxKey int

const componentCtxKey ctxKey = iota

// WithComponent stores the dispatching component identity in the context.
// The dispatcher sets it before handler invocation so handlers and stages can
// tell which component they run under.
func WithComponent(ctx context.Context, identity component.Identity) context.Context {
	return context.WithValue(ctx, componentCtxKey, identity)
}

// ComponentFromContext returns the dispatching component identity, if set.
func ComponentFromContext(ctx context.Context) (component.Identity, bool) {
	identity, ok := ctx.Value(componentCtxKey).(component.Identity)
	return identity, ok
}

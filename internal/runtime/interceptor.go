package runtime

import (
	"context"
	"fmt"
	"sort"

	"github.com/relaykit/relay/internal/runtime/envelope"
)

// Next advances the interceptor chain. The terminal Next invokes the handler
// resolved for the envelope's name.
type Next func(ctx context.Context, env *envelope.Envelope) (*envelope.Envelope, error)

// Interceptor is a single pipeline stage. Process may forward the envelope
// (possibly replaced) by calling next, or short-circuit by returning without
// calling it. Returning (nil, nil) means the envelope was consumed: buffered,
// filtered, or handled without a reply.
type Interceptor interface {
	Process(ctx context.Context, env *envelope.Envelope, next Next) (*envelope.Envelope, error)
}

// InterceptorFunc adapts a plain function to the Interceptor interface.
type InterceptorFunc func(ctx context.Context, env *envelope.Envelope, next Next) (*envelope.Envelope, error)

func (f InterceptorFunc) Process(ctx context.Context, env *envelope.Envelope, next Next) (*envelope.Envelope, error) {
	return f(ctx, env, next)
}

// ChainEntry is one registered stage of an interceptor chain. Entries execute
// in ascending Priority order; entries with equal priority keep their
// registration order. The Factory runs once per dispatcher construction.
type ChainEntry struct {
	Priority int
	Name     string
	Factory  func() Interceptor
}

// Stage priorities for the built-in interceptors. The namespace is a flat
// integer range; applications slot custom stages anywhere between.
const (
	PriorityLogging    = 100
	PriorityMetrics    = 200
	PriorityTracing    = 300
	PriorityValidation = 400
	PriorityBuffer     = 1000
	PriorityFilter     = 2000
)

// composeChain sorts the entries, instantiates each interceptor, and folds
// them right-to-left into a single function whose tail is terminal.
func composeChain(entries []ChainEntry, terminal Next) (Next, error) {
	sorted := make([]ChainEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})

	next := terminal
	for i := len(sorted) - 1; i >= 0; i-- {
		entry := sorted[i]
		if entry.Factory == nil {
			return nil, fmt.Errorf("relay: chain entry %q has no factory", entry.Name)
		}
		interceptor := entry.Factory()
		if interceptor == nil {
			return nil, fmt.Errorf("relay: chain entry %q produced a nil interceptor", entry.Name)
		}
		inner := next
		next = func(ctx context.Context, env *envelope.Envelope) (*envelope.Envelope, error) {
			return interceptor.Process(ctx, env, inner)
		}
	}
	return next, nil
}

package runtime

import (
	"context"
	"time"

	"github.com/relaykit/relay/internal/runtime/component"
	"github.com/relaykit/relay/internal/runtime/envelope"
	errspkg "github.com/relaykit/relay/internal/runtime/errors"
	handlerpkg "github.com/relaykit/relay/internal/runtime/handlers"
)

// Dispatcher routes envelopes for one component through its interceptor chain
// to the handler registered under the envelope's message name. The chain is
// composed once at construction; handler resolution happens per dispatch.
type Dispatcher struct {
	identity   component.Identity
	registry   *handlerpkg.Registry
	head       Next
	hooks      DispatchHooks
	stats      *DispatchStats
	classifier ErrorClassifier
}

// DispatcherOption customises a Dispatcher at construction.
type DispatcherOption func(*Dispatcher)

// WithDispatchHooks merges lifecycle hooks into the dispatcher. Repeated use
// chains the hooks in registration order.
func WithDispatchHooks(hooks DispatchHooks) DispatcherOption {
	return func(d *Dispatcher) {
		d.hooks = d.hooks.Merge(hooks)
	}
}

// WithDispatchStats attaches a stats container updated on every dispatch.
func WithDispatchStats(stats *DispatchStats) DispatcherOption {
	return func(d *Dispatcher) {
		d.stats = stats
	}
}

// WithErrorClassifier overrides how dispatch errors are categorised in stats.
func WithErrorClassifier(classifier ErrorClassifier) DispatcherOption {
	return func(d *Dispatcher) {
		d.classifier = classifier
	}
}

// NewDispatcher composes the interceptor chain over the registry's handlers.
// The dispatcher adopts the registry's component identity.
func NewDispatcher(registry *handlerpkg.Registry, entries []ChainEntry, opts ...DispatcherOption) (*Dispatcher, error) {
	if registry == nil {
		return nil, errspkg.ErrRegistryRequired
	}

	d := &Dispatcher{
		identity: registry.Component(),
		registry: registry,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	if d.classifier == nil {
		d.classifier = defaultErrorClassifier
	}

	head, err := composeChain(entries, d.resolveAndInvoke)
	if err != nil {
		return nil, err
	}
	d.head = head
	return d, nil
}

// resolveAndInvoke is the chain terminal. Lookup happens here rather than at
// construction so the chain stays valid for every name the registry serves.
func (d *Dispatcher) resolveAndInvoke(ctx context.Context, env *envelope.Envelope) (*envelope.Envelope, error) {
	handler, ok := d.registry.Lookup(env.Name())
	if !ok {
		return nil, &errspkg.HandlerNotFoundError{Component: string(d.identity), Name: env.Name()}
	}
	return handler(ctx, env)
}

// Component returns the identity this dispatcher serves.
func (d *Dispatcher) Component() component.Identity {
	return d.identity
}

// Registry returns the handler registry backing this dispatcher.
func (d *Dispatcher) Registry() *handlerpkg.Registry {
	return d.registry
}

// Stats returns the attached stats container, or nil when none was configured.
func (d *Dispatcher) Stats() *DispatchStats {
	return d.stats
}

// Dispatch sends env through the interceptor chain to its handler. A nil
// response with a nil error means an interceptor dropped the envelope or the
// handler had nothing to reply; both are normal completions.
func (d *Dispatcher) Dispatch(ctx context.Context, env *envelope.Envelope) (*envelope.Envelope, error) {
	if env == nil {
		return nil, errspkg.ErrEnvelopeRequired
	}

	ctx = handlerpkg.WithComponent(ctx, d.identity)
	started := time.Now()
	dc := dispatchContextFor(ctx, d.identity, env, started)

	if d.hooks.OnStart != nil {
		d.hooks.OnStart(dc)
	}
	if d.stats != nil {
		d.stats.onDispatchStart()
	}

	response, err := d.head(ctx, env)
	dc.Duration = time.Since(started)

	if d.stats != nil {
		dropped := err == nil && response == nil
		d.stats.onDispatchFinish(env.Name(), dc.Duration, dropped, err, d.classifier)
	}

	if err != nil {
		if d.hooks.OnError != nil {
			d.hooks.OnError(dc, err)
		}
		return nil, err
	}

	if d.hooks.OnDone != nil {
		d.hooks.OnDone(dc, response)
	}
	return response, nil
}

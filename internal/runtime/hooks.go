package runtime

import (
	"context"
	"time"

	"github.com/relaykit/relay/internal/runtime/component"
	"github.com/relaykit/relay/internal/runtime/envelope"
	loggingpkg "github.com/relaykit/relay/internal/runtime/logging"
)

// DispatchContext provides information about a dispatch to hooks.
type DispatchContext struct {
	// Component is the identity of the dispatching component.
	Component component.Identity
	// Name is the message name of the dispatched envelope.
	Name string
	// EnvelopeID is the unique identifier of the envelope.
	EnvelopeID string
	// CorrelationID groups the dispatch with the request that caused it.
	CorrelationID string
	// StreamID and StreamVersion carry ordering headers when present.
	StreamID      string
	StreamVersion int64
	// Context is the context the envelope was dispatched with.
	Context context.Context
	// StartedAt is when the dispatch entered the interceptor chain.
	StartedAt time.Time
	// Duration is how long the dispatch took (only set in OnDone and OnError).
	Duration time.Duration
}

// DispatchHooks defines callbacks for dispatch lifecycle events.
// All hooks are optional - nil hooks are simply not called.
type DispatchHooks struct {
	// OnStart is called when an envelope enters the interceptor chain.
	OnStart func(ctx DispatchContext)

	// OnDone is called when a dispatch completes without error. The response
	// is nil when an interceptor dropped the envelope or the handler had
	// nothing to reply.
	OnDone func(ctx DispatchContext, response *envelope.Envelope)

	// OnError is called when the chain or the handler returns an error.
	OnError func(ctx DispatchContext, err error)
}

// Merge combines two DispatchHooks, creating a new DispatchHooks that calls
// both. The hooks from 'other' are called after the hooks from 'h'.
func (h DispatchHooks) Merge(other DispatchHooks) DispatchHooks {
	return DispatchHooks{
		OnStart: chainStartHooks(h.OnStart, other.OnStart),
		OnDone:  chainDoneHooks(h.OnDone, other.OnDone),
		OnError: chainErrorHooks(h.OnError, other.OnError),
	}
}

func chainStartHooks(a, b func(DispatchContext)) func(DispatchContext) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx DispatchContext) {
		a(ctx)
		b(ctx)
	}
}

func chainDoneHooks(a, b func(DispatchContext, *envelope.Envelope)) func(DispatchContext, *envelope.Envelope) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx DispatchContext, response *envelope.Envelope) {
		a(ctx, response)
		b(ctx, response)
	}
}

func chainErrorHooks(a, b func(DispatchContext, error)) func(DispatchContext, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx DispatchContext, err error) {
		a(ctx, err)
		b(ctx, err)
	}
}

func dispatchContextFor(ctx context.Context, identity component.Identity, env *envelope.Envelope, startedAt time.Time) DispatchContext {
	dc := DispatchContext{
		Component:     identity,
		Name:          env.Name(),
		EnvelopeID:    env.ID(),
		CorrelationID: env.CorrelationID(),
		Context:       ctx,
		StartedAt:     startedAt,
	}
	if env.Ordered() {
		dc.StreamID = env.StreamID()
		dc.StreamVersion, _ = env.Version()
	}
	return dc
}

// LoggingHooks returns pre-built hooks that log dispatch lifecycle events.
func LoggingHooks(logger loggingpkg.ServiceLogger) DispatchHooks {
	if logger == nil {
		logger = loggingpkg.Nop()
	}
	return DispatchHooks{
		OnStart: func(ctx DispatchContext) {
			logger.Debug("Dispatch started", loggingpkg.LogFields{
				"component":      ctx.Component,
				"name":           ctx.Name,
				"envelope_id":    ctx.EnvelopeID,
				"correlation_id": ctx.CorrelationID,
			})
		},
		OnDone: func(ctx DispatchContext, response *envelope.Envelope) {
			fields := loggingpkg.LogFields{
				"component":   ctx.Component,
				"name":        ctx.Name,
				"envelope_id": ctx.EnvelopeID,
				"duration_ms": ctx.Duration.Milliseconds(),
			}
			if response == nil {
				logger.Debug("Dispatch dropped envelope", fields)
				return
			}
			logger.Debug("Dispatch completed", fields)
		},
		OnError: func(ctx DispatchContext, err error) {
			logger.Error("Dispatch failed", err, loggingpkg.LogFields{
				"component":   ctx.Component,
				"name":        ctx.Name,
				"envelope_id": ctx.EnvelopeID,
				"duration_ms": ctx.Duration.Milliseconds(),
			})
		},
	}
}

// MetricsHooks returns pre-built hooks that feed dispatch counters.
func MetricsHooks(onStart, onDone, onError func(component, name string)) DispatchHooks {
	return DispatchHooks{
		OnStart: func(ctx DispatchContext) {
			if onStart != nil {
				onStart(string(ctx.Component), ctx.Name)
			}
		},
		OnDone: func(ctx DispatchContext, response *envelope.Envelope) {
			if onDone != nil {
				onDone(string(ctx.Component), ctx.Name)
			}
		},
		OnError: func(ctx DispatchContext, err error) {
			if onError != nil {
				onError(string(ctx.Component), ctx.Name)
			}
		},
	}
}

// AlertingHooks returns pre-built hooks that trigger alerts on dispatch errors.
func AlertingHooks(alertFunc func(ctx DispatchContext, err error)) DispatchHooks {
	return DispatchHooks{
		OnError: alertFunc,
	}
}

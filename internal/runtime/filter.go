package runtime

import (
	"context"

	"github.com/relaykit/relay/internal/runtime/envelope"
	handlerpkg "github.com/relaykit/relay/internal/runtime/handlers"
	loggingpkg "github.com/relaykit/relay/internal/runtime/logging"
)

// EventFilterInterceptor drops envelopes that no registered handler wants:
// either nothing is registered under the name, or the handler's opt-out
// predicate rejects this particular envelope. Dropped envelopes resolve as
// (nil, nil) so the transport acks them.
type EventFilterInterceptor struct {
	registry *handlerpkg.Registry
	logger   loggingpkg.ServiceLogger
}

// NewEventFilter constructs the filtering stage over the given registry.
func NewEventFilter(registry *handlerpkg.Registry, logger loggingpkg.ServiceLogger) *EventFilterInterceptor {
	if logger == nil {
		logger = loggingpkg.Nop()
	}
	return &EventFilterInterceptor{registry: registry, logger: logger}
}

func (f *EventFilterInterceptor) Process(ctx context.Context, env *envelope.Envelope, next Next) (*envelope.Envelope, error) {
	if _, ok := f.registry.Lookup(env.Name()); !ok {
		f.logger.Debug("Dropping event without handler", loggingpkg.LogFields{
			"name":      env.Name(),
			"component": f.registry.Component(),
		})
		return nil, nil
	}

	if filter, ok := f.registry.FilterFor(env.Name()); ok && !filter(env) {
		f.logger.Debug("Dropping event rejected by handler filter", loggingpkg.LogFields{
			"name":        env.Name(),
			"component":   f.registry.Component(),
			"envelope_id": env.ID(),
		})
		return nil, nil
	}

	return next(ctx, env)
}

package runtime

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/relaykit/relay/internal/runtime/envelope"
	errspkg "github.com/relaykit/relay/internal/runtime/errors"
	handlerpkg "github.com/relaykit/relay/internal/runtime/handlers"
	loggingpkg "github.com/relaykit/relay/internal/runtime/logging"
	"github.com/relaykit/relay/internal/runtime/schema"
)

// LoggingStage logs every envelope entering the chain and its outcome.
func LoggingStage(logger loggingpkg.ServiceLogger) ChainEntry {
	if logger == nil {
		logger = loggingpkg.Nop()
	}
	return ChainEntry{
		Priority: PriorityLogging,
		Name:     "logging",
		Factory: func() Interceptor {
			return InterceptorFunc(func(ctx context.Context, env *envelope.Envelope, next Next) (*envelope.Envelope, error) {
				logger.Debug("Dispatching envelope", loggingpkg.LogFields{
					"envelope_id":    env.ID(),
					"name":           env.Name(),
					"correlation_id": env.CorrelationID(),
				})

				out, err := next(ctx, env)
				if err != nil {
					logger.Error("Dispatch failed", err, loggingpkg.LogFields{
						"envelope_id": env.ID(),
						"name":        env.Name(),
					})
					return out, err
				}
				if out == nil {
					logger.Debug("Dispatch dropped envelope", loggingpkg.LogFields{
						"envelope_id": env.ID(),
						"name":        env.Name(),
					})
				}
				return out, nil
			})
		},
	}
}

// MetricsStage records dispatch counts and latency. The component label comes
// from the dispatch context, so one stage serves every chain.
func MetricsStage(m *DispatchMetrics) ChainEntry {
	return ChainEntry{
		Priority: PriorityMetrics,
		Name:     "metrics",
		Factory: func() Interceptor {
			return InterceptorFunc(func(ctx context.Context, env *envelope.Envelope, next Next) (*envelope.Envelope, error) {
				started := time.Now()
				out, err := next(ctx, env)

				identity, _ := handlerpkg.ComponentFromContext(ctx)
				outcome := OutcomeOK
				switch {
				case err != nil:
					outcome = OutcomeError
				case out == nil:
					outcome = OutcomeDropped
				}
				m.ObserveDispatch(string(identity), env.Name(), outcome, time.Since(started))
				return out, err
			})
		},
	}
}

// TracingStage wraps each dispatch in an OpenTelemetry span.
func TracingStage() ChainEntry {
	return ChainEntry{
		Priority: PriorityTracing,
		Name:     "tracing",
		Factory: func() Interceptor {
			return InterceptorFunc(func(ctx context.Context, env *envelope.Envelope, next Next) (*envelope.Envelope, error) {
				tracer := otel.Tracer("relay")
				ctx, span := tracer.Start(ctx, "DispatchEnvelope")
				defer span.End()

				identity, _ := handlerpkg.ComponentFromContext(ctx)
				attrs := []attribute.KeyValue{
					attribute.String("relay.component", string(identity)),
					attribute.String("relay.envelope_id", env.ID()),
					attribute.String("relay.message_name", env.Name()),
				}
				if env.Ordered() {
					version, _ := env.Version()
					attrs = append(attrs,
						attribute.String("relay.stream_id", env.StreamID()),
						attribute.Int64("relay.stream_version", version),
					)
				}
				span.SetAttributes(attrs...)

				out, err := next(ctx, env)
				if err != nil {
					span.RecordError(err)
				}
				return out, err
			})
		},
	}
}

// ValidationStage rejects envelopes whose payload fails schema validation.
// Names without a registered schema pass through.
func ValidationStage(schemas schema.Registry) ChainEntry {
	return ChainEntry{
		Priority: PriorityValidation,
		Name:     "validation",
		Factory: func() Interceptor {
			return InterceptorFunc(func(ctx context.Context, env *envelope.Envelope, next Next) (*envelope.Envelope, error) {
				if schemas == nil {
					return next(ctx, env)
				}
				result := schemas.Validate(env.Name(), env.Payload())
				if !result.Valid {
					return nil, validationError(env.Name(), result)
				}
				return next(ctx, env)
			})
		},
	}
}

// BufferStage installs an existing buffer so every chain composition for the
// component shares its stream state.
func BufferStage(buffer *EventBufferInterceptor) ChainEntry {
	return ChainEntry{
		Priority: PriorityBuffer,
		Name:     "event_buffer",
		Factory:  func() Interceptor { return buffer },
	}
}

// FilterStage installs a handler-presence filter.
func FilterStage(filter *EventFilterInterceptor) ChainEntry {
	return ChainEntry{
		Priority: PriorityFilter,
		Name:     "event_filter",
		Factory:  func() Interceptor { return filter },
	}
}

// validationError converts a failed schema result into the dispatch error type.
func validationError(name string, result schema.ValidationResult) error {
	failures := make([]errspkg.FieldError, 0, len(result.Errors))
	for _, e := range result.Errors {
		failures = append(failures, errspkg.FieldError{Field: e.Field, Message: e.Message})
	}
	return &errspkg.EnvelopeValidationError{Name: name, Failures: failures}
}

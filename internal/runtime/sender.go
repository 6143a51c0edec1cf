package runtime

import (
	"context"

	"github.com/relaykit/relay/internal/runtime/component"
	"github.com/relaykit/relay/internal/runtime/envelope"
	errspkg "github.com/relaykit/relay/internal/runtime/errors"
	loggingpkg "github.com/relaykit/relay/internal/runtime/logging"
	"github.com/relaykit/relay/internal/runtime/schema"
)

// DefaultSystemUserID stamps envelopes sent through the admin facades when no
// system user is configured.
const DefaultSystemUserID = "system"

// ValidationStrategy decides what happens to an envelope that failed schema
// validation. Returning (nil, nil) drops the envelope, returning an envelope
// proceeds with it (annotated or not), returning an error fails the call.
type ValidationStrategy func(ctx context.Context, env *envelope.Envelope, result schema.ValidationResult) (*envelope.Envelope, error)

// FailValidationStrategy rejects invalid envelopes with
// *EnvelopeValidationError. This is the default.
func FailValidationStrategy() ValidationStrategy {
	return func(_ context.Context, env *envelope.Envelope, result schema.ValidationResult) (*envelope.Envelope, error) {
		return nil, validationError(env.Name(), result)
	}
}

// DropValidationStrategy logs invalid envelopes and drops them without error.
func DropValidationStrategy(logger loggingpkg.ServiceLogger) ValidationStrategy {
	if logger == nil {
		logger = loggingpkg.Nop()
	}
	return func(_ context.Context, env *envelope.Envelope, result schema.ValidationResult) (*envelope.Envelope, error) {
		fields := loggingpkg.LogFields{
			"envelope_id": env.ID(),
			"name":        env.Name(),
		}
		if len(result.Errors) > 0 {
			fields["first_violation"] = result.Errors[0].Field + ": " + result.Errors[0].Message
		}
		logger.Info("Dropping envelope that failed validation", fields)
		return nil, nil
	}
}

// SenderConfig wires a Sender or Requester. Either Dispatcher, or Cache plus
// Component, selects where envelopes go; Schemas is always required.
type SenderConfig struct {
	Dispatcher *Dispatcher
	Cache      *DispatcherCache
	Component  component.Identity

	Schemas  schema.Registry
	Strategy ValidationStrategy

	// SystemUserID is stamped by SendAsAdmin/RequestAsAdmin. Empty means
	// DefaultSystemUserID.
	SystemUserID string
}

type facadeCore struct {
	dispatcher *Dispatcher
	cache      *DispatcherCache
	identity   component.Identity
	schemas    schema.Registry
	strategy   ValidationStrategy
	systemUser string
}

func newFacadeCore(cfg SenderConfig) (facadeCore, error) {
	if cfg.Schemas == nil {
		return facadeCore{}, errspkg.ErrSchemaRegistryRequired
	}

	core := facadeCore{
		dispatcher: cfg.Dispatcher,
		cache:      cfg.Cache,
		identity:   cfg.Component,
		schemas:    cfg.Schemas,
		strategy:   cfg.Strategy,
		systemUser: cfg.SystemUserID,
	}

	switch {
	case core.dispatcher != nil:
		core.identity = core.dispatcher.Component()
	case core.cache != nil:
		if !core.identity.Valid() {
			return facadeCore{}, &errspkg.ComponentIdentityMissingError{Context: "sender configuration"}
		}
	default:
		return facadeCore{}, errspkg.ErrDispatcherRequired
	}

	if core.strategy == nil {
		core.strategy = FailValidationStrategy()
	}
	if core.systemUser == "" {
		core.systemUser = DefaultSystemUserID
	}
	return core, nil
}

func (c *facadeCore) resolve() (*Dispatcher, error) {
	if c.dispatcher != nil {
		return c.dispatcher, nil
	}
	return c.cache.DispatcherFor(c.identity)
}

// dispatch validates env and routes it. A (nil, nil) return means the
// validation strategy or an interceptor dropped the envelope.
func (c *facadeCore) dispatch(ctx context.Context, env *envelope.Envelope) (*envelope.Envelope, error) {
	if env == nil {
		return nil, errspkg.ErrEnvelopeRequired
	}

	result := c.schemas.Validate(env.Name(), env.Payload())
	if !result.Valid {
		replacement, err := c.strategy(ctx, env, result)
		if err != nil {
			return nil, err
		}
		if replacement == nil {
			return nil, nil
		}
		env = replacement
	}

	dispatcher, err := c.resolve()
	if err != nil {
		return nil, err
	}
	return dispatcher.Dispatch(ctx, env)
}

// Sender is the fire-and-forget facade for commands and events.
type Sender struct {
	core facadeCore
}

// NewSender builds a Sender from cfg.
func NewSender(cfg SenderConfig) (*Sender, error) {
	core, err := newFacadeCore(cfg)
	if err != nil {
		return nil, err
	}
	return &Sender{core: core}, nil
}

// Component returns the identity envelopes are dispatched under.
func (s *Sender) Component() component.Identity {
	return s.core.identity
}

// Send validates env and dispatches it, discarding any handler response.
func (s *Sender) Send(ctx context.Context, env *envelope.Envelope) error {
	_, err := s.core.dispatch(ctx, env)
	return err
}

// SendAsAdmin sends a copy of env stamped with the configured system user id.
// The caller's envelope is never mutated.
func (s *Sender) SendAsAdmin(ctx context.Context, env *envelope.Envelope) error {
	if env == nil {
		return errspkg.ErrEnvelopeRequired
	}
	return s.Send(ctx, env.WithUserID(s.core.systemUser))
}

// Requester is the request/response facade for queries.
type Requester struct {
	core facadeCore
}

// NewRequester builds a Requester from cfg.
func NewRequester(cfg SenderConfig) (*Requester, error) {
	core, err := newFacadeCore(cfg)
	if err != nil {
		return nil, err
	}
	return &Requester{core: core}, nil
}

// Component returns the identity envelopes are dispatched under.
func (r *Requester) Component() component.Identity {
	return r.core.identity
}

// Request validates env, dispatches it and validates a non-nil response
// against the response schema registered for the response's own name.
func (r *Requester) Request(ctx context.Context, env *envelope.Envelope) (*envelope.Envelope, error) {
	response, err := r.core.dispatch(ctx, env)
	if err != nil || response == nil {
		return nil, err
	}

	result := r.core.schemas.ValidateResponse(response.Name(), response.Payload())
	if !result.Valid {
		return r.core.strategy(ctx, response, result)
	}
	return response, nil
}

// RequestAsAdmin requests with a copy of env stamped with the configured
// system user id. The caller's envelope is never mutated.
func (r *Requester) RequestAsAdmin(ctx context.Context, env *envelope.Envelope) (*envelope.Envelope, error) {
	if env == nil {
		return nil, errspkg.ErrEnvelopeRequired
	}
	return r.Request(ctx, env.WithUserID(r.core.systemUser))
}

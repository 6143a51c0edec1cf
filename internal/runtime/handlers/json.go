package handlers

import (
	"context"

	"github.com/relaykit/relay/internal/runtime/envelope"
	errspkg "github.com/relaykit/relay/internal/runtime/errors"
)

// JSONFunc is a handler over a decoded JSON payload. T is the payload struct
// type; the envelope is passed alongside for metadata access and reply
// building.
type JSONFunc[T any] func(ctx context.Context, payload *T, env *envelope.Envelope) (*envelope.Envelope, error)

// RegisterJSONHandler registers a handler that decodes the envelope payload
// into T before invoking fn. Decode failures surface as *PayloadTypeError
// without invoking fn.
func RegisterJSONHandler[T any](reg *Registry, name string, fn JSONFunc[T], opts ...Option) error {
	if reg == nil {
		return errspkg.ErrRegistryRequired
	}
	if fn == nil {
		return errspkg.ErrHandlerRequired
	}

	return reg.Register(name, func(ctx context.Context, env *envelope.Envelope) (*envelope.Envelope, error) {
		payload := new(T)
		if err := env.Bind(payload); err != nil {
			return nil, err
		}
		return fn(ctx, payload, env)
	}, opts...)
}

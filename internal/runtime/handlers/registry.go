package handlers

import (
	"context"
	"fmt"
	"sort"

	"github.com/relaykit/relay/internal/runtime/component"
	"github.com/relaykit/relay/internal/runtime/envelope"
	errspkg "github.com/relaykit/relay/internal/runtime/errors"
)

// Handler processes one envelope and optionally returns a response envelope.
// A nil response with a nil error means the message was consumed without reply.
type Handler func(ctx context.Context, env *envelope.Envelope) (*envelope.Envelope, error)

// EventFilter is the opt-out predicate a handler can attach at registration.
// Returning false tells the filtering stage to drop the envelope before the
// handler runs.
type EventFilter func(env *envelope.Envelope) bool

// Option customises a handler registration.
type Option func(*registration)

// WithEventFilter attaches the opt-out predicate consumed by the event
// filtering stage.
func WithEventFilter(filter EventFilter) Option {
	return func(r *registration) {
		r.filter = filter
	}
}

type registration struct {
	handler Handler
	filter  EventFilter
}

// Registry maps message names to handlers for a single component identity.
// Populate it during startup; it is read-only once dispatching begins and
// must not be mutated concurrently with lookups.
type Registry struct {
	identity component.Identity
	entries  map[string]registration
}

// NewRegistry creates an empty handler registry scoped to the given identity.
func NewRegistry(identity component.Identity) *Registry {
	return &Registry{
		identity: identity,
		entries:  map[string]registration{},
	}
}

// Component returns the identity this registry is scoped to.
func (r *Registry) Component() component.Identity {
	return r.identity
}

// Register binds a handler to a message name.
func (r *Registry) Register(name string, handler Handler, opts ...Option) error {
	if name == "" {
		return errspkg.ErrHandlerNameRequired
	}
	if handler == nil {
		return errspkg.ErrHandlerRequired
	}
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("relay: handler %q already registered for %s", name, r.identity)
	}

	reg := registration{handler: handler}
	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}
	r.entries[name] = reg
	return nil
}

// MustRegister is Register that panics on error. Intended for startup wiring
// where a registration failure is a programming mistake.
func (r *Registry) MustRegister(name string, handler Handler, opts ...Option) {
	if err := r.Register(name, handler, opts...); err != nil {
		panic(err)
	}
}

// Lookup resolves the handler registered under name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	reg, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return reg.handler, true
}

// FilterFor returns the opt-out predicate registered under name, if any.
func (r *Registry) FilterFor(name string) (EventFilter, bool) {
	reg, ok := r.entries[name]
	if !ok || reg.filter == nil {
		return nil, false
	}
	return reg.filter, true
}

// Names lists the registered message names in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Package envelope defines the immutable message unit routed through relay:
// metadata (id, name, correlation, causation, user, stream position) plus a
// raw JSON payload. Copy-with-modification constructors return new instances;
// an envelope is never mutated after construction, so pipeline pass-through is
// assertable by pointer identity.
package envelope

import (
	"fmt"

	"github.com/relaykit/relay/internal/runtime/errors"
	"github.com/relaykit/relay/internal/runtime/ids"
	"github.com/relaykit/relay/internal/runtime/jsoncodec"
)

// Metadata carries the routing and ordering attributes of an envelope. The
// name is the sole dispatch key; stream id and version drive event ordering.
type Metadata struct {
	id            string
	name          string
	correlationID string
	causationIDs  []string
	userID        string
	streamID      string
	version       int64
	hasVersion    bool
}

func (m Metadata) ID() string            { return m.id }
func (m Metadata) Name() string          { return m.name }
func (m Metadata) CorrelationID() string { return m.correlationID }
func (m Metadata) UserID() string        { return m.userID }
func (m Metadata) StreamID() string      { return m.streamID }

// Version returns the stream version and whether one is set.
func (m Metadata) Version() (int64, bool) {
	return m.version, m.hasVersion
}

// CausationIDs returns a copy of the ordered causation chain.
func (m Metadata) CausationIDs() []string {
	if len(m.causationIDs) == 0 {
		return nil
	}
	out := make([]string, len(m.causationIDs))
	copy(out, m.causationIDs)
	return out
}

// Envelope is the immutable message unit. Equality is identity-based for
// dispatch purposes: compare pointers, not contents.
type Envelope struct {
	meta    Metadata
	payload []byte
}

// Option customizes envelope construction.
type Option func(*Metadata) error

// WithID sets an explicit metadata id instead of generating one.
func WithID(id string) Option {
	return func(m *Metadata) error {
		if !ids.ValidUUID(id) {
			return fmt.Errorf("relay: metadata id %q is not a UUID", id)
		}
		m.id = id
		return nil
	}
}

// WithCorrelationID links the envelope to the conversation it belongs to.
func WithCorrelationID(id string) Option {
	return func(m *Metadata) error {
		if !ids.ValidUUID(id) {
			return fmt.Errorf("relay: correlation id %q is not a UUID", id)
		}
		m.correlationID = id
		return nil
	}
}

// WithCausationIDs sets the ordered chain of message ids that caused this one.
func WithCausationIDs(causationIDs ...string) Option {
	return func(m *Metadata) error {
		for _, id := range causationIDs {
			if !ids.ValidUUID(id) {
				return fmt.Errorf("relay: causation id %q is not a UUID", id)
			}
		}
		m.causationIDs = append([]string(nil), causationIDs...)
		return nil
	}
}

// WithUserID records the acting user.
func WithUserID(userID string) Option {
	return func(m *Metadata) error {
		m.userID = userID
		return nil
	}
}

// WithStream positions the envelope inside an ordered stream.
func WithStream(streamID string, version int64) Option {
	return func(m *Metadata) error {
		if !ids.ValidUUID(streamID) {
			return fmt.Errorf("relay: stream id %q is not a UUID", streamID)
		}
		if version < 0 {
			return fmt.Errorf("relay: stream version %d is negative", version)
		}
		m.streamID = streamID
		m.version = version
		m.hasVersion = true
		return nil
	}
}

// New builds an envelope. The name is required; a metadata id is generated
// when no WithID option is given. A nil payload defaults to an empty object;
// a non-nil payload must be well-formed JSON.
func New(name string, payload []byte, opts ...Option) (*Envelope, error) {
	if name == "" {
		return nil, errors.ErrEnvelopeNameRequired
	}

	meta := Metadata{name: name}
	for _, opt := range opts {
		if err := opt(&meta); err != nil {
			return nil, err
		}
	}
	if meta.id == "" {
		meta.id = ids.NewUUID()
	}

	if payload == nil {
		payload = []byte("{}")
	} else if !jsoncodec.Valid(payload) {
		return nil, fmt.Errorf("relay: envelope %q payload is not valid JSON", name)
	}

	return &Envelope{meta: meta, payload: append([]byte(nil), payload...)}, nil
}

// MustNew is New for wiring code where a malformed envelope is a programmer
// error.
func MustNew(name string, payload []byte, opts ...Option) *Envelope {
	env, err := New(name, payload, opts...)
	if err != nil {
		panic(err)
	}
	return env
}

// NewWithValue marshals v as the payload.
func NewWithValue(name string, v any, opts ...Option) (*Envelope, error) {
	payload, err := jsoncodec.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("relay: marshaling payload for %q: %w", name, err)
	}
	return New(name, payload, opts...)
}

// Metadata returns a copy of the envelope metadata.
func (e *Envelope) Metadata() Metadata {
	m := e.meta
	m.causationIDs = e.meta.CausationIDs()
	return m
}

func (e *Envelope) ID() string            { return e.meta.id }
func (e *Envelope) Name() string          { return e.meta.name }
func (e *Envelope) CorrelationID() string { return e.meta.correlationID }
func (e *Envelope) UserID() string        { return e.meta.userID }
func (e *Envelope) StreamID() string      { return e.meta.streamID }

func (e *Envelope) Version() (int64, bool) {
	return e.meta.version, e.meta.hasVersion
}

func (e *Envelope) CausationIDs() []string {
	return e.meta.CausationIDs()
}

// Ordered reports whether the envelope carries a stream position and is
// therefore subject to per-stream version ordering.
func (e *Envelope) Ordered() bool {
	return e.meta.streamID != "" && e.meta.hasVersion
}

// Payload returns a copy of the raw JSON payload.
func (e *Envelope) Payload() []byte {
	return append([]byte(nil), e.payload...)
}

// copyMeta deep-copies metadata so With* constructors never share slices.
func (e *Envelope) copyMeta() Metadata {
	m := e.meta
	m.causationIDs = e.meta.CausationIDs()
	return m
}

// WithName returns a copy dispatched under a different message name. A fresh
// id is NOT generated; the copy still answers for the original message.
func (e *Envelope) WithName(name string) *Envelope {
	m := e.copyMeta()
	m.name = name
	return &Envelope{meta: m, payload: e.payload}
}

// WithUserID returns a copy acting as userID. The receiver is unchanged.
func (e *Envelope) WithUserID(userID string) *Envelope {
	m := e.copyMeta()
	m.userID = userID
	return &Envelope{meta: m, payload: e.payload}
}

// WithCorrelationID returns a copy carrying the correlation id.
func (e *Envelope) WithCorrelationID(id string) *Envelope {
	m := e.copyMeta()
	m.correlationID = id
	return &Envelope{meta: m, payload: e.payload}
}

// WithCausation returns a copy with ids appended to the causation chain.
func (e *Envelope) WithCausation(causationIDs ...string) *Envelope {
	m := e.copyMeta()
	m.causationIDs = append(m.causationIDs, causationIDs...)
	return &Envelope{meta: m, payload: e.payload}
}

// WithStream returns a copy positioned in an ordered stream.
func (e *Envelope) WithStream(streamID string, version int64) *Envelope {
	m := e.copyMeta()
	m.streamID = streamID
	m.version = version
	m.hasVersion = true
	return &Envelope{meta: m, payload: e.payload}
}

// WithPayload returns a copy carrying payload. The bytes are copied; callers
// keep ownership of the argument.
func (e *Envelope) WithPayload(payload []byte) *Envelope {
	if payload == nil {
		payload = []byte("{}")
	}
	return &Envelope{meta: e.copyMeta(), payload: append([]byte(nil), payload...)}
}

func (e *Envelope) String() string {
	v, ok := e.Version()
	if !ok {
		return fmt.Sprintf("envelope %s id=%s", e.meta.name, e.meta.id)
	}
	return fmt.Sprintf("envelope %s id=%s stream=%s version=%d", e.meta.name, e.meta.id, e.meta.streamID, v)
}

package errors

import (
	sterrors "errors"
	"fmt"
	"strings"
)

var (
	ErrConfigRequired           = sterrors.New("relay: configuration is required")
	ErrServiceRequired          = sterrors.New("relay: service is required")
	ErrLoggerRequired           = sterrors.New("relay: logger is required")
	ErrHandlerRequired          = sterrors.New("relay: handler function is required")
	ErrHandlerNameRequired      = sterrors.New("relay: handler name is required")
	ErrRegistryRequired         = sterrors.New("relay: handler registry is required")
	ErrDispatcherRequired       = sterrors.New("relay: dispatcher is required")
	ErrChainProviderRequired    = sterrors.New("relay: interceptor chain provider is required")
	ErrSchemaRegistryRequired   = sterrors.New("relay: schema registry is required")
	ErrPublisherRequired        = sterrors.New("relay: publisher is required")
	ErrTopicRequired            = sterrors.New("relay: topic is required")
	ErrEnvelopeRequired         = sterrors.New("relay: envelope is required")
	ErrEnvelopeNameRequired     = sterrors.New("relay: envelope name is required")
	ErrEnvelopePayloadRequired  = sterrors.New("relay: envelope payload is required")
	ErrStreamVersionRequired    = sterrors.New("relay: stream id and version are required")
	ErrPrototypeRequired        = sterrors.New("relay: proto message prototype is required")
	ErrPrototypePointerRequired = sterrors.New("relay: proto message prototype must be a pointer type")
	ErrHandlerNotFound          = sterrors.New("relay: no handler registered for message name")
	ErrEnvelopeValidation       = sterrors.New("relay: envelope not valid against schema")
	ErrComponentIdentityMissing = sterrors.New("relay: component identity is missing")
	ErrPayloadType              = sterrors.New("relay: payload field has incompatible type")
	ErrBufferFull               = sterrors.New("relay: event buffer is full for stream")
)

// HandlerNotFoundError reports a dispatch for a message name that has no
// handler registered under the resolved component.
type HandlerNotFoundError struct {
	Component string
	Name      string
}

func (e *HandlerNotFoundError) Error() string {
	if e.Component == "" {
		return fmt.Sprintf("relay: no handler registered for %q", e.Name)
	}
	return fmt.Sprintf("relay: no handler registered for %q under %s", e.Name, e.Component)
}

func (e *HandlerNotFoundError) Is(target error) bool {
	return target == ErrHandlerNotFound
}

// FieldError is one schema violation inside an EnvelopeValidationError.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// EnvelopeValidationError reports an envelope payload or response that failed
// schema validation. Failures carry the per-field detail that transports render
// into structured 400 bodies.
type EnvelopeValidationError struct {
	Name     string
	Failures []FieldError
}

func (e *EnvelopeValidationError) Error() string {
	if len(e.Failures) == 0 {
		return fmt.Sprintf("relay: envelope %q not valid against schema", e.Name)
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		if f.Field == "" {
			parts = append(parts, f.Message)
			continue
		}
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("relay: envelope %q not valid against schema: %s", e.Name, strings.Join(parts, "; "))
}

func (e *EnvelopeValidationError) Is(target error) bool {
	return target == ErrEnvelopeValidation
}

// ComponentIdentityMissingError reports a dispatcher lookup with no usable
// component identity. This is a wiring mistake and should fail startup.
type ComponentIdentityMissingError struct {
	Context string
}

func (e *ComponentIdentityMissingError) Error() string {
	if e.Context == "" {
		return "relay: component identity is missing"
	}
	return fmt.Sprintf("relay: component identity is missing for %s", e.Context)
}

func (e *ComponentIdentityMissingError) Is(target error) bool {
	return target == ErrComponentIdentityMissing
}

// PayloadTypeError reports a typed payload access that found a value of an
// incompatible JSON type, or a payload that failed to decode into the
// requested Go type.
type PayloadTypeError struct {
	Field string
	Want  string
	Got   string
	Err   error
}

func (e *PayloadTypeError) Error() string {
	switch {
	case e.Err != nil && e.Field == "":
		return fmt.Sprintf("relay: payload does not decode as %s: %v", e.Want, e.Err)
	case e.Got == "":
		return fmt.Sprintf("relay: payload field %q is missing, want %s", e.Field, e.Want)
	default:
		return fmt.Sprintf("relay: payload field %q is %s, want %s", e.Field, e.Got, e.Want)
	}
}

func (e *PayloadTypeError) Is(target error) bool {
	return target == ErrPayloadType
}

func (e *PayloadTypeError) Unwrap() error {
	return e.Err
}

// BufferFullError reports an event rejected because its stream already holds
// MaxPending buffered envelopes. Callers should nack so the transport
// redelivers once the gap fills.
type BufferFullError struct {
	StreamID string
	Version  int64
	Pending  int
	Limit    int
}

func (e *BufferFullError) Error() string {
	return fmt.Sprintf("relay: event buffer full for stream %s (version %d, %d pending, limit %d)",
		e.StreamID, e.Version, e.Pending, e.Limit)
}

func (e *BufferFullError) Is(target error) bool {
	return target == ErrBufferFull
}

// ConfigValidationError wraps the joined per-field errors from Config.Validate.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return "relay: invalid configuration: " + e.Err.Error()
}

func (e ConfigValidationError) Unwrap() error {
	return e.Err
}

// NewConfigValidationError wraps err, or returns nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}

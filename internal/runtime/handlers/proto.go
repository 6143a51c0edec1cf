package handlers

import (
	"context"
	"fmt"
	"reflect"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/relaykit/relay/internal/runtime/envelope"
	errspkg "github.com/relaykit/relay/internal/runtime/errors"
)

// ProtoFunc is a handler over a decoded protobuf payload. Payloads travel as
// protojson on the wire; the envelope is passed alongside for metadata access
// and reply building.
type ProtoFunc[T proto.Message] func(ctx context.Context, payload T, env *envelope.Envelope) (*envelope.Envelope, error)

// RegisterProtoHandler registers a handler that decodes the envelope payload
// into a fresh T via protojson before invoking fn. Decode failures surface as
// *PayloadTypeError without invoking fn.
func RegisterProtoHandler[T proto.Message](reg *Registry, name string, fn ProtoFunc[T], opts ...Option) error {
	if reg == nil {
		return errspkg.ErrRegistryRequired
	}
	if fn == nil {
		return errspkg.ErrHandlerRequired
	}

	var zero T
	prototype, err := EnsureProtoPrototype(zero)
	if err != nil {
		return err
	}

	return reg.Register(name, func(ctx context.Context, env *envelope.Envelope) (*envelope.Envelope, error) {
		typed, err := clonePrototype(prototype)
		if err != nil {
			return nil, err
		}
		if err := protojson.Unmarshal(env.Payload(), typed); err != nil {
			return nil, &errspkg.PayloadTypeError{Want: fmt.Sprintf("%T", prototype), Err: err}
		}
		return fn(ctx, typed, env)
	}, opts...)
}

// ProtoReply builds a response envelope from a proto message, encoding the
// payload with protojson.
func ProtoReply(name string, msg proto.Message, opts ...envelope.Option) (*envelope.Envelope, error) {
	if isNilProto(msg) {
		return nil, errspkg.ErrEnvelopePayloadRequired
	}
	payload, err := protojson.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %T reply: %w", msg, err)
	}
	return envelope.New(name, payload, opts...)
}

// EnsureProtoPrototype returns candidate when usable, or constructs a fresh
// instance for a typed nil pointer.
func EnsureProtoPrototype[T proto.Message](candidate T) (T, error) {
	if !isNilProto(candidate) {
		return candidate, nil
	}

	var zero T
	typ := reflect.TypeOf(candidate)
	if typ == nil {
		return zero, errspkg.ErrPrototypeRequired
	}
	if typ.Kind() != reflect.Ptr {
		return zero, errspkg.ErrPrototypePointerRequired
	}

	inst := reflect.New(typ.Elem()).Interface()
	typed, ok := inst.(T)
	if !ok {
		return zero, fmt.Errorf("relay: unexpected prototype type %s", typ)
	}
	return typed, nil
}

func clonePrototype[T proto.Message](prototype T) (T, error) {
	if isNilProto(prototype) {
		var zero T
		return zero, errspkg.ErrPrototypeRequired
	}

	cloned := proto.Clone(prototype)
	proto.Reset(cloned)

	typed, ok := cloned.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("relay: unexpected prototype type %T", cloned)
	}

	return typed, nil
}

func isNilProto[T proto.Message](prototype T) bool {
	msg := proto.Message(prototype)
	if msg == nil {
		return true
	}

	val := reflect.ValueOf(msg)
	switch val.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map, reflect.Func:
		return val.IsNil()
	default:
		return false
	}
}

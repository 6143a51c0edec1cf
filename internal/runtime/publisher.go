package runtime

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/relaykit/relay/internal/runtime/envelope"
	errspkg "github.com/relaykit/relay/internal/runtime/errors"
	idspkg "github.com/relaykit/relay/internal/runtime/ids"
	metadatapkg "github.com/relaykit/relay/internal/runtime/metadata"
)

// Producer emits envelopes onto the configured transport.
type Producer interface {
	PublishEnvelope(ctx context.Context, topic string, env *envelope.Envelope, metadata metadatapkg.Metadata) error
}

// NewMessageFromEnvelope converts the envelope into a Watermill message with
// the standard headers required by the event pipeline. Extra metadata fills
// in headers the envelope does not already carry.
func NewMessageFromEnvelope(env *envelope.Envelope, metadata metadatapkg.Metadata) (*message.Message, error) {
	if env == nil {
		return nil, errspkg.ErrEnvelopeRequired
	}

	msg := message.NewMessage(idspkg.CreateULID(), env.Payload())
	msg.Metadata = metadatapkg.FromEnvelope(env)
	for key, value := range metadata {
		if _, ok := msg.Metadata[key]; !ok {
			msg.Metadata[key] = value
		}
	}
	return msg, nil
}

// PublishEnvelope flattens the envelope into message headers and publishes it
// to the provided topic.
func PublishEnvelope(ctx context.Context, publisher message.Publisher, topic string, env *envelope.Envelope, metadata metadatapkg.Metadata) error {
	if publisher == nil {
		return errspkg.ErrPublisherRequired
	}
	if topic == "" {
		return errspkg.ErrTopicRequired
	}

	msg, err := NewMessageFromEnvelope(env, metadata)
	if err != nil {
		return err
	}
	if ctx != nil {
		msg.SetContext(ctx)
	}

	return publisher.Publish(topic, msg)
}

// PublishEnvelope emits the envelope using the Service publisher so callers
// can produce events without touching the internal Watermill APIs directly.
func (s *Service) PublishEnvelope(ctx context.Context, topic string, env *envelope.Envelope, metadata metadatapkg.Metadata) error {
	if s == nil {
		return errspkg.ErrServiceRequired
	}
	return PublishEnvelope(ctx, s.publisher, topic, env, metadata)
}

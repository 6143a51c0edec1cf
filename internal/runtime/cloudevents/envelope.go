package cloudevents

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/relaykit/relay/internal/runtime/envelope"
	runtimeerrors "github.com/relaykit/relay/internal/runtime/errors"
	"github.com/relaykit/relay/internal/runtime/jsoncodec"
)

// FromEnvelope maps an envelope onto a CloudEvents v1.0 event. The envelope
// name becomes the event type, the stream id (when set) becomes the subject,
// and the remaining envelope metadata travels as relay extensions so ordering
// survives transit through CloudEvents-speaking systems.
func FromEnvelope(env *envelope.Envelope, source string) Event {
	contentType := "application/json"

	evt := Event{
		SpecVersion:     SpecVersion,
		Type:            env.Name(),
		Source:          source,
		ID:              env.ID(),
		Time:            time.Now().UTC(),
		DataContentType: &contentType,
		Data:            json.RawMessage(env.Payload()),
		Extensions:      make(map[string]any),
	}

	if streamID := env.StreamID(); streamID != "" {
		evt.Subject = &streamID
	}
	if version, ok := env.Version(); ok {
		evt.Extensions[ExtStreamVersion] = version
	}
	if userID := env.UserID(); userID != "" {
		evt.Extensions[ExtUserID] = userID
	}
	if correlationID := env.CorrelationID(); correlationID != "" {
		evt.Extensions[ExtCorrelationID] = correlationID
	}
	if causationIDs := env.CausationIDs(); len(causationIDs) > 0 {
		evt.Extensions[ExtCausationIDs] = strings.Join(causationIDs, ",")
	}

	return evt
}

// ToEnvelope rebuilds an envelope from a CloudEvents event. The event type
// becomes the envelope name and relay extensions restore the ordering
// metadata. A stream version extension without a subject fails with
// ErrStreamVersionRequired; a subject without a version stays informational
// and the envelope comes back unordered. Event and correlation ids must be
// UUIDs to enter the dispatch plane.
func ToEnvelope(evt Event) (*envelope.Envelope, error) {
	payload, err := eventPayload(evt)
	if err != nil {
		return nil, err
	}

	opts := make([]envelope.Option, 0, 4)
	if evt.ID != "" {
		opts = append(opts, envelope.WithID(evt.ID))
	}
	if correlationID := GetCorrelationID(evt); correlationID != "" {
		opts = append(opts, envelope.WithCorrelationID(correlationID))
	}
	if joined := evt.GetExtensionString(ExtCausationIDs); joined != "" {
		opts = append(opts, envelope.WithCausationIDs(strings.Split(joined, ",")...))
	}
	if userID := evt.GetExtensionString(ExtUserID); userID != "" {
		opts = append(opts, envelope.WithUserID(userID))
	}

	if evt.GetExtension(ExtStreamVersion) != nil {
		if evt.Subject == nil || *evt.Subject == "" {
			return nil, fmt.Errorf("relay: event %q has a stream version but no subject: %w",
				evt.ID, runtimeerrors.ErrStreamVersionRequired)
		}
		opts = append(opts, envelope.WithStream(*evt.Subject, evt.GetExtensionInt64(ExtStreamVersion)))
	}

	return envelope.New(evt.Type, payload, opts...)
}

// eventPayload serializes the event data for the envelope. Binary payloads
// cannot become envelopes because envelope payloads must be JSON.
func eventPayload(evt Event) ([]byte, error) {
	switch {
	case evt.Data != nil:
		payload, err := jsoncodec.Marshal(evt.Data)
		if err != nil {
			return nil, fmt.Errorf("relay: marshaling event data for %q: %w", evt.Type, err)
		}
		return payload, nil
	case evt.DataBase64 != nil:
		return nil, fmt.Errorf("relay: event %q carries binary data, which cannot become an envelope payload", evt.ID)
	default:
		return nil, nil
	}
}

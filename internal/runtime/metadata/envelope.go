package metadata

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/relaykit/relay/internal/runtime/envelope"
	runtimeerrors "github.com/relaykit/relay/internal/runtime/errors"
)

// FromEnvelope flattens envelope metadata into Watermill message headers.
// Unset fields are omitted so transports do not carry empty headers.
func FromEnvelope(env *envelope.Envelope) message.Metadata {
	md := message.Metadata{
		KeyEnvelopeID:  env.ID(),
		KeyMessageName: env.Name(),
	}

	if correlationID := env.CorrelationID(); correlationID != "" {
		md[KeyCorrelationID] = correlationID
	}
	if causationIDs := env.CausationIDs(); len(causationIDs) > 0 {
		md[KeyCausationIDs] = strings.Join(causationIDs, ",")
	}
	if userID := env.UserID(); userID != "" {
		md[KeyUserID] = userID
	}
	if version, ok := env.Version(); ok {
		md[KeyStreamID] = env.StreamID()
		md[KeyStreamVersion] = strconv.FormatInt(version, 10)
	}

	return md
}

// ToEnvelope rebuilds an envelope from Watermill message headers and the raw
// payload. Stream id and stream version headers must appear together;
// a lone half of the pair fails with ErrStreamVersionRequired.
func ToEnvelope(md message.Metadata, payload []byte) (*envelope.Envelope, error) {
	name := md[KeyMessageName]

	opts := make([]envelope.Option, 0, 4)
	if id := md[KeyEnvelopeID]; id != "" {
		opts = append(opts, envelope.WithID(id))
	}
	if correlationID := md[KeyCorrelationID]; correlationID != "" {
		opts = append(opts, envelope.WithCorrelationID(correlationID))
	}
	if joined := md[KeyCausationIDs]; joined != "" {
		opts = append(opts, envelope.WithCausationIDs(strings.Split(joined, ",")...))
	}
	if userID := md[KeyUserID]; userID != "" {
		opts = append(opts, envelope.WithUserID(userID))
	}

	streamID, hasStream := md[KeyStreamID]
	rawVersion, hasVersion := md[KeyStreamVersion]
	if hasStream != hasVersion {
		return nil, fmt.Errorf("header %q and %q must be set together: %w",
			KeyStreamID, KeyStreamVersion, runtimeerrors.ErrStreamVersionRequired)
	}
	if hasStream {
		version, err := strconv.ParseInt(rawVersion, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse header %q: %w: %w",
				KeyStreamVersion, err, runtimeerrors.ErrStreamVersionRequired)
		}
		opts = append(opts, envelope.WithStream(streamID, version))
	}

	env, err := envelope.New(name, payload, opts...)
	if err != nil {
		return nil, fmt.Errorf("rebuild envelope from headers: %w", err)
	}
	return env, nil
}

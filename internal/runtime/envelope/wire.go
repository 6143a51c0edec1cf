package envelope

import (
	"encoding/json"
	"fmt"

	"github.com/relaykit/relay/internal/runtime/jsoncodec"
)

// wireEnvelope is the serialized form: metadata object next to the untouched
// payload document.
type wireEnvelope struct {
	Metadata wireMetadata    `json:"metadata"`
	Payload  json.RawMessage `json:"payload"`
}

type wireMetadata struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	CorrelationID string   `json:"correlationId,omitempty"`
	CausationIDs  []string `json:"causationIds,omitempty"`
	UserID        string   `json:"userId,omitempty"`
	StreamID      string   `json:"streamId,omitempty"`
	Version       *int64   `json:"version,omitempty"`
}

// Marshal serializes the envelope to its wire form.
func Marshal(e *Envelope) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("relay: cannot marshal nil envelope")
	}
	wire := wireEnvelope{
		Metadata: wireMetadata{
			ID:            e.meta.id,
			Name:          e.meta.name,
			CorrelationID: e.meta.correlationID,
			CausationIDs:  e.meta.CausationIDs(),
			UserID:        e.meta.userID,
			StreamID:      e.meta.streamID,
		},
		Payload: json.RawMessage(e.payload),
	}
	if e.meta.hasVersion {
		v := e.meta.version
		wire.Metadata.Version = &v
	}
	return jsoncodec.Marshal(wire)
}

// Unmarshal parses wire-form bytes into a new envelope. Missing ids are
// generated, matching New.
func Unmarshal(data []byte) (*Envelope, error) {
	var wire wireEnvelope
	if err := jsoncodec.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("relay: unmarshaling envelope: %w", err)
	}

	opts := make([]Option, 0, 4)
	if wire.Metadata.ID != "" {
		opts = append(opts, WithID(wire.Metadata.ID))
	}
	if wire.Metadata.CorrelationID != "" {
		opts = append(opts, WithCorrelationID(wire.Metadata.CorrelationID))
	}
	if len(wire.Metadata.CausationIDs) > 0 {
		opts = append(opts, WithCausationIDs(wire.Metadata.CausationIDs...))
	}
	if wire.Metadata.UserID != "" {
		opts = append(opts, WithUserID(wire.Metadata.UserID))
	}
	if wire.Metadata.StreamID != "" && wire.Metadata.Version != nil {
		opts = append(opts, WithStream(wire.Metadata.StreamID, *wire.Metadata.Version))
	}

	return New(wire.Metadata.Name, wire.Payload, opts...)
}

// MarshalJSON lets envelopes embed directly in JSON documents (stats
// snapshots, debug endpoints).
func (e *Envelope) MarshalJSON() ([]byte, error) {
	return Marshal(e)
}

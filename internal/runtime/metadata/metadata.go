package metadata

// Metadata represents the headers carried alongside a transport message.
type Metadata map[string]string

// Reserved header keys. Transports carry envelope metadata under these keys;
// applications should not reuse them for custom headers.
const (
	// KeyEnvelopeID carries the envelope metadata id.
	KeyEnvelopeID = "relay_envelope_id"

	// KeyMessageName carries the dispatch name.
	KeyMessageName = "relay_message_name"

	// KeyCorrelationID tracks related messages across services.
	KeyCorrelationID = "correlation_id"

	// KeyCausationIDs carries the causation chain, comma-joined.
	KeyCausationIDs = "relay_causation_ids"

	// KeyUserID carries the acting user.
	KeyUserID = "relay_user_id"

	// KeyStreamID carries the ordering stream.
	KeyStreamID = "relay_stream_id"

	// KeyStreamVersion carries the position within the stream.
	KeyStreamVersion = "relay_stream_version"

	// KeyTraceID stores the distributed tracing id.
	KeyTraceID = "trace_id"

	// KeySpanID stores the distributed tracing span id.
	KeySpanID = "span_id"

	// KeyQueueDepth indicates queue depth at time of enqueue.
	KeyQueueDepth = "relay_queue_depth"

	// KeyEnqueuedAt records when a message was enqueued.
	KeyEnqueuedAt = "relay_enqueued_at"
)

func (m Metadata) cloneWithExtra(extra int) Metadata {
	size := len(m) + extra
	if size <= 0 {
		return Metadata{}
	}

	cloned := make(Metadata, size)
	for k, v := range m {
		cloned[k] = v
	}
	return cloned
}

// Clone returns a shallow copy of the metadata map.
func (m Metadata) Clone() Metadata {
	return m.cloneWithExtra(0)
}

// With returns a cloned metadata map containing the provided key/value pair.
func (m Metadata) With(key, value string) Metadata {
	cloned := m.cloneWithExtra(1)
	cloned[key] = value
	return cloned
}

// WithAll returns a cloned metadata map containing the supplied entries.
func (m Metadata) WithAll(entries Metadata) Metadata {
	cloned := m.cloneWithExtra(len(entries))
	for k, v := range entries {
		cloned[k] = v
	}
	return cloned
}

// New constructs a Metadata map from alternating key/value pairs.
func New(pairs ...string) Metadata {
	md := make(Metadata, len(pairs)/2)
	for i := 0; i < len(pairs)-1; i += 2 {
		md[pairs[i]] = pairs[i+1]
	}
	return md
}

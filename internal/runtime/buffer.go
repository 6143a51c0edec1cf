package runtime

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/relaykit/relay/internal/runtime/envelope"
	errspkg "github.com/relaykit/relay/internal/runtime/errors"
	loggingpkg "github.com/relaykit/relay/internal/runtime/logging"
)

// DefaultInitialVersion is the expected version assigned to a stream on first
// contact when no explicit baseline is configured or primed.
const DefaultInitialVersion = 1

// BufferMonitor observes buffer state transitions. Implementations must be
// safe for concurrent use; the buffer calls them while holding the stream lock.
type BufferMonitor interface {
	// OnBuffered reports an out-of-order envelope parked under its version.
	OnBuffered(streamID string, version int64, pending int)
	// OnReleased reports an envelope forwarded to the rest of the chain.
	OnReleased(streamID string, version int64, pending int)
	// OnDiscarded reports a duplicate dropped because its version already passed.
	OnDiscarded(streamID string, version int64)
	// OnOverflow reports an envelope rejected because the stream is full.
	OnOverflow(streamID string, version int64, pending int)
}

// BufferConfig configures an EventBufferInterceptor.
type BufferConfig struct {
	// InitialVersion is the expected version for streams seen for the first
	// time. Zero means DefaultInitialVersion.
	InitialVersion int64
	// MaxPending caps the number of buffered envelopes per stream. Zero means
	// unbounded.
	MaxPending int
	// WarnPending logs a warning when a stream's pending depth reaches this
	// value. Zero disables the warning.
	WarnPending int
	Logger      loggingpkg.ServiceLogger
	Monitor     BufferMonitor
}

// BufferStreamState is a point-in-time view of one stream's buffer, exposed
// through debug endpoints.
type BufferStreamState struct {
	ExpectedVersion int64   `json:"expected_version"`
	Pending         []int64 `json:"pending"`
}

type streamBuffer struct {
	mu       sync.Mutex
	expected int64
	pending  map[int64]*envelope.Envelope
}

// EventBufferInterceptor enforces strict per-stream version ordering. Events
// arriving ahead of their stream's expected version are parked until the gap
// fills; stale versions are discarded as duplicates. Envelopes without stream
// metadata bypass the buffer entirely.
type EventBufferInterceptor struct {
	initialVersion int64
	maxPending     int
	warnPending    int
	logger         loggingpkg.ServiceLogger
	monitor        BufferMonitor

	mu      sync.Mutex
	streams map[string]*streamBuffer
}

// NewEventBuffer constructs the buffering stage from cfg.
func NewEventBuffer(cfg BufferConfig) *EventBufferInterceptor {
	initial := cfg.InitialVersion
	if initial <= 0 {
		initial = DefaultInitialVersion
	}
	logger := cfg.Logger
	if logger == nil {
		logger = loggingpkg.Nop()
	}
	return &EventBufferInterceptor{
		initialVersion: initial,
		maxPending:     cfg.MaxPending,
		warnPending:    cfg.WarnPending,
		logger:         logger,
		monitor:        cfg.Monitor,
		streams:        make(map[string]*streamBuffer),
	}
}

// Prime sets the expected version for a stream before any of its traffic
// arrives, so snapshot-restored streams do not wait for history that will
// never be redelivered. Priming an actively buffering stream is rejected.
func (b *EventBufferInterceptor) Prime(streamID string, nextVersion int64) error {
	if streamID == "" {
		return errspkg.ErrStreamVersionRequired
	}
	if nextVersion <= 0 {
		return fmt.Errorf("relay: prime version %d for stream %s must be positive", nextVersion, streamID)
	}

	sb := b.stream(streamID)
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if len(sb.pending) > 0 {
		return fmt.Errorf("relay: stream %s already has %d buffered events", streamID, len(sb.pending))
	}
	sb.expected = nextVersion
	return nil
}

// Process applies the ordering state machine to one envelope.
func (b *EventBufferInterceptor) Process(ctx context.Context, env *envelope.Envelope, next Next) (*envelope.Envelope, error) {
	version, ok := env.Version()
	if !ok || env.StreamID() == "" {
		return next(ctx, env)
	}

	streamID := env.StreamID()
	sb := b.stream(streamID)
	sb.mu.Lock()
	defer sb.mu.Unlock()

	switch {
	case version == sb.expected:
		out, err := next(ctx, env)
		if err != nil {
			// Not advanced: the transport nacks and redelivers this version.
			return out, err
		}
		sb.expected++
		b.observeReleased(streamID, version, len(sb.pending))
		b.drainLocked(ctx, streamID, sb, next)
		return out, nil

	case version > sb.expected:
		if b.maxPending > 0 && len(sb.pending) >= b.maxPending {
			b.observeOverflow(streamID, version, len(sb.pending))
			return nil, &errspkg.BufferFullError{
				StreamID: streamID,
				Version:  version,
				Pending:  len(sb.pending),
				Limit:    b.maxPending,
			}
		}
		sb.pending[version] = env
		b.observeBuffered(streamID, version, len(sb.pending))
		b.drainLocked(ctx, streamID, sb, next)
		return nil, nil

	default:
		b.observeDiscarded(streamID, version)
		b.drainLocked(ctx, streamID, sb, next)
		return nil, nil
	}
}

// drainLocked forwards buffered envelopes while the expected version is
// present. A forwarding failure re-buffers the envelope and stops, leaving
// the expected version unchanged; the next arrival on the stream retries it.
// Responses of drained envelopes have no caller and are discarded.
func (b *EventBufferInterceptor) drainLocked(ctx context.Context, streamID string, sb *streamBuffer, next Next) {
	for {
		pendingEnv, ok := sb.pending[sb.expected]
		if !ok {
			return
		}
		delete(sb.pending, sb.expected)

		if _, err := next(ctx, pendingEnv); err != nil {
			sb.pending[sb.expected] = pendingEnv
			b.logger.Info("Buffered event failed on release, holding stream", loggingpkg.LogFields{
				"stream_id": streamID,
				"version":   sb.expected,
				"error":     err.Error(),
			})
			return
		}

		version := sb.expected
		sb.expected++
		b.observeReleased(streamID, version, len(sb.pending))
	}
}

// PendingSnapshot returns the buffered state of every tracked stream.
func (b *EventBufferInterceptor) PendingSnapshot() map[string]BufferStreamState {
	b.mu.Lock()
	streams := make(map[string]*streamBuffer, len(b.streams))
	for id, sb := range b.streams {
		streams[id] = sb
	}
	b.mu.Unlock()

	snapshot := make(map[string]BufferStreamState, len(streams))
	for id, sb := range streams {
		sb.mu.Lock()
		versions := make([]int64, 0, len(sb.pending))
		for v := range sb.pending {
			versions = append(versions, v)
		}
		state := BufferStreamState{ExpectedVersion: sb.expected, Pending: versions}
		sb.mu.Unlock()

		sort.Slice(state.Pending, func(i, j int) bool { return state.Pending[i] < state.Pending[j] })
		snapshot[id] = state
	}
	return snapshot
}

// PendingTotal returns the number of buffered envelopes across all streams.
func (b *EventBufferInterceptor) PendingTotal() int {
	total := 0
	for _, state := range b.PendingSnapshot() {
		total += len(state.Pending)
	}
	return total
}

func (b *EventBufferInterceptor) stream(streamID string) *streamBuffer {
	b.mu.Lock()
	defer b.mu.Unlock()

	sb, ok := b.streams[streamID]
	if !ok {
		sb = &streamBuffer{
			expected: b.initialVersion,
			pending:  make(map[int64]*envelope.Envelope),
		}
		b.streams[streamID] = sb
	}
	return sb
}

func (b *EventBufferInterceptor) observeBuffered(streamID string, version int64, pending int) {
	if b.monitor != nil {
		b.monitor.OnBuffered(streamID, version, pending)
	}
	if b.warnPending > 0 && pending >= b.warnPending {
		b.logger.Info("Event buffer depth crossed warning threshold", loggingpkg.LogFields{
			"stream_id": streamID,
			"version":   version,
			"pending":   pending,
		})
		return
	}
	b.logger.Debug("Buffered out-of-order event", loggingpkg.LogFields{
		"stream_id": streamID,
		"version":   version,
		"pending":   pending,
	})
}

func (b *EventBufferInterceptor) observeReleased(streamID string, version int64, pending int) {
	if b.monitor != nil {
		b.monitor.OnReleased(streamID, version, pending)
	}
}

func (b *EventBufferInterceptor) observeDiscarded(streamID string, version int64) {
	if b.monitor != nil {
		b.monitor.OnDiscarded(streamID, version)
	}
	b.logger.Debug("Discarded duplicate event", loggingpkg.LogFields{
		"stream_id": streamID,
		"version":   version,
	})
}

func (b *EventBufferInterceptor) observeOverflow(streamID string, version int64, pending int) {
	if b.monitor != nil {
		b.monitor.OnOverflow(streamID, version, pending)
	}
	b.logger.Info("Event buffer full, rejecting for redelivery", loggingpkg.LogFields{
		"stream_id": streamID,
		"version":   version,
		"pending":   pending,
	})
}

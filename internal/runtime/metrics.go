package runtime

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Dispatch outcomes used as the outcome label on dispatch counters.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeDropped = "dropped"
)

// DispatchMetrics exports dispatch and buffer activity as Prometheus
// collectors under the relay namespace.
type DispatchMetrics struct {
	mu         sync.Mutex
	registerer prometheus.Registerer
	registered bool

	dispatchTotal    *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec

	bufferStreams prometheus.Gauge
	bufferPending *prometheus.GaugeVec
	bufferEvents  *prometheus.CounterVec

	poisonTotal *prometheus.CounterVec
}

func newDispatchCounterVec(subsystem, name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relay",
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// NewDispatchMetrics creates the collector set. Pass nil to use the default
// Prometheus registerer.
func NewDispatchMetrics(registerer prometheus.Registerer) *DispatchMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &DispatchMetrics{
		registerer: registerer,
		dispatchTotal: newDispatchCounterVec("dispatch", "messages_total",
			"Total envelopes dispatched, by component, message name and outcome",
			[]string{"component", "name", "outcome"}),
		dispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "relay",
				Subsystem: "dispatch",
				Name:      "duration_seconds",
				Help:      "Dispatch latency through the interceptor chain",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"component", "name"},
		),
		bufferStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "relay",
			Subsystem: "buffer",
			Name:      "streams",
			Help:      "Streams currently tracked by the event buffer",
		}),
		bufferPending: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "relay",
				Subsystem: "buffer",
				Name:      "pending",
				Help:      "Buffered envelopes per stream",
			},
			[]string{"stream"},
		),
		bufferEvents: newDispatchCounterVec("buffer", "events_total",
			"Buffer transitions, by kind (buffered, released, discarded, overflow)",
			[]string{"event"}),
		poisonTotal: newDispatchCounterVec("poison", "messages_total",
			"Messages forwarded to the poison queue, by topic",
			[]string{"topic"}),
	}
}

// Register registers all collectors. Safe to call multiple times; collectors
// already registered elsewhere are tolerated.
func (m *DispatchMetrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.dispatchTotal,
		m.dispatchDuration,
		m.bufferStreams,
		m.bufferPending,
		m.bufferEvents,
		m.poisonTotal,
	}
	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

// ObserveDispatch records one dispatch outcome with its latency.
func (m *DispatchMetrics) ObserveDispatch(component, name, outcome string, duration time.Duration) {
	m.dispatchTotal.WithLabelValues(component, name, outcome).Inc()
	m.dispatchDuration.WithLabelValues(component, name).Observe(duration.Seconds())
}

// ObservePoison records a message forwarded to the poison queue.
func (m *DispatchMetrics) ObservePoison(topic string) {
	m.poisonTotal.WithLabelValues(topic).Inc()
}

// BufferMonitor returns a monitor that feeds the buffer collectors.
func (m *DispatchMetrics) BufferMonitor() BufferMonitor {
	return &metricsBufferMonitor{metrics: m, streams: make(map[string]struct{})}
}

// Reset clears all collector state. Useful in tests.
func (m *DispatchMetrics) Reset() {
	m.dispatchTotal.Reset()
	m.dispatchDuration.Reset()
	m.bufferStreams.Set(0)
	m.bufferPending.Reset()
	m.bufferEvents.Reset()
	m.poisonTotal.Reset()
}

type metricsBufferMonitor struct {
	metrics *DispatchMetrics

	mu      sync.Mutex
	streams map[string]struct{}
}

func (mon *metricsBufferMonitor) track(streamID string) {
	mon.mu.Lock()
	defer mon.mu.Unlock()
	if _, ok := mon.streams[streamID]; !ok {
		mon.streams[streamID] = struct{}{}
		mon.metrics.bufferStreams.Set(float64(len(mon.streams)))
	}
}

func (mon *metricsBufferMonitor) OnBuffered(streamID string, version int64, pending int) {
	mon.track(streamID)
	mon.metrics.bufferEvents.WithLabelValues("buffered").Inc()
	mon.metrics.bufferPending.WithLabelValues(streamID).Set(float64(pending))
}

func (mon *metricsBufferMonitor) OnReleased(streamID string, version int64, pending int) {
	mon.track(streamID)
	mon.metrics.bufferEvents.WithLabelValues("released").Inc()
	mon.metrics.bufferPending.WithLabelValues(streamID).Set(float64(pending))
}

func (mon *metricsBufferMonitor) OnDiscarded(streamID string, version int64) {
	mon.track(streamID)
	mon.metrics.bufferEvents.WithLabelValues("discarded").Inc()
}

func (mon *metricsBufferMonitor) OnOverflow(streamID string, version int64, pending int) {
	mon.track(streamID)
	mon.metrics.bufferEvents.WithLabelValues("overflow").Inc()
	mon.metrics.bufferPending.WithLabelValues(streamID).Set(float64(pending))
}

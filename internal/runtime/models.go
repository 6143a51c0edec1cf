package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"runtime"
	"runtime/metrics"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/relaykit/relay/internal/runtime/component"
	errspkg "github.com/relaykit/relay/internal/runtime/errors"
	"github.com/relaykit/relay/internal/runtime/metadata"
)

const (
	latencySampleSize    = 256
	throughputWindowSize = time.Minute
)

// UnprocessableEventError wraps payloads that failed validation or unmarshalling.
type UnprocessableEventError struct {
	eventMessage string
	err          error
}

func (e *UnprocessableEventError) Error() string {
	return "unprocessable event: " + e.eventMessage + " error: " + e.err.Error()
}

// DispatchStats tracks dispatch activity for one component. The exported
// fields are the JSON snapshot served by the debug endpoints.
type DispatchStats struct {
	mu sync.Mutex `json:"-"`

	component component.Identity `json:"-"`

	DispatchesTotal     uint64    `json:"dispatches_total"`
	DispatchesFailed    uint64    `json:"dispatches_failed"`
	DispatchesDropped   uint64    `json:"dispatches_dropped"`
	TotalProcessingTime int64     `json:"total_processing_time_ns"`
	LastDispatchedAt    time.Time `json:"last_dispatched_at"`

	Latency      LatencyMetrics        `json:"latency"`
	Throughput   ThroughputMetrics     `json:"throughput"`
	Errors       ErrorBreakdown        `json:"errors"`
	Resource     ResourceUsage         `json:"resource"`
	Backlog      BacklogMetrics        `json:"backlog"`
	Names        map[string]*NameStats `json:"names"`
	Dependencies []DependencyHealth    `json:"dependencies"`

	latencyWindow    *latencyWindow    `json:"-"`
	throughputWindow *throughputWindow `json:"-"`
	resourceSampler  *resourceTracker  `json:"-"`
	dependencyIndex  map[string]int    `json:"-"`
}

// NameStats breaks dispatch counts down by message name.
type NameStats struct {
	Processed uint64 `json:"processed"`
	Failed    uint64 `json:"failed"`
	Dropped   uint64 `json:"dropped"`
	LastNs    int64  `json:"last_ns"`
}

type LatencyMetrics struct {
	AverageNs  int64 `json:"average_ns"`
	P50Ns      int64 `json:"p50_ns"`
	P95Ns      int64 `json:"p95_ns"`
	P99Ns      int64 `json:"p99_ns"`
	LastNs     int64 `json:"last_ns"`
	SampleSize int   `json:"sample_size"`
}

type ThroughputMetrics struct {
	CurrentRPS       float64 `json:"current_rps"`
	WindowSeconds    float64 `json:"window_seconds"`
	MessagesInWindow uint64  `json:"messages_in_window"`
	TotalMessages    uint64  `json:"total_messages"`
}

type ErrorBreakdown struct {
	Validation uint64 `json:"validation"`
	Transport  uint64 `json:"transport"`
	Downstream uint64 `json:"downstream"`
	Other      uint64 `json:"other"`
	LastError  string `json:"last_error,omitempty"`
}

type ResourceUsage struct {
	CPUPercent  float64 `json:"cpu_percent"`
	MemoryBytes uint64  `json:"memory_bytes"`
	Goroutines  int     `json:"goroutines"`
}

type BacklogMetrics struct {
	InFlight           uint64 `json:"in_flight"`
	MaxInFlight        uint64 `json:"max_in_flight"`
	LastQueueDepth     int64  `json:"last_queue_depth"`
	EstimatedLagMillis int64  `json:"estimated_lag_millis"`
}

type DependencyHealth struct {
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	LastChecked time.Time `json:"last_checked"`
	Details     string    `json:"details,omitempty"`
}

const (
	DependencyStatusUnknown  = "unknown"
	DependencyStatusHealthy  = "healthy"
	DependencyStatusDegraded = "degraded"
)

type ErrorCategory string

const (
	ErrorCategoryNone       ErrorCategory = "none"
	ErrorCategoryValidation ErrorCategory = "validation"
	ErrorCategoryTransport  ErrorCategory = "transport"
	ErrorCategoryDownstream ErrorCategory = "downstream"
	ErrorCategoryOther      ErrorCategory = "other"
)

type ErrorClassifier func(error) ErrorCategory

// NewDispatchStats creates an empty stats container for one component.
func NewDispatchStats(identity component.Identity) *DispatchStats {
	return &DispatchStats{
		component:        identity,
		latencyWindow:    newLatencyWindow(latencySampleSize),
		throughputWindow: newThroughputWindow(throughputWindowSize),
		resourceSampler:  newResourceTracker(),
		Names:            make(map[string]*NameStats),
		Backlog: BacklogMetrics{
			LastQueueDepth:     -1,
			EstimatedLagMillis: -1,
		},
		dependencyIndex: make(map[string]int),
	}
}

// Component returns the identity this container tracks.
func (s *DispatchStats) Component() component.Identity {
	return s.component
}

func (s *DispatchStats) addDependencyLocked(name string) int {
	s.Dependencies = append(s.Dependencies, DependencyHealth{
		Name:   name,
		Status: DependencyStatusUnknown,
	})
	if s.dependencyIndex == nil {
		s.dependencyIndex = make(map[string]int)
	}
	idx := len(s.Dependencies) - 1
	s.dependencyIndex[name] = idx
	return idx
}

func (s *DispatchStats) onDispatchStart() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Backlog.InFlight++
	if s.Backlog.InFlight > s.Backlog.MaxInFlight {
		s.Backlog.MaxInFlight = s.Backlog.InFlight
	}
}

func (s *DispatchStats) onDispatchFinish(name string, duration time.Duration, dropped bool, err error, classifier ErrorClassifier) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Backlog.InFlight > 0 {
		s.Backlog.InFlight--
	}

	s.DispatchesTotal++
	if err != nil {
		s.DispatchesFailed++
	} else if dropped {
		s.DispatchesDropped++
	}
	s.TotalProcessingTime += int64(duration)
	s.LastDispatchedAt = time.Now().UTC()

	if s.Names == nil {
		s.Names = make(map[string]*NameStats)
	}
	ns, ok := s.Names[name]
	if !ok {
		ns = &NameStats{}
		s.Names[name] = ns
	}
	ns.Processed++
	if err != nil {
		ns.Failed++
	} else if dropped {
		ns.Dropped++
	}
	ns.LastNs = int64(duration)

	if s.latencyWindow != nil {
		s.latencyWindow.Add(duration)
		snapshot := s.latencyWindow.Snapshot()
		snapshot.LastNs = int64(duration)
		if s.DispatchesTotal > 0 {
			snapshot.AverageNs = s.TotalProcessingTime / int64(s.DispatchesTotal)
		}
		s.Latency = snapshot
	}

	if s.throughputWindow != nil {
		snapshot := s.throughputWindow.AddAndSnapshot(time.Now())
		s.Throughput.CurrentRPS = snapshot.CurrentRPS
		s.Throughput.WindowSeconds = snapshot.WindowSeconds
		s.Throughput.MessagesInWindow = uint64(snapshot.Count)
	}
	s.Throughput.TotalMessages = s.DispatchesTotal

	if classifier == nil {
		classifier = defaultErrorClassifier
	}
	category := classifier(err)
	s.Errors.Record(category, err)

	if s.resourceSampler != nil {
		s.Resource = s.resourceSampler.Snapshot()
	}
}

// RecordBacklog captures queue depth and lag hints from an inbound transport
// message, when the transport provides them.
func (s *DispatchStats) RecordBacklog(msg *message.Message) {
	depth, lag := extractBacklogHints(msg)
	if depth < 0 && lag < 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if depth >= 0 {
		s.Backlog.LastQueueDepth = depth
	}
	if lag >= 0 {
		s.Backlog.EstimatedLagMillis = lag
	}
}

// SetDependencyStatus updates the health of a named dependency, creating it
// when first reported. Route wiring uses subscriber:<topic> and
// publisher:<topic> names.
func (s *DispatchStats) SetDependencyStatus(name, status, details string) {
	if name == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.dependencyIndex[name]
	if !ok {
		idx = s.addDependencyLocked(name)
	}
	dep := s.Dependencies[idx]
	dep.Status = status
	dep.Details = details
	dep.LastChecked = time.Now().UTC()
	s.Dependencies[idx] = dep
}

func dependencyName(kind, topic string) string {
	return fmt.Sprintf("%s:%s", kind, topic)
}

func extractBacklogHints(msg *message.Message) (int64, int64) {
	if msg == nil {
		return -1, -1
	}
	depth := parseInt64Metadata(msg.Metadata, metadata.KeyQueueDepth)
	lag := parseLagMetadata(msg.Metadata, metadata.KeyEnqueuedAt)
	return depth, lag
}

func parseInt64Metadata(meta message.Metadata, key string) int64 {
	if meta == nil {
		return -1
	}
	val := meta.Get(key)
	if val == "" {
		return -1
	}
	parsed, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return -1
	}
	return parsed
}

func parseLagMetadata(meta message.Metadata, key string) int64 {
	if meta == nil {
		return -1
	}
	raw := meta.Get(key)
	if raw == "" {
		return -1
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return -1
	}
	lag := time.Since(ts).Milliseconds()
	if lag < 0 {
		return 0
	}
	return lag
}

func (s *DispatchStats) MarshalJSON() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type Alias DispatchStats
	return json.Marshal((*Alias)(s))
}

func (e *ErrorBreakdown) Record(category ErrorCategory, err error) {
	switch category {
	case ErrorCategoryNone:
		if err == nil {
			return
		}
		e.Other++
	case ErrorCategoryValidation:
		e.Validation++
	case ErrorCategoryTransport:
		e.Transport++
	case ErrorCategoryDownstream:
		e.Downstream++
	default:
		e.Other++
	}
	if err != nil {
		e.LastError = err.Error()
	}
}

type latencyWindow struct {
	samples []int64
	next    int
	filled  int
	last    int64
}

func newLatencyWindow(size int) *latencyWindow {
	if size <= 0 {
		size = latencySampleSize
	}
	return &latencyWindow{samples: make([]int64, size)}
}

func (lw *latencyWindow) Add(d time.Duration) {
	if lw == nil || len(lw.samples) == 0 {
		return
	}
	lw.samples[lw.next] = int64(d)
	lw.last = int64(d)
	lw.next = (lw.next + 1) % len(lw.samples)
	if lw.filled < len(lw.samples) {
		lw.filled++
	}
}

func (lw *latencyWindow) Snapshot() LatencyMetrics {
	var metrics LatencyMetrics
	if lw == nil {
		return metrics
	}
	if lw.filled == 0 {
		metrics.LastNs = lw.last
		return metrics
	}
	samples := make([]int64, lw.filled)
	for i := 0; i < lw.filled; i++ {
		idx := lw.next - lw.filled + i
		if idx < 0 {
			idx += len(lw.samples)
		}
		samples[i] = lw.samples[idx]
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	metrics.SampleSize = lw.filled
	metrics.P50Ns = percentile(samples, 0.50)
	metrics.P95Ns = percentile(samples, 0.95)
	metrics.P99Ns = percentile(samples, 0.99)
	var sum int64
	for _, v := range samples {
		sum += v
	}
	metrics.AverageNs = sum / int64(len(samples))
	metrics.LastNs = lw.last
	return metrics
}

func percentile(samples []int64, quantile float64) int64 {
	if len(samples) == 0 {
		return 0
	}
	if quantile <= 0 {
		return samples[0]
	}
	if quantile >= 1 {
		return samples[len(samples)-1]
	}
	pos := quantile * float64(len(samples)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return samples[lower]
	}
	frac := pos - float64(lower)
	return samples[lower] + int64(float64(samples[upper]-samples[lower])*frac)
}

type throughputWindow struct {
	horizon time.Duration
	samples []time.Time
}

type throughputSnapshot struct {
	Count         int
	WindowSeconds float64
	CurrentRPS    float64
}

func newThroughputWindow(horizon time.Duration) *throughputWindow {
	return &throughputWindow{
		horizon: horizon,
		samples: make([]time.Time, 0, 64),
	}
}

func (tw *throughputWindow) AddAndSnapshot(now time.Time) throughputSnapshot {
	if tw == nil {
		return throughputSnapshot{}
	}
	tw.samples = append(tw.samples, now)
	tw.cleanup(now)
	return tw.snapshot(now)
}

func (tw *throughputWindow) cleanup(now time.Time) {
	if tw == nil || len(tw.samples) == 0 {
		return
	}
	cutoff := now.Add(-tw.horizon)
	idx := 0
	for idx < len(tw.samples) && tw.samples[idx].Before(cutoff) {
		idx++
	}
	if idx > 0 {
		copy(tw.samples, tw.samples[idx:])
		tw.samples = tw.samples[:len(tw.samples)-idx]
	}
}

func (tw *throughputWindow) snapshot(now time.Time) throughputSnapshot {
	if tw == nil || len(tw.samples) == 0 {
		return throughputSnapshot{}
	}
	span := now.Sub(tw.samples[0])
	if span <= 0 {
		span = time.Nanosecond
	}
	count := len(tw.samples)
	return throughputSnapshot{
		Count:         count,
		WindowSeconds: span.Seconds(),
		CurrentRPS:    float64(count) / span.Seconds(),
	}
}

// defaultErrorClassifier maps relay's error taxonomy onto stats categories.
// Validation covers schema and payload decode failures, transport covers
// buffer backpressure, downstream covers context cancellation and deadlines.
func defaultErrorClassifier(err error) ErrorCategory {
	if err == nil {
		return ErrorCategoryNone
	}
	var unprocessable *UnprocessableEventError
	if errors.As(err, &unprocessable) {
		return ErrorCategoryValidation
	}
	if errors.Is(err, errspkg.ErrEnvelopeValidation) || errors.Is(err, errspkg.ErrPayloadType) {
		return ErrorCategoryValidation
	}
	if errors.Is(err, errspkg.ErrBufferFull) {
		return ErrorCategoryTransport
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorCategoryDownstream
	}
	return ErrorCategoryOther
}

// resourceTracker samples coarse CPU/memory usage for inclusion in stats snapshots.
type resourceTracker struct {
	mu             sync.Mutex
	samples        []metrics.Sample
	lastCPUSeconds float64
	lastSample     time.Time
	numCPU         float64
}

func newResourceTracker() *resourceTracker {
	return &resourceTracker{
		samples: []metrics.Sample{{Name: "/sched/cpu:seconds"}},
		numCPU:  float64(runtime.NumCPU()),
	}
}

func (r *resourceTracker) Snapshot() ResourceUsage {
	if r == nil {
		return ResourceUsage{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.samples) == 0 {
		r.samples = []metrics.Sample{{Name: "/sched/cpu:seconds"}}
	}

	metrics.Read(r.samples)
	sample := r.samples[0]
	haveCPU := sample.Value.Kind() == metrics.KindFloat64
	var cpuSeconds float64
	if haveCPU {
		cpuSeconds = sample.Value.Float64()
	}
	now := time.Now()

	var cpuPercent float64
	if haveCPU && !r.lastSample.IsZero() {
		deltaCPU := cpuSeconds - r.lastCPUSeconds
		deltaWall := now.Sub(r.lastSample).Seconds()
		if deltaWall > 0 && r.numCPU > 0 {
			cpuPercent = (deltaCPU / deltaWall) / r.numCPU * 100
		}
	}

	if haveCPU {
		r.lastCPUSeconds = cpuSeconds
	}
	r.lastSample = now

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return ResourceUsage{
		CPUPercent:  cpuPercent,
		MemoryBytes: mem.Alloc,
		Goroutines:  runtime.NumGoroutine(),
	}
}

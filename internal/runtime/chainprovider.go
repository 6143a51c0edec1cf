package runtime

import (
	"sort"
	"sync"

	"github.com/relaykit/relay/internal/runtime/component"
	errspkg "github.com/relaykit/relay/internal/runtime/errors"
	loggingpkg "github.com/relaykit/relay/internal/runtime/logging"
	"github.com/relaykit/relay/internal/runtime/schema"
)

// ChainProvider supplies the interceptor chain for one component.
type ChainProvider interface {
	Component() component.Identity
	Entries() []ChainEntry
}

// StaticChainProvider is a fixed, ordered list of chain entries for one
// component.
type StaticChainProvider struct {
	identity component.Identity
	entries  []ChainEntry
}

// NewChainProvider builds a provider from explicit entries. Order between
// equal priorities follows the order given here.
func NewChainProvider(identity component.Identity, entries ...ChainEntry) *StaticChainProvider {
	copied := make([]ChainEntry, len(entries))
	copy(copied, entries)
	return &StaticChainProvider{identity: identity, entries: copied}
}

func (p *StaticChainProvider) Component() component.Identity {
	return p.identity
}

// Entries returns a copy so callers cannot mutate the provider's chain.
func (p *StaticChainProvider) Entries() []ChainEntry {
	out := make([]ChainEntry, len(p.entries))
	copy(out, p.entries)
	return out
}

// ProviderSet holds the chain provider for every component a service
// dispatches for. Populated at startup, read-only afterwards.
type ProviderSet struct {
	mu        sync.RWMutex
	providers map[component.Identity]ChainProvider
	buffers   map[component.Identity]*EventBufferInterceptor
}

// NewProviderSet creates an empty set.
func NewProviderSet() *ProviderSet {
	return &ProviderSet{
		providers: make(map[component.Identity]ChainProvider),
		buffers:   make(map[component.Identity]*EventBufferInterceptor),
	}
}

// Register installs or replaces the provider for its component.
func (ps *ProviderSet) Register(provider ChainProvider) error {
	if provider == nil {
		return errspkg.ErrChainProviderRequired
	}
	identity := provider.Component()
	if !identity.Valid() {
		return &errspkg.ComponentIdentityMissingError{Context: "chain provider registration"}
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.providers[identity] = provider
	return nil
}

// For returns the provider registered for identity.
func (ps *ProviderSet) For(identity component.Identity) (ChainProvider, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	provider, ok := ps.providers[identity]
	return provider, ok
}

// Buffer returns the shared event buffer for identity, when its default chain
// carries one. Buffers installed through custom providers are not tracked.
func (ps *ProviderSet) Buffer(identity component.Identity) (*EventBufferInterceptor, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	buffer, ok := ps.buffers[identity]
	return buffer, ok
}

// Components lists registered identities in pipeline order.
func (ps *ProviderSet) Components() []component.Identity {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	out := make([]component.Identity, 0, len(ps.providers))
	for identity := range ps.providers {
		out = append(out, identity)
	}
	sort.Slice(out, func(i, j int) bool { return pipelineRank(out[i]) < pipelineRank(out[j]) })
	return out
}

func pipelineRank(identity component.Identity) int {
	for i, id := range component.All() {
		if id == identity {
			return i
		}
	}
	return len(component.All())
}

// ChainConfig configures the default provider set.
type ChainConfig struct {
	Logger loggingpkg.ServiceLogger
	// Metrics enables the metrics stage on every chain when non-nil.
	Metrics *DispatchMetrics
	// TracingEnabled adds the tracing stage to every chain.
	TracingEnabled bool
	// Schemas enables the validation stage on event components when non-nil.
	Schemas schema.Registry
	// Buffer configures the per-component event buffers.
	Buffer BufferConfig
}

// NewDefaultProviderSet builds the standard chain for every component:
// logging, then metrics and tracing when enabled. Event components
// additionally get schema validation, version-ordered buffering and handler
// filtering, in that order. Each event component owns one buffer instance so
// its stream state survives chain recomposition.
func NewDefaultProviderSet(cfg ChainConfig, registries *RegistrySet) *ProviderSet {
	ps := NewProviderSet()

	logger := cfg.Logger
	if logger == nil {
		logger = loggingpkg.Nop()
	}

	for _, identity := range component.All() {
		entries := []ChainEntry{LoggingStage(logger)}
		if cfg.Metrics != nil {
			entries = append(entries, MetricsStage(cfg.Metrics))
		}
		if cfg.TracingEnabled {
			entries = append(entries, TracingStage())
		}

		if identity.IsEvent() {
			if cfg.Schemas != nil {
				entries = append(entries, ValidationStage(cfg.Schemas))
			}

			bufferCfg := cfg.Buffer
			if bufferCfg.Logger == nil {
				bufferCfg.Logger = logger
			}
			if bufferCfg.Monitor == nil && cfg.Metrics != nil {
				bufferCfg.Monitor = cfg.Metrics.BufferMonitor()
			}
			buffer := NewEventBuffer(bufferCfg)
			ps.buffers[identity] = buffer
			entries = append(entries, BufferStage(buffer))

			if registries != nil {
				entries = append(entries, FilterStage(NewEventFilter(registries.For(identity), logger)))
			}
		}

		ps.providers[identity] = NewChainProvider(identity, entries...)
	}
	return ps
}

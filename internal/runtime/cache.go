package runtime

import (
	"fmt"
	"sort"
	"sync"

	"github.com/relaykit/relay/internal/runtime/component"
	errspkg "github.com/relaykit/relay/internal/runtime/errors"
	handlerpkg "github.com/relaykit/relay/internal/runtime/handlers"
)

// RegistrySet keeps one handler registry per component identity, created
// lazily so callers can register handlers before or after wiring.
type RegistrySet struct {
	mu         sync.Mutex
	byIdentity map[component.Identity]*handlerpkg.Registry
}

// NewRegistrySet creates an empty set.
func NewRegistrySet() *RegistrySet {
	return &RegistrySet{byIdentity: make(map[component.Identity]*handlerpkg.Registry)}
}

// For returns the registry for identity, creating it on first use.
func (rs *RegistrySet) For(identity component.Identity) *handlerpkg.Registry {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	registry, ok := rs.byIdentity[identity]
	if !ok {
		registry = handlerpkg.NewRegistry(identity)
		rs.byIdentity[identity] = registry
	}
	return registry
}

// Lookup returns the registry for identity without creating one.
func (rs *RegistrySet) Lookup(identity component.Identity) (*handlerpkg.Registry, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	registry, ok := rs.byIdentity[identity]
	return registry, ok
}

// Components lists identities with a registry, in pipeline order.
func (rs *RegistrySet) Components() []component.Identity {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	out := make([]component.Identity, 0, len(rs.byIdentity))
	for identity := range rs.byIdentity {
		out = append(out, identity)
	}
	sort.Slice(out, func(i, j int) bool { return pipelineRank(out[i]) < pipelineRank(out[j]) })
	return out
}

// DispatcherCache memoizes one dispatcher per component identity, composing
// its interceptor chain on first request. It is an explicit handle: construct
// it once at startup and pass it to the call sites that dispatch.
type DispatcherCache struct {
	mu         sync.Mutex
	registries *RegistrySet
	providers  *ProviderSet
	opts       []DispatcherOption
	built      map[component.Identity]*Dispatcher
}

// NewDispatcherCache wires registries to providers. The opts apply to every
// dispatcher the cache composes; each dispatcher additionally gets its own
// stats container.
func NewDispatcherCache(registries *RegistrySet, providers *ProviderSet, opts ...DispatcherOption) (*DispatcherCache, error) {
	if registries == nil {
		return nil, errspkg.ErrRegistryRequired
	}
	if providers == nil {
		return nil, errspkg.ErrChainProviderRequired
	}
	return &DispatcherCache{
		registries: registries,
		providers:  providers,
		opts:       opts,
		built:      make(map[component.Identity]*Dispatcher),
	}, nil
}

// DispatcherFor returns the memoized dispatcher for identity, composing it on
// first use. Unknown identities and identities without a registered chain
// provider fail with *ComponentIdentityMissingError.
func (c *DispatcherCache) DispatcherFor(identity component.Identity) (*Dispatcher, error) {
	if !identity.Valid() {
		return nil, &errspkg.ComponentIdentityMissingError{Context: "dispatcher lookup"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if d, ok := c.built[identity]; ok {
		return d, nil
	}

	provider, ok := c.providers.For(identity)
	if !ok {
		return nil, &errspkg.ComponentIdentityMissingError{Context: fmt.Sprintf("chain provider for %s", identity)}
	}

	opts := make([]DispatcherOption, 0, len(c.opts)+1)
	opts = append(opts, WithDispatchStats(NewDispatchStats(identity)))
	opts = append(opts, c.opts...)

	d, err := NewDispatcher(c.registries.For(identity), provider.Entries(), opts...)
	if err != nil {
		return nil, err
	}
	c.built[identity] = d
	return d, nil
}

// Built returns the dispatchers composed so far, keyed by component.
func (c *DispatcherCache) Built() map[component.Identity]*Dispatcher {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[component.Identity]*Dispatcher, len(c.built))
	for identity, d := range c.built {
		out[identity] = d
	}
	return out
}

// Registries exposes the underlying registry set for handler registration.
func (c *DispatcherCache) Registries() *RegistrySet {
	return c.registries
}

// Buffer returns the shared event buffer for identity, when its chain has one.
func (c *DispatcherCache) Buffer(identity component.Identity) (*EventBufferInterceptor, bool) {
	return c.providers.Buffer(identity)
}

// PrimeStream sets the next expected version on identity's event buffer, for
// streams restored from snapshots.
func (c *DispatcherCache) PrimeStream(identity component.Identity, streamID string, nextVersion int64) error {
	buffer, ok := c.Buffer(identity)
	if !ok {
		return fmt.Errorf("relay: component %s has no event buffer", identity)
	}
	return buffer.Prime(streamID, nextVersion)
}

package runtime

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaykit/relay/internal/runtime/component"
	errspkg "github.com/relaykit/relay/internal/runtime/errors"
	"github.com/relaykit/relay/internal/runtime/schema"
)

func entryNames(entries []ChainEntry) []string {
	names := make([]string, len(entries))
	for i, entry := range entries {
		names[i] = entry.Name
	}
	return names
}

func TestChainProvider_EntriesReturnsCopy(t *testing.T) {
	var order []string
	provider := NewChainProvider(component.CommandHandler,
		recordingEntry(PriorityLogging, "logging", &order),
		recordingEntry(PriorityFilter, "filter", &order),
	)

	entries := provider.Entries()
	entries[0] = recordingEntry(PriorityLogging, "hijacked", &order)

	assert.Equal(t, []string{"logging", "filter"}, entryNames(provider.Entries()))
}

func TestProviderSet_RegisterAndLookup(t *testing.T) {
	set := NewProviderSet()
	provider := NewChainProvider(component.CommandHandler)

	require.NoError(t, set.Register(provider))

	got, ok := set.For(component.CommandHandler)
	require.True(t, ok)
	assert.Same(t, provider, got)

	_, ok = set.For(component.QueryView)
	assert.False(t, ok)
}

func TestProviderSet_RegisterValidation(t *testing.T) {
	set := NewProviderSet()

	err := set.Register(nil)
	assert.ErrorIs(t, err, errspkg.ErrChainProviderRequired)

	err = set.Register(NewChainProvider(component.Identity("NOT_A_COMPONENT")))
	assert.ErrorIs(t, err, errspkg.ErrComponentIdentityMissing)
}

func TestProviderSet_ComponentsInPipelineOrder(t *testing.T) {
	set := NewProviderSet()
	for _, identity := range []component.Identity{
		component.QueryView,
		component.CommandAPI,
		component.EventListener,
	} {
		require.NoError(t, set.Register(NewChainProvider(identity)))
	}

	assert.Equal(t, []component.Identity{
		component.CommandAPI,
		component.EventListener,
		component.QueryView,
	}, set.Components())
}

func TestNewDefaultProviderSet_MinimalChain(t *testing.T) {
	set := NewDefaultProviderSet(ChainConfig{}, nil)

	provider, ok := set.For(component.CommandHandler)
	require.True(t, ok)
	assert.Equal(t, []string{"logging"}, entryNames(provider.Entries()))

	// Without a registry set there is no filter stage, but event components
	// still buffer.
	provider, ok = set.For(component.EventProcessor)
	require.True(t, ok)
	assert.Equal(t, []string{"logging", "event_buffer"}, entryNames(provider.Entries()))
}

func TestNewDefaultProviderSet_FullChain(t *testing.T) {
	registries := NewRegistrySet()
	cfg := ChainConfig{
		Metrics:        NewDispatchMetrics(prometheus.NewRegistry()),
		TracingEnabled: true,
		Schemas:        schema.Funcs{},
	}
	set := NewDefaultProviderSet(cfg, registries)

	provider, ok := set.For(component.EventProcessor)
	require.True(t, ok)
	assert.Equal(t,
		[]string{"logging", "metrics", "tracing", "validation", "event_buffer", "event_filter"},
		entryNames(provider.Entries()))

	// Command components skip the event-only stages.
	provider, ok = set.For(component.CommandHandler)
	require.True(t, ok)
	assert.Equal(t, []string{"logging", "metrics", "tracing"}, entryNames(provider.Entries()))

	// Every component in the pipeline has a chain.
	assert.Equal(t, component.All(), set.Components())
}

func TestNewDefaultProviderSet_SharedBufferPerEventComponent(t *testing.T) {
	set := NewDefaultProviderSet(ChainConfig{}, NewRegistrySet())

	buffer, ok := set.Buffer(component.EventProcessor)
	require.True(t, ok)
	require.NotNil(t, buffer)

	_, ok = set.Buffer(component.CommandHandler)
	assert.False(t, ok)

	// Recomposing the chain reuses the same buffer, so parked stream state
	// survives.
	provider, _ := set.For(component.EventProcessor)
	var fromChain *EventBufferInterceptor
	for _, entry := range provider.Entries() {
		if entry.Name == "event_buffer" {
			fromChain = entry.Factory().(*EventBufferInterceptor)
		}
	}
	require.NotNil(t, fromChain)
	assert.Same(t, buffer, fromChain)

	other, ok := set.Buffer(component.EventListener)
	require.True(t, ok)
	assert.NotSame(t, buffer, other)
}

package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaykit/relay/internal/runtime/component"
	"github.com/relaykit/relay/internal/runtime/envelope"
	handlerpkg "github.com/relaykit/relay/internal/runtime/handlers"
)

func passThroughHandler(ctx context.Context, env *envelope.Envelope) (*envelope.Envelope, error) {
	return env, nil
}

func TestEventFilter_DropsEventsWithoutHandler(t *testing.T) {
	registry := handlerpkg.NewRegistry(component.EventProcessor)
	filter := NewEventFilter(registry, nil)

	nextCalled := false
	out, err := filter.Process(context.Background(), envelope.MustNew("user.registered", nil), func(ctx context.Context, env *envelope.Envelope) (*envelope.Envelope, error) {
		nextCalled = true
		return env, nil
	})

	require.NoError(t, err)
	assert.Nil(t, out)
	assert.False(t, nextCalled)
}

func TestEventFilter_DropsEventsRejectedByPredicate(t *testing.T) {
	registry := handlerpkg.NewRegistry(component.EventProcessor)
	registry.MustRegister("user.registered", passThroughHandler, handlerpkg.WithEventFilter(func(env *envelope.Envelope) bool {
		return env.UserID() == "alice"
	}))
	filter := NewEventFilter(registry, nil)

	env := envelope.MustNew("user.registered", nil, envelope.WithUserID("bob"))
	nextCalled := false
	out, err := filter.Process(context.Background(), env, func(ctx context.Context, env *envelope.Envelope) (*envelope.Envelope, error) {
		nextCalled = true
		return env, nil
	})

	require.NoError(t, err)
	assert.Nil(t, out)
	assert.False(t, nextCalled)
}

func TestEventFilter_ForwardsAcceptedEvents(t *testing.T) {
	registry := handlerpkg.NewRegistry(component.EventProcessor)
	registry.MustRegister("user.registered", passThroughHandler, handlerpkg.WithEventFilter(func(env *envelope.Envelope) bool {
		return env.UserID() == "alice"
	}))
	filter := NewEventFilter(registry, nil)

	env := envelope.MustNew("user.registered", nil, envelope.WithUserID("alice"))
	var seen *envelope.Envelope
	out, err := filter.Process(context.Background(), env, func(ctx context.Context, env *envelope.Envelope) (*envelope.Envelope, error) {
		seen = env
		return env, nil
	})

	require.NoError(t, err)
	assert.Same(t, env, out)
	assert.Same(t, env, seen)
}

func TestEventFilter_ForwardsWhenHandlerHasNoPredicate(t *testing.T) {
	registry := handlerpkg.NewRegistry(component.EventProcessor)
	registry.MustRegister("user.registered", passThroughHandler)
	filter := NewEventFilter(registry, nil)

	env := envelope.MustNew("user.registered", nil)
	out, err := filter.Process(context.Background(), env, func(ctx context.Context, env *envelope.Envelope) (*envelope.Envelope, error) {
		return env, nil
	})

	require.NoError(t, err)
	assert.Same(t, env, out)
}

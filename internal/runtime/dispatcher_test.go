package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaykit/relay/internal/runtime/component"
	"github.com/relaykit/relay/internal/runtime/envelope"
	errspkg "github.com/relaykit/relay/internal/runtime/errors"
	handlerpkg "github.com/relaykit/relay/internal/runtime/handlers"
)

func TestDispatcher_InvokesHandlerOnceWithSameEnvelope(t *testing.T) {
	registry := handlerpkg.NewRegistry(component.CommandHandler)

	var calls int
	var seen *envelope.Envelope
	registry.MustRegister("user.register", func(ctx context.Context, env *envelope.Envelope) (*envelope.Envelope, error) {
		calls++
		seen = env
		return env.WithName("user.registered"), nil
	})

	d, err := NewDispatcher(registry, nil)
	require.NoError(t, err)

	env := envelope.MustNew("user.register", []byte(`{"email":"ada@example.com"}`))
	out, err := d.Dispatch(context.Background(), env)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Same(t, env, seen)
	require.NotNil(t, out)
	assert.Equal(t, "user.registered", out.Name())
	assert.Equal(t, env.ID(), seen.ID())
}

func TestDispatcher_HandlerNotFound(t *testing.T) {
	registry := handlerpkg.NewRegistry(component.CommandHandler)

	d, err := NewDispatcher(registry, nil)
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), envelope.MustNew("user.register", nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, errspkg.ErrHandlerNotFound)

	var notFound *errspkg.HandlerNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, string(component.CommandHandler), notFound.Component)
	assert.Equal(t, "user.register", notFound.Name)
}

func TestDispatcher_NilEnvelope(t *testing.T) {
	registry := handlerpkg.NewRegistry(component.CommandHandler)
	d, err := NewDispatcher(registry, nil)
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), nil)
	assert.ErrorIs(t, err, errspkg.ErrEnvelopeRequired)
}

func TestDispatcher_NilRegistry(t *testing.T) {
	_, err := NewDispatcher(nil, nil)
	assert.ErrorIs(t, err, errspkg.ErrRegistryRequired)
}

func TestDispatcher_ComponentInHandlerContext(t *testing.T) {
	registry := handlerpkg.NewRegistry(component.EventProcessor)

	var identity component.Identity
	var ok bool
	registry.MustRegister("user.registered", func(ctx context.Context, env *envelope.Envelope) (*envelope.Envelope, error) {
		identity, ok = handlerpkg.ComponentFromContext(ctx)
		return nil, nil
	})

	d, err := NewDispatcher(registry, nil)
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), envelope.MustNew("user.registered", nil))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, component.EventProcessor, identity)
}

func TestDispatcher_ChainRunsBeforeHandler(t *testing.T) {
	registry := handlerpkg.NewRegistry(component.CommandHandler)

	var order []string
	registry.MustRegister("user.register", func(ctx context.Context, env *envelope.Envelope) (*envelope.Envelope, error) {
		order = append(order, "handler")
		return env, nil
	})

	entries := []ChainEntry{
		recordingEntry(PriorityFilter, "filter", &order),
		recordingEntry(PriorityLogging, "logging", &order),
	}

	d, err := NewDispatcher(registry, entries)
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), envelope.MustNew("user.register", nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"logging", "filter", "handler"}, order)
}

func TestDispatcher_RenamingStageReroutes(t *testing.T) {
	registry := handlerpkg.NewRegistry(component.CommandHandler)

	var invoked string
	registry.MustRegister("user.register.v2", func(ctx context.Context, env *envelope.Envelope) (*envelope.Envelope, error) {
		invoked = env.Name()
		return nil, nil
	})

	rename := ChainEntry{
		Priority: 500,
		Name:     "rename",
		Factory: func() Interceptor {
			return InterceptorFunc(func(ctx context.Context, env *envelope.Envelope, next Next) (*envelope.Envelope, error) {
				return next(ctx, env.WithName(env.Name()+".v2"))
			})
		},
	}

	d, err := NewDispatcher(registry, []ChainEntry{rename})
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), envelope.MustNew("user.register", nil))
	require.NoError(t, err)
	assert.Equal(t, "user.register.v2", invoked)
}

func TestDispatcher_HooksOnDone(t *testing.T) {
	registry := handlerpkg.NewRegistry(component.CommandHandler)
	registry.MustRegister("user.register", func(ctx context.Context, env *envelope.Envelope) (*envelope.Envelope, error) {
		return env.WithName("user.registered"), nil
	})

	var started, done bool
	var doneCtx DispatchContext
	var response *envelope.Envelope
	hooks := DispatchHooks{
		OnStart: func(dc DispatchContext) { started = true },
		OnDone: func(dc DispatchContext, resp *envelope.Envelope) {
			done = true
			doneCtx = dc
			response = resp
		},
		OnError: func(dc DispatchContext, err error) { t.Errorf("unexpected OnError: %v", err) },
	}

	d, err := NewDispatcher(registry, nil, WithDispatchHooks(hooks))
	require.NoError(t, err)

	env := envelope.MustNew("user.register", nil)
	_, err = d.Dispatch(context.Background(), env)
	require.NoError(t, err)

	assert.True(t, started)
	assert.True(t, done)
	require.NotNil(t, response)
	assert.Equal(t, "user.registered", response.Name())
	assert.Equal(t, component.CommandHandler, doneCtx.Component)
	assert.Equal(t, env.ID(), doneCtx.EnvelopeID)
	assert.False(t, doneCtx.StartedAt.IsZero())
}

func TestDispatcher_HooksOnError(t *testing.T) {
	registry := handlerpkg.NewRegistry(component.CommandHandler)
	boom := errors.New("boom")
	registry.MustRegister("user.register", func(ctx context.Context, env *envelope.Envelope) (*envelope.Envelope, error) {
		return nil, boom
	})

	var hookErr error
	hooks := DispatchHooks{
		OnDone:  func(dc DispatchContext, resp *envelope.Envelope) { t.Error("unexpected OnDone") },
		OnError: func(dc DispatchContext, err error) { hookErr = err },
	}

	d, err := NewDispatcher(registry, nil, WithDispatchHooks(hooks))
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), envelope.MustNew("user.register", nil))
	assert.Equal(t, boom, err)
	assert.Equal(t, boom, hookErr)
}

func TestDispatcher_HooksOnDoneNilResponseWhenDropped(t *testing.T) {
	registry := handlerpkg.NewRegistry(component.EventProcessor)

	drop := ChainEntry{
		Priority: PriorityFilter,
		Name:     "drop",
		Factory: func() Interceptor {
			return InterceptorFunc(func(ctx context.Context, env *envelope.Envelope, next Next) (*envelope.Envelope, error) {
				return nil, nil
			})
		},
	}

	var done bool
	var response *envelope.Envelope
	hooks := DispatchHooks{
		OnDone: func(dc DispatchContext, resp *envelope.Envelope) {
			done = true
			response = resp
		},
	}

	d, err := NewDispatcher(registry, []ChainEntry{drop}, WithDispatchHooks(hooks))
	require.NoError(t, err)

	out, err := d.Dispatch(context.Background(), envelope.MustNew("user.registered", nil))
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.True(t, done)
	assert.Nil(t, response)
}

func TestDispatcher_StatsTrackOutcomes(t *testing.T) {
	registry := handlerpkg.NewRegistry(component.CommandHandler)
	registry.MustRegister("user.register", func(ctx context.Context, env *envelope.Envelope) (*envelope.Envelope, error) {
		return env, nil
	})
	registry.MustRegister("user.delete", func(ctx context.Context, env *envelope.Envelope) (*envelope.Envelope, error) {
		return nil, errors.New("boom")
	})
	registry.MustRegister("user.ping", func(ctx context.Context, env *envelope.Envelope) (*envelope.Envelope, error) {
		return nil, nil
	})

	stats := NewDispatchStats(component.CommandHandler)
	d, err := NewDispatcher(registry, nil, WithDispatchStats(stats))
	require.NoError(t, err)
	assert.Same(t, stats, d.Stats())

	ctx := context.Background()
	_, err = d.Dispatch(ctx, envelope.MustNew("user.register", nil))
	require.NoError(t, err)
	_, err = d.Dispatch(ctx, envelope.MustNew("user.delete", nil))
	require.Error(t, err)
	_, err = d.Dispatch(ctx, envelope.MustNew("user.ping", nil))
	require.NoError(t, err)

	stats.mu.Lock()
	defer stats.mu.Unlock()
	assert.Equal(t, uint64(3), stats.DispatchesTotal)
	assert.Equal(t, uint64(1), stats.DispatchesFailed)
	assert.Equal(t, uint64(1), stats.DispatchesDropped)
	require.Contains(t, stats.Names, "user.delete")
	assert.Equal(t, uint64(1), stats.Names["user.delete"].Failed)
	require.Contains(t, stats.Names, "user.ping")
	assert.Equal(t, uint64(1), stats.Names["user.ping"].Dropped)
	assert.Equal(t, uint64(0), stats.Backlog.InFlight)
	assert.Equal(t, uint64(1), stats.Backlog.MaxInFlight)
}

func TestDispatcher_CustomErrorClassifier(t *testing.T) {
	registry := handlerpkg.NewRegistry(component.CommandHandler)
	registry.MustRegister("user.register", func(ctx context.Context, env *envelope.Envelope) (*envelope.Envelope, error) {
		return nil, errors.New("downstream timeout")
	})

	stats := NewDispatchStats(component.CommandHandler)
	classifier := func(err error) ErrorCategory {
		if err == nil {
			return ErrorCategoryNone
		}
		return ErrorCategoryDownstream
	}

	d, err := NewDispatcher(registry, nil, WithDispatchStats(stats), WithErrorClassifier(classifier))
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), envelope.MustNew("user.register", nil))
	require.Error(t, err)

	stats.mu.Lock()
	defer stats.mu.Unlock()
	assert.Equal(t, uint64(1), stats.Errors.Downstream)
}

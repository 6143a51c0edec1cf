package runtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaykit/relay/internal/runtime/component"
	configpkg "github.com/relaykit/relay/internal/runtime/config"
	"github.com/relaykit/relay/internal/runtime/envelope"
)

func TestStartDebugServerDisabledByDefault(t *testing.T) {
	svc := newTestService(t)
	svc.StartDebugServer()
	assert.Empty(t, svc.httpServers)
}

func TestStartDebugServerMountsEndpoints(t *testing.T) {
	conf := &configpkg.Config{Transport: "channel", DebugEnabled: true, DebugPort: 8099}
	f := newServiceFixture(t, conf, ServiceDependencies{})

	f.svc.StartDebugServer()

	mux := f.svc.httpServers[8099]
	require.NotNil(t, mux)

	for _, path := range []string{"/api/dispatchers", "/api/routes", "/api/buffers"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		_, pattern := mux.Handler(req)
		assert.Equal(t, path, pattern)
	}
}

func TestStartDebugServerDefaultsPort(t *testing.T) {
	conf := &configpkg.Config{Transport: "channel", DebugEnabled: true}
	f := newServiceFixture(t, conf, ServiceDependencies{})

	f.svc.StartDebugServer()
	assert.NotNil(t, f.svc.httpServers[8081])
}

func TestDebugHandlerServesJSON(t *testing.T) {
	svc := newTestService(t)

	require.NoError(t, svc.Registry(component.CommandHandler).Register("user.create", func(context.Context, *envelope.Envelope) (*envelope.Envelope, error) {
		return nil, nil
	}))
	dispatcher, err := svc.DispatcherFor(component.CommandHandler)
	require.NoError(t, err)
	_, err = dispatcher.Dispatch(context.Background(), envelope.MustNew("user.create", []byte(`{}`)))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/dispatchers", nil)
	rec := httptest.NewRecorder()
	svc.debugHandler(func() any { return svc.dispatcherInfos() }).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var infos []DispatcherInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, component.CommandHandler, infos[0].Component)
	assert.Equal(t, []string{"user.create"}, infos[0].Handlers)
	assert.NotNil(t, infos[0].Stats)
}

func TestDebugHandlerCORS(t *testing.T) {
	newDebugService := func(t *testing.T, origins []string) *Service {
		conf := &configpkg.Config{Transport: "channel", DebugCORSAllowedOrigins: origins}
		return newServiceFixture(t, conf, ServiceDependencies{}).svc
	}

	t.Run("no origins configured", func(t *testing.T) {
		svc := newDebugService(t, nil)
		req := httptest.NewRequest(http.MethodGet, "/api/routes", nil)
		req.Header.Set("Origin", "https://debug.example.com")
		rec := httptest.NewRecorder()
		svc.debugHandler(func() any { return svc.Routes() }).ServeHTTP(rec, req)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("wildcard", func(t *testing.T) {
		svc := newDebugService(t, []string{"*"})
		req := httptest.NewRequest(http.MethodGet, "/api/routes", nil)
		req.Header.Set("Origin", "https://debug.example.com")
		rec := httptest.NewRecorder()
		svc.debugHandler(func() any { return svc.Routes() }).ServeHTTP(rec, req)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("matching origin", func(t *testing.T) {
		svc := newDebugService(t, []string{"https://debug.example.com"})
		req := httptest.NewRequest(http.MethodGet, "/api/routes", nil)
		req.Header.Set("Origin", "https://debug.example.com")
		rec := httptest.NewRecorder()
		svc.debugHandler(func() any { return svc.Routes() }).ServeHTTP(rec, req)
		assert.Equal(t, "https://debug.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("disallowed origin", func(t *testing.T) {
		svc := newDebugService(t, []string{"https://debug.example.com"})
		req := httptest.NewRequest(http.MethodGet, "/api/routes", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec := httptest.NewRecorder()
		svc.debugHandler(func() any { return svc.Routes() }).ServeHTTP(rec, req)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		svc := newDebugService(t, []string{"*"})
		req := httptest.NewRequest(http.MethodOptions, "/api/routes", nil)
		req.Header.Set("Origin", "https://debug.example.com")
		rec := httptest.NewRecorder()
		svc.debugHandler(func() any { return svc.Routes() }).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "GET, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
		assert.Empty(t, rec.Body.Bytes())
	})
}

func TestDispatcherInfosFollowPipelineOrder(t *testing.T) {
	svc := newTestService(t)

	// Build dispatchers out of order; the debug view sorts by pipeline rank.
	for _, identity := range []component.Identity{component.QueryView, component.EventProcessor, component.CommandAPI} {
		_, err := svc.DispatcherFor(identity)
		require.NoError(t, err)
	}

	infos := svc.dispatcherInfos()
	require.Len(t, infos, 3)
	assert.Equal(t, component.CommandAPI, infos[0].Component)
	assert.Equal(t, component.EventProcessor, infos[1].Component)
	assert.Equal(t, component.QueryView, infos[2].Component)
}

func TestBufferInfosCoverEventComponents(t *testing.T) {
	svc := newTestService(t)

	require.NoError(t, svc.PrimeStream(component.EventProcessor, "550e8400-e29b-41d4-a716-446655440000", 4))

	infos := svc.bufferInfos()
	require.Len(t, infos, 2)
	assert.Equal(t, component.EventListener, infos[0].Component)
	assert.Equal(t, component.EventProcessor, infos[1].Component)

	state, ok := infos[1].Streams["550e8400-e29b-41d4-a716-446655440000"]
	require.True(t, ok)
	assert.Equal(t, int64(4), state.ExpectedVersion)
	assert.Empty(t, state.Pending)
}

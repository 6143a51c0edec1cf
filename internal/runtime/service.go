package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/plugin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/relaykit/relay/internal/runtime/component"
	configpkg "github.com/relaykit/relay/internal/runtime/config"
	errspkg "github.com/relaykit/relay/internal/runtime/errors"
	handlerpkg "github.com/relaykit/relay/internal/runtime/handlers"
	loggingpkg "github.com/relaykit/relay/internal/runtime/logging"
	"github.com/relaykit/relay/internal/runtime/schema"
	transportpkg "github.com/relaykit/relay/transport"
)

var routerRun = func(router *message.Router, ctx context.Context) error {
	return router.Run(ctx)
}

// OutboxStore persists handler responses before they leave the process, so a
// relay can forward them even when the broker publish fails.
type OutboxStore interface {
	StoreOutgoingMessage(ctx context.Context, name, uuid, payload string) error
}

// ServiceDependencies holds the optional collaborators a Service can use.
// Leave fields nil to skip the related wiring.
type ServiceDependencies struct {
	// Schemas validates envelope payloads on send and on event chains. Nil
	// skips the validation stage and validates nothing at the facades.
	Schemas schema.Registry

	// Outbox persists handler responses when set.
	Outbox OutboxStore

	// Hooks observe every dispatch on every component.
	Hooks DispatchHooks

	// ChainProviders replace the default interceptor chain for their
	// components.
	ChainProviders []ChainProvider

	// DispatcherOptions apply to every dispatcher the service builds.
	DispatcherOptions []DispatcherOption

	// Middlewares are appended after the default middleware chain.
	Middlewares []MiddlewareRegistration
	// DisableDefaultMiddlewares skips the default middleware chain when true.
	DisableDefaultMiddlewares bool

	// Transport overrides the registry lookup with a pre-built transport.
	Transport *transportpkg.Transport
	// TransportRegistry resolves Config.Transport. Nil means the default
	// registry.
	TransportRegistry *transportpkg.Registry

	// ErrorClassifier buckets dispatch errors in stats snapshots.
	ErrorClassifier ErrorClassifier

	// MetricsRegisterer receives the dispatch collectors when metrics are
	// enabled. Nil means prometheus.DefaultRegisterer.
	MetricsRegisterer prometheus.Registerer

	// TracingEnabled adds the OpenTelemetry stage to every chain.
	TracingEnabled bool
}

// Service wires a Watermill router, a transport, and the per-component
// dispatcher cache behind one lifecycle.
type Service struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	publisher  message.Publisher
	subscriber message.Subscriber
	router     *message.Router

	schemas           schema.Registry
	registries        *RegistrySet
	providers         *ProviderSet
	cache             *DispatcherCache
	metrics           *DispatchMetrics
	metricsRegisterer prometheus.Registerer
	outbox            OutboxStore

	routes   []*RouteInfo
	routesMu sync.RWMutex

	httpServers   map[int]*http.ServeMux
	httpServersMu sync.Mutex

	errorClassifier ErrorClassifier
}

// TryNewService constructs a Service for the supplied configuration. Register
// handlers and routes on the returned Service before calling Start.
func TryNewService(ctx context.Context, conf *configpkg.Config, log loggingpkg.ServiceLogger, deps ServiceDependencies) (*Service, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if log == nil {
		log = loggingpkg.Nop()
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	wmLogger := loggingpkg.NewWatermillAdapter(log)
	log.Info("Creating relay service", loggingpkg.LogFields{
		"transport": conf.Transport,
		"config":    conf,
	})

	s := &Service{
		Conf:    conf,
		Logger:  log,
		schemas: deps.Schemas,
		outbox:  deps.Outbox,
	}

	if deps.ErrorClassifier != nil {
		s.errorClassifier = deps.ErrorClassifier
	} else {
		s.errorClassifier = defaultErrorClassifier
	}

	if deps.Transport != nil {
		s.publisher = deps.Transport.Publisher
		s.subscriber = deps.Transport.Subscriber
	} else {
		registry := deps.TransportRegistry
		if registry == nil {
			registry = transportpkg.DefaultRegistry
		}
		built, err := registry.Build(ctx, conf, wmLogger)
		if err != nil {
			return nil, fmt.Errorf("build transport %q: %w", conf.Transport, err)
		}
		s.publisher = built.Publisher
		s.subscriber = built.Subscriber
	}

	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		return nil, err
	}
	s.router = router
	s.router.AddPlugin(plugin.SignalsHandler)

	s.metricsRegisterer = deps.MetricsRegisterer
	if s.metricsRegisterer == nil {
		s.metricsRegisterer = prometheus.DefaultRegisterer
	}
	if conf.MetricsEnabled {
		s.metrics = NewDispatchMetrics(s.metricsRegisterer)
		if err := s.metrics.Register(); err != nil {
			return nil, fmt.Errorf("register dispatch metrics: %w", err)
		}
	}

	s.registries = NewRegistrySet()
	s.providers = NewDefaultProviderSet(ChainConfig{
		Logger:         log,
		Metrics:        s.metrics,
		TracingEnabled: deps.TracingEnabled,
		Schemas:        deps.Schemas,
		Buffer: BufferConfig{
			InitialVersion: conf.BufferInitialVersion,
			MaxPending:     conf.BufferMaxPending,
			WarnPending:    conf.BufferWarnPending,
			Logger:         log,
		},
	}, s.registries)
	for _, provider := range deps.ChainProviders {
		if err := s.providers.Register(provider); err != nil {
			return nil, err
		}
	}

	opts := make([]DispatcherOption, 0, len(deps.DispatcherOptions)+2)
	if deps.Hooks.OnStart != nil || deps.Hooks.OnDone != nil || deps.Hooks.OnError != nil {
		opts = append(opts, WithDispatchHooks(deps.Hooks))
	}
	opts = append(opts, WithErrorClassifier(s.errorClassifier))
	opts = append(opts, deps.DispatcherOptions...)

	s.cache, err = NewDispatcherCache(s.registries, s.providers, opts...)
	if err != nil {
		return nil, err
	}

	if err := s.registerConfiguredMiddlewares(deps); err != nil {
		return nil, err
	}

	return s, nil
}

// NewService constructs a Service and panics on wiring errors. Use
// TryNewService when startup failures should be handled instead.
func NewService(ctx context.Context, conf *configpkg.Config, log loggingpkg.ServiceLogger, deps ServiceDependencies) *Service {
	s, err := TryNewService(ctx, conf, log, deps)
	if err != nil {
		panic(err)
	}
	return s
}

// Start runs the underlying Watermill router until the provided context is
// cancelled.
func (s *Service) Start(ctx context.Context) error {
	s.StartDebugServer()
	s.startHTTPServers()
	return routerRun(s.router, ctx)
}

// Running returns a channel that closes once the router is running and all
// routes are subscribed.
func (s *Service) Running() <-chan struct{} {
	return s.router.Running()
}

// Close shuts the router and the transport down.
func (s *Service) Close() error {
	errs := []error{s.router.Close()}
	if s.publisher != nil {
		errs = append(errs, s.publisher.Close())
	}
	if s.subscriber != nil {
		errs = append(errs, s.subscriber.Close())
	}
	return errors.Join(errs...)
}

// Registry returns the handler registry for identity, creating it on first
// use.
func (s *Service) Registry(identity component.Identity) *handlerpkg.Registry {
	return s.registries.For(identity)
}

// Dispatchers exposes the per-component dispatcher cache.
func (s *Service) Dispatchers() *DispatcherCache {
	return s.cache
}

// DispatcherFor returns the memoized dispatcher for identity.
func (s *Service) DispatcherFor(identity component.Identity) (*Dispatcher, error) {
	return s.cache.DispatcherFor(identity)
}

// Sender builds a fire-and-forget facade dispatching under identity.
func (s *Service) Sender(identity component.Identity) (*Sender, error) {
	return NewSender(SenderConfig{
		Cache:        s.cache,
		Component:    identity,
		Schemas:      s.schemasOrDefault(),
		SystemUserID: s.Conf.SystemUserID,
	})
}

// Requester builds a request/response facade dispatching under identity.
func (s *Service) Requester(identity component.Identity) (*Requester, error) {
	return NewRequester(SenderConfig{
		Cache:        s.cache,
		Component:    identity,
		Schemas:      s.schemasOrDefault(),
		SystemUserID: s.Conf.SystemUserID,
	})
}

// PrimeStream seeds the event buffer of identity with the next expected
// version for a stream, typically after a projection rebuild.
func (s *Service) PrimeStream(identity component.Identity, streamID string, nextVersion int64) error {
	return s.cache.PrimeStream(identity, streamID, nextVersion)
}

// Metrics returns the dispatch collectors, or nil when metrics are disabled.
func (s *Service) Metrics() *DispatchMetrics {
	return s.metrics
}

func (s *Service) schemasOrDefault() schema.Registry {
	if s.schemas != nil {
		return s.schemas
	}
	return schema.Funcs{}
}

func (s *Service) registerConfiguredMiddlewares(deps ServiceDependencies) error {
	var defaults []MiddlewareRegistration
	if !deps.DisableDefaultMiddlewares {
		defaults = DefaultMiddlewares()
	}
	registrations := make([]MiddlewareRegistration, 0, len(defaults)+len(deps.Middlewares))
	registrations = append(registrations, defaults...)
	registrations = append(registrations, deps.Middlewares...)

	for _, reg := range registrations {
		if err := s.RegisterMiddleware(reg); err != nil {
			name := reg.Name
			if name == "" {
				name = "anonymous_middleware"
			}
			return fmt.Errorf("register middleware %s: %w", name, err)
		}
	}
	return nil
}

func (s *Service) getErrorClassifier() ErrorClassifier {
	if s.errorClassifier == nil {
		return defaultErrorClassifier
	}
	return s.errorClassifier
}

// RegisterHTTPHandler mounts handler on the mux served at port once Start
// runs.
func (s *Service) RegisterHTTPHandler(port int, pattern string, handler http.Handler) {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	if s.httpServers == nil {
		s.httpServers = make(map[int]*http.ServeMux)
	}

	mux, ok := s.httpServers[port]
	if !ok {
		mux = http.NewServeMux()
		s.httpServers[port] = mux
	}

	mux.Handle(pattern, handler)
}

func (s *Service) startHTTPServers() {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	for port, mux := range s.httpServers {
		addr := fmt.Sprintf(":%d", port)
		s.Logger.Info("Starting HTTP server", loggingpkg.LogFields{"address": addr})
		go func(addr string, handler http.Handler) {
			if err := http.ListenAndServe(addr, handler); err != nil {
				s.Logger.Error("Failed to start HTTP server", err, loggingpkg.LogFields{"address": addr})
			}
		}(addr, mux)
	}
}

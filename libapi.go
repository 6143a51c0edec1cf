package relay

import (
	"google.golang.org/protobuf/proto"

	runtimepkg "github.com/relaykit/relay/internal/runtime"
	ce "github.com/relaykit/relay/internal/runtime/cloudevents"
	"github.com/relaykit/relay/internal/runtime/component"
	configpkg "github.com/relaykit/relay/internal/runtime/config"
	envelopepkg "github.com/relaykit/relay/internal/runtime/envelope"
	errspkg "github.com/relaykit/relay/internal/runtime/errors"
	handlerpkg "github.com/relaykit/relay/internal/runtime/handlers"
	idspkg "github.com/relaykit/relay/internal/runtime/ids"
	jsoncodec "github.com/relaykit/relay/internal/runtime/jsoncodec"
	loggingpkg "github.com/relaykit/relay/internal/runtime/logging"
	metadatapkg "github.com/relaykit/relay/internal/runtime/metadata"
	schemapkg "github.com/relaykit/relay/internal/runtime/schema"
	transportpkg "github.com/relaykit/relay/transport"
)

type (
	Config              = configpkg.Config
	Service             = runtimepkg.Service
	ServiceDependencies = runtimepkg.ServiceDependencies
	OutboxStore         = runtimepkg.OutboxStore

	// Envelope and its construction options.
	Envelope       = envelopepkg.Envelope
	EnvelopeOption = envelopepkg.Option

	// Component identity keys the per-role dispatchers.
	ComponentIdentity = component.Identity

	// Dispatch core.
	Dispatcher       = runtimepkg.Dispatcher
	DispatcherOption = runtimepkg.DispatcherOption
	DispatcherCache  = runtimepkg.DispatcherCache
	RegistrySet      = runtimepkg.RegistrySet

	// Interceptor chains.
	Interceptor         = runtimepkg.Interceptor
	InterceptorFunc     = runtimepkg.InterceptorFunc
	Next                = runtimepkg.Next
	ChainEntry          = runtimepkg.ChainEntry
	ChainProvider       = runtimepkg.ChainProvider
	StaticChainProvider = runtimepkg.StaticChainProvider
	ChainConfig         = runtimepkg.ChainConfig
	ProviderSet         = runtimepkg.ProviderSet

	// Event buffering and filtering stages.
	EventBufferInterceptor = runtimepkg.EventBufferInterceptor
	BufferConfig           = runtimepkg.BufferConfig
	BufferMonitor          = runtimepkg.BufferMonitor
	BufferStreamState      = runtimepkg.BufferStreamState
	EventFilterInterceptor = runtimepkg.EventFilterInterceptor

	// Producing facades.
	Sender             = runtimepkg.Sender
	Requester          = runtimepkg.Requester
	SenderConfig       = runtimepkg.SenderConfig
	ValidationStrategy = runtimepkg.ValidationStrategy

	// Handler registration.
	Handler         = handlerpkg.Handler
	HandlerRegistry = handlerpkg.Registry
	HandlerOption   = handlerpkg.Option
	EventFilter     = handlerpkg.EventFilter

	JSONFunc[T any]            = handlerpkg.JSONFunc[T]
	ProtoFunc[T proto.Message] = handlerpkg.ProtoFunc[T]

	EventRouteRegistration     = runtimepkg.EventRouteRegistration
	MessageHandlerRegistration = runtimepkg.MessageHandlerRegistration
	RouteInfo                  = runtimepkg.RouteInfo

	// Dispatch observation.
	DispatchContext = runtimepkg.DispatchContext
	DispatchHooks   = runtimepkg.DispatchHooks
	DispatchStats   = runtimepkg.DispatchStats
	DispatchMetrics = runtimepkg.DispatchMetrics
	ErrorClassifier = runtimepkg.ErrorClassifier
	ErrorCategory   = runtimepkg.ErrorCategory

	MiddlewareBuilder      = runtimepkg.MiddlewareBuilder
	MiddlewareRegistration = runtimepkg.MiddlewareRegistration
	RetryMiddlewareConfig  = runtimepkg.RetryMiddlewareConfig

	Producer = runtimepkg.Producer

	Metadata = metadatapkg.Metadata

	LogFields                 = loggingpkg.LogFields
	ServiceLogger             = loggingpkg.ServiceLogger
	EntryLogger               = loggingpkg.EntryLogger
	EntryLoggerAdapter[T any] = loggingpkg.EntryLoggerAdapter[T]

	// Schema validation.
	SchemaRegistry     = schemapkg.Registry
	SchemaFuncs        = schemapkg.Funcs
	SchemaRule         = schemapkg.Rule
	SchemaRuleRegistry = schemapkg.RuleRegistry
	ValidationResult   = schemapkg.ValidationResult
	ValidationError    = schemapkg.ValidationError

	// Error types.
	UnprocessableEventError       = runtimepkg.UnprocessableEventError
	HandlerNotFoundError          = errspkg.HandlerNotFoundError
	EnvelopeValidationError       = errspkg.EnvelopeValidationError
	FieldError                    = errspkg.FieldError
	ComponentIdentityMissingError = errspkg.ComponentIdentityMissingError
	PayloadTypeError              = errspkg.PayloadTypeError
	BufferFullError               = errspkg.BufferFullError
	ConfigValidationError         = errspkg.ConfigValidationError

	// CloudEvents interop.
	Event                          = ce.Event
	EventHandler                   = runtimepkg.EventHandler
	EventContext                   = runtimepkg.EventContext
	PublishOption                  = runtimepkg.PublishOption
	CloudEventsHandlerRegistration = runtimepkg.CloudEventsHandlerRegistration
	RetryAfterError                = ce.RetryAfterError
	DeadLetterError                = ce.DeadLetterError

	// Modular transports.
	Transport                = transportpkg.Transport
	TransportBuilder         = transportpkg.Builder
	TransportConfig          = transportpkg.Config
	TransportRegistry        = transportpkg.Registry
	TransportCapabilities    = transportpkg.Capabilities
	TransportDLQManager      = transportpkg.DLQManager
	TransportQueueIntrospect = transportpkg.QueueIntrospector
	TransportDelayedPub      = transportpkg.DelayedPublisher
)

// Component identities, in pipeline order.
const (
	CommandAPI        = component.CommandAPI
	CommandController = component.CommandController
	CommandHandler    = component.CommandHandler
	EventListener     = component.EventListener
	EventProcessor    = component.EventProcessor
	QueryAPI          = component.QueryAPI
	QueryController   = component.QueryController
	QueryView         = component.QueryView
)

// Chain stage priorities. Custom entries slot anywhere between them.
const (
	PriorityLogging    = runtimepkg.PriorityLogging
	PriorityMetrics    = runtimepkg.PriorityMetrics
	PriorityTracing    = runtimepkg.PriorityTracing
	PriorityValidation = runtimepkg.PriorityValidation
	PriorityBuffer     = runtimepkg.PriorityBuffer
	PriorityFilter     = runtimepkg.PriorityFilter
)

// Error category constants for ErrorClassifier.
const (
	ErrorCategoryNone       = runtimepkg.ErrorCategoryNone
	ErrorCategoryValidation = runtimepkg.ErrorCategoryValidation
	ErrorCategoryTransport  = runtimepkg.ErrorCategoryTransport
	ErrorCategoryDownstream = runtimepkg.ErrorCategoryDownstream
	ErrorCategoryOther      = runtimepkg.ErrorCategoryOther
)

// DefaultSystemUserID is stamped by SendAsAdmin when Config.SystemUserID is
// empty.
const DefaultSystemUserID = runtimepkg.DefaultSystemUserID

// Metadata keys used on the wire. Envelope headers round-trip through these.
const (
	MetadataKeyEnvelopeID    = metadatapkg.KeyEnvelopeID
	MetadataKeyMessageName   = metadatapkg.KeyMessageName
	MetadataKeyCorrelationID = metadatapkg.KeyCorrelationID
	MetadataKeyCausationIDs  = metadatapkg.KeyCausationIDs
	MetadataKeyUserID        = metadatapkg.KeyUserID
	MetadataKeyStreamID      = metadatapkg.KeyStreamID
	MetadataKeyStreamVersion = metadatapkg.KeyStreamVersion
	MetadataKeyTraceID       = metadatapkg.KeyTraceID
	MetadataKeySpanID        = metadatapkg.KeySpanID
)

var (
	NewService     = runtimepkg.NewService
	TryNewService  = runtimepkg.TryNewService
	LoadConfig     = configpkg.LoadFromEnv
	ValidateConfig = configpkg.ValidateConfig

	// Envelope construction and wire format.
	NewEnvelope          = envelopepkg.New
	MustNewEnvelope      = envelopepkg.MustNew
	NewEnvelopeWithValue = envelopepkg.NewWithValue
	MarshalEnvelope      = envelopepkg.Marshal
	UnmarshalEnvelope    = envelopepkg.Unmarshal

	WithID            = envelopepkg.WithID
	WithCorrelationID = envelopepkg.WithCorrelationID
	WithCausationIDs  = envelopepkg.WithCausationIDs
	WithUserID        = envelopepkg.WithUserID
	WithStream        = envelopepkg.WithStream

	ParseComponent = component.Parse
	AllComponents  = component.All

	// Dispatch core.
	NewDispatcher       = runtimepkg.NewDispatcher
	NewDispatcherCache  = runtimepkg.NewDispatcherCache
	NewRegistrySet      = runtimepkg.NewRegistrySet
	WithDispatchHooks   = runtimepkg.WithDispatchHooks
	WithDispatchStats   = runtimepkg.WithDispatchStats
	WithErrorClassifier = runtimepkg.WithErrorClassifier
	NewDispatchStats    = runtimepkg.NewDispatchStats
	NewDispatchMetrics  = runtimepkg.NewDispatchMetrics

	// Chain assembly.
	NewChainProvider      = runtimepkg.NewChainProvider
	NewProviderSet        = runtimepkg.NewProviderSet
	NewDefaultProviderSet = runtimepkg.NewDefaultProviderSet
	LoggingStage          = runtimepkg.LoggingStage
	MetricsStage          = runtimepkg.MetricsStage
	TracingStage          = runtimepkg.TracingStage
	ValidationStage       = runtimepkg.ValidationStage
	BufferStage           = runtimepkg.BufferStage
	FilterStage           = runtimepkg.FilterStage
	NewEventBuffer        = runtimepkg.NewEventBuffer
	NewEventFilter        = runtimepkg.NewEventFilter

	// Producing facades.
	NewSender              = runtimepkg.NewSender
	NewRequester           = runtimepkg.NewRequester
	FailValidationStrategy = runtimepkg.FailValidationStrategy
	DropValidationStrategy = runtimepkg.DropValidationStrategy

	// Router registration.
	RegisterEventRoute     = runtimepkg.RegisterEventRoute
	RegisterMessageHandler = runtimepkg.RegisterMessageHandler
	WithEventFilter        = handlerpkg.WithEventFilter
	ProtoReply             = handlerpkg.ProtoReply
	ComponentFromContext   = handlerpkg.ComponentFromContext

	// Envelope publishing without a dispatcher.
	NewMessageFromEnvelope = runtimepkg.NewMessageFromEnvelope
	PublishEnvelope        = runtimepkg.PublishEnvelope

	DefaultMiddlewares       = runtimepkg.DefaultMiddlewares
	CorrelationIDMiddleware  = runtimepkg.CorrelationIDMiddleware
	LogMessagesMiddleware    = runtimepkg.LogMessagesMiddleware
	SchemaValidateMiddleware = runtimepkg.SchemaValidateMiddleware
	OutboxMiddleware         = runtimepkg.OutboxMiddleware
	TracerMiddleware         = runtimepkg.TracerMiddleware
	MetricsMiddleware        = runtimepkg.MetricsMiddleware
	RetryMiddleware          = runtimepkg.RetryMiddleware
	PoisonQueueMiddleware    = runtimepkg.PoisonQueueMiddleware
	RecovererMiddleware      = runtimepkg.RecovererMiddleware

	LoggingHooks  = runtimepkg.LoggingHooks
	MetricsHooks  = runtimepkg.MetricsHooks
	AlertingHooks = runtimepkg.AlertingHooks

	// CloudEvents constructors and helpers.
	NewCloudEvent          = ce.New
	NewCloudEventWithID    = ce.NewWithID
	CloudEventFromEnvelope = ce.FromEnvelope
	CloudEventToEnvelope   = ce.ToEnvelope

	ErrRetry                = ce.ErrRetry
	ErrDeadLetter           = ce.ErrDeadLetter
	ErrSkip                 = ce.ErrSkip
	ErrUnprocessable        = ce.ErrUnprocessable
	ErrRetryAfter           = ce.ErrRetryAfter
	ErrDeadLetterWithReason = ce.ErrDeadLetterWithReason
	ClassifyError           = ce.ClassifyError
	IsRetryable             = ce.IsRetryable
	ShouldDeadLetter        = ce.ShouldDeadLetter

	RegisterCloudEventsHandler = runtimepkg.RegisterCloudEventsHandler
	NewEventID                 = runtimepkg.NewEventID

	// Publish options.
	WithSubject            = runtimepkg.WithSubject
	WithDataContentType    = runtimepkg.WithDataContentType
	WithDataSchema         = runtimepkg.WithDataSchema
	WithExtension          = runtimepkg.WithExtension
	WithMaxAttempts        = runtimepkg.WithMaxAttempts
	WithTracing            = runtimepkg.WithTracing
	WithEventCorrelationID = runtimepkg.WithEventCorrelationID

	// Modular transport registry. Import individual transports via:
	//   _ "github.com/relaykit/relay/transport/kafka"
	DefaultTransportRegistry          = transportpkg.DefaultRegistry
	NewTransportRegistry              = transportpkg.NewRegistry
	RegisterTransport                 = transportpkg.Register
	RegisterTransportWithCapabilities = transportpkg.RegisterWithCapabilities
	BuildTransport                    = transportpkg.Build
	GetTransportCapabilities          = transportpkg.GetCapabilities

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	ErrConfigRequired           = errspkg.ErrConfigRequired
	ErrServiceRequired          = errspkg.ErrServiceRequired
	ErrLoggerRequired           = errspkg.ErrLoggerRequired
	ErrHandlerRequired          = errspkg.ErrHandlerRequired
	ErrHandlerNameRequired      = errspkg.ErrHandlerNameRequired
	ErrRegistryRequired         = errspkg.ErrRegistryRequired
	ErrDispatcherRequired       = errspkg.ErrDispatcherRequired
	ErrPublisherRequired        = errspkg.ErrPublisherRequired
	ErrTopicRequired            = errspkg.ErrTopicRequired
	ErrEnvelopeRequired         = errspkg.ErrEnvelopeRequired
	ErrEnvelopeNameRequired     = errspkg.ErrEnvelopeNameRequired
	ErrEnvelopePayloadRequired  = errspkg.ErrEnvelopePayloadRequired
	ErrStreamVersionRequired    = errspkg.ErrStreamVersionRequired
	ErrHandlerNotFound          = errspkg.ErrHandlerNotFound
	ErrEnvelopeValidation       = errspkg.ErrEnvelopeValidation
	ErrComponentIdentityMissing = errspkg.ErrComponentIdentityMissing
	ErrPayloadType              = errspkg.ErrPayloadType
	ErrBufferFull               = errspkg.ErrBufferFull

	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger
	NopLogger                 = loggingpkg.Nop

	NewSchemaRuleRegistry = schemapkg.NewRuleRegistry
	ValidationOK          = schemapkg.OK
	ValidationFail        = schemapkg.Fail

	NewMetadata = metadatapkg.New

	CreateULID = idspkg.CreateULID
	NewUUID    = idspkg.NewUUID
)

// RegisterJSONHandler registers a handler that receives its payload decoded
// into T. The reply envelope, if any, flows back through the chain.
func RegisterJSONHandler[T any](reg *HandlerRegistry, name string, fn JSONFunc[T], opts ...HandlerOption) error {
	return handlerpkg.RegisterJSONHandler(reg, name, fn, opts...)
}

// RegisterProtoHandler registers a handler that receives its payload decoded
// into the proto message T via protojson.
func RegisterProtoHandler[T proto.Message](reg *HandlerRegistry, name string, fn ProtoFunc[T], opts ...HandlerOption) error {
	return handlerpkg.RegisterProtoHandler(reg, name, fn, opts...)
}

func NewEntryServiceLogger[T EntryLoggerAdapter[T]](entry T) ServiceLogger {
	return loggingpkg.NewEntryServiceLogger(entry)
}

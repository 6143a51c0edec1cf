/*
Package runtime implements the dispatch core behind the relay facade.

# Architecture Overview

Envelopes enter through a Watermill route or a Sender/Requester facade and
flow through a per-component interceptor chain into a handler registry.
Chains are composed once per component identity and cached, so dispatch is a
single closure call at steady state.

# Package Structure

## Core Service (service.go)

The Service struct is the central orchestrator that wires together:
  - Message router (Watermill)
  - Publisher and subscriber connections from the transport registry
  - Default middleware chain
  - Per-component handler registries, chain providers, and dispatcher cache
  - HTTP servers for metrics and the debug API

## Dispatch (dispatcher.go, interceptor.go, stages.go)

A Dispatcher binds one component identity to its handler registry and its
composed interceptor chain. Chain entries carry a priority and a factory;
composeChain sorts them and folds right-to-left around the terminal handler
lookup. stages.go provides the built-in entries: logging, metrics, tracing,
schema validation, event buffering, and event filtering.

## Event Ordering (buffer.go, filter.go)

EventBufferInterceptor releases stream events in version order, parking
out-of-order arrivals and discarding duplicates. EventFilterInterceptor
drops envelopes no registered handler wants. Both only run on event
components.

## Facades (sender.go)

Sender and Requester validate envelopes against the schema registry before
dispatching. SendAsAdmin/RequestAsAdmin stamp the configured system user.

## Middleware (middleware.go)

The transport-level middleware chain wraps whole Watermill handlers:
  - CorrelationID: ensures message traceability
  - LogMessages: debug logging of message payloads
  - SchemaValidate: payload validation before dispatch
  - Outbox: transactional outbox pattern support
  - Tracer: OpenTelemetry distributed tracing
  - Metrics: Prometheus metrics collection
  - Retry: exponential backoff retry logic
  - PoisonQueue: dead letter queue for unprocessable messages
  - Recoverer: panic recovery

## Stats & Monitoring (models.go, metrics.go, resources.go)

Per-dispatcher stats with latency percentiles (p50, p95, p99), throughput,
error categorization, resource sampling, and backlog estimation, plus the
Prometheus collectors shared across chains.

## CloudEvents (cloudevents_api.go, cloudevents/)

Structured-mode CloudEvents 1.0 publishing and consumption with retry and
DLQ semantics, for interop with non-envelope producers.

## Debug API (webui.go)

HTTP endpoints exposing cached dispatchers, routes, and buffer snapshots.

# Sub-packages

  - component/: the fixed set of component identities
  - config/: service configuration with validation
  - envelope/: the envelope type and its wire format
  - errors/: sentinel errors and structured error types
  - handlers/: handler registries and typed JSON/proto registration
  - ids/: ULID and UUID generation
  - jsoncodec/: JSON marshaling via sonic
  - logging/: logger interface and adapters
  - metadata/: envelope <-> message metadata mapping
  - schema/: schema registry interface and the rule-based implementation

Transports live outside this package, under the public transport/ tree.
*/
package runtime

// Package relay is a CQRS dispatch layer on top of Watermill. It routes
// envelopes (named messages with correlation, causation, and stream ordering
// headers) through per-component interceptor chains to registered handlers,
// and wires the surrounding transport, middleware, and observability stack.
//
// Every dispatcher is keyed by a component identity (COMMAND_API through
// QUERY_VIEW). The identity selects a handler registry and an interceptor
// chain: logging, metrics, tracing, schema validation, and - for event
// components - stream-ordered buffering and handler-aware filtering. Chains
// are composed once per component and cached, so dispatching an envelope is a
// single closure call.
//
// Service hosts the Watermill router and the dispatcher cache. It reads the
// target transport (Kafka, RabbitMQ, AWS SNS/SQS, NATS, JetStream, HTTP, I/O,
// SQLite, PostgreSQL, or Go channels) from Config, registers the default
// middleware chain for correlation IDs, logging, schema validation, outbox
// persistence, tracing, metrics, retries, and poison queue forwarding, and
// exposes Sender/Requester facades for producing envelopes from API handlers.
// A minimal setup fills Config, creates a Service, registers handlers and
// event routes, and calls Start.
//
// # Transports
//
// Transports live in the transport/ subpackages and self-register on import:
//
//	_ "github.com/relaykit/relay/transport/kafka"
//
// Each transport reports capabilities (delayed delivery, DLQ management,
// queue introspection) that the runtime uses to pick between native and
// emulated behaviour.
//
// # Event ordering
//
// Event components run an in-memory buffer that releases stream events in
// version order: out-of-order arrivals are parked until their predecessors
// have been handled, duplicates are discarded, and overflowing streams fail
// with BufferFullError. PrimeStream seeds the expected version after a
// projection rebuild from a snapshot.
//
// # CloudEvents
//
// For interop with non-envelope producers the runtime speaks CloudEvents 1.0:
// PublishEvent/ConsumeEvents exchange structured-mode events with retry and
// DLQ semantics driven by the handler's returned error.
//
// When you need more control, ServiceDependencies exposes well-scoped hooks:
// bring your own schema registry, OutboxStore, dispatch hooks, interceptor
// chain providers, middleware registrations, or a pre-built Transport.
package relay

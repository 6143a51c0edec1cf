// Package transports imports all built-in transports for auto-registration.
// Import this package to have all transports registered with the default registry.
package transports

import (
	// Import all transports for side-effect registration
	_ "github.com/relaykit/relay/transport/aws"
	_ "github.com/relaykit/relay/transport/channel"
	_ "github.com/relaykit/relay/transport/http"
	_ "github.com/relaykit/relay/transport/io"
	_ "github.com/relaykit/relay/transport/jetstream"
	_ "github.com/relaykit/relay/transport/kafka"
	_ "github.com/relaykit/relay/transport/nats"
	_ "github.com/relaykit/relay/transport/postgres"
	_ "github.com/relaykit/relay/transport/rabbitmq"
	_ "github.com/relaykit/relay/transport/sqlite"
)

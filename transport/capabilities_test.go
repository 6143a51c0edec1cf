package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapabilitiesEmulationFlags(t *testing.T) {
	tests := []struct {
		name         string
		caps         Capabilities
		wantDelayEmu bool
		wantDLQEmu   bool
		wantReliable bool
	}{
		{
			name:         "zero value needs everything emulated",
			caps:         Capabilities{},
			wantDelayEmu: true,
			wantDLQEmu:   true,
		},
		{
			name:         "native delay and DLQ",
			caps:         Capabilities{SupportsDelay: true, SupportsNativeDLQ: true},
			wantDelayEmu: false,
			wantDLQEmu:   false,
		},
		{
			name:         "ack alone is not reliable delivery",
			caps:         Capabilities{SupportsAck: true},
			wantDelayEmu: true,
			wantDLQEmu:   true,
		},
		{
			name:         "nack alone is not reliable delivery",
			caps:         Capabilities{SupportsNack: true},
			wantDelayEmu: true,
			wantDLQEmu:   true,
		},
		{
			name:         "ack plus nack is reliable delivery",
			caps:         Capabilities{SupportsAck: true, SupportsNack: true},
			wantDelayEmu: true,
			wantDLQEmu:   true,
			wantReliable: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.wantDelayEmu, tc.caps.RequiresDelayEmulation())
			assert.Equal(t, tc.wantDLQEmu, tc.caps.RequiresDLQEmulation())
			assert.Equal(t, tc.wantReliable, tc.caps.SupportsReliableDelivery())
		})
	}
}

func TestPredefinedCapabilitySets(t *testing.T) {
	tests := []struct {
		caps         Capabilities
		wantName     string
		wantDelay    bool
		wantDLQ      bool
		wantOrdering bool
		wantReliable bool
	}{
		{ChannelCapabilities, "channel", false, false, true, true},
		{KafkaCapabilities, "kafka", false, false, true, false},
		{RabbitMQCapabilities, "rabbitmq", true, true, true, true},
		{NATSCapabilities, "nats", false, false, false, false},
		{NATSJetStreamCapabilities, "nats-jetstream", true, true, true, true},
		{AWSCapabilities, "aws", true, true, true, true},
		{SQLiteCapabilities, "sqlite", true, true, true, true},
		{PostgresCapabilities, "postgres", true, true, true, true},
		{HTTPCapabilities, "http", false, false, false, false},
		{IOCapabilities, "io", false, false, true, false},
	}

	for _, tc := range tests {
		t.Run(tc.wantName, func(t *testing.T) {
			assert.Equal(t, tc.wantName, tc.caps.Name)
			assert.Equal(t, tc.wantDelay, tc.caps.SupportsDelay)
			assert.Equal(t, tc.wantDLQ, tc.caps.SupportsNativeDLQ)
			assert.Equal(t, tc.wantOrdering, tc.caps.SupportsOrdering)
			assert.Equal(t, tc.wantReliable, tc.caps.SupportsReliableDelivery())
		})
	}
}

func TestPredefinedCapabilityLimits(t *testing.T) {
	// Brokers with hard payload or delay ceilings must advertise them so the
	// runtime can refuse oversized work up front.
	assert.Equal(t, int64(1048576), KafkaCapabilities.MaxMessageSize)
	assert.Equal(t, int64(262144), AWSCapabilities.MaxMessageSize)
	assert.Equal(t, int64(900000), AWSCapabilities.MaxDelayDuration)

	assert.Zero(t, ChannelCapabilities.MaxMessageSize)
	assert.Zero(t, RabbitMQCapabilities.MaxDelayDuration)
}

func TestKafkaPartitioningAndBatching(t *testing.T) {
	assert.True(t, KafkaCapabilities.SupportsPartitioning)
	assert.True(t, KafkaCapabilities.SupportsBatching)
	assert.False(t, ChannelCapabilities.SupportsPartitioning)
}

func TestGetCapabilitiesUsesDefaultRegistry(t *testing.T) {
	caps := GetCapabilities("capabilities-test-unregistered")
	assert.Equal(t, "capabilities-test-unregistered", caps.Name)
	assert.True(t, caps.RequiresDelayEmulation())
}

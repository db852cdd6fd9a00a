package messaging

import (
	"context"
)

// Message is one payload received on a channel.
type Message struct {
	Channel string
	Payload []byte
}

// Broker defines the interface for message brokers
type Broker interface {
	// Publish sends an already-encoded JSON payload.
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe listens on glob patterns until ctx is done; the returned
	// channel is closed afterwards.
	Subscribe(ctx context.Context, patterns ...string) (<-chan Message, error)
	Close() error
}

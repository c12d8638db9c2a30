package mq

import "context"

// Message is one lifecycle event read back from the broker
type Message struct {
	ID      string // stream entry id or kafka partition/offset
	Topic   string
	Key     string // aggregate id, keeps one aggregate's events ordered
	Payload []byte // JSON
}

// Producer publishes outbox messages
type Producer interface {
	// Publish sends payload to topic. key selects the partition; "" lets the broker pick.
	Publish(ctx context.Context, topic string, key string, payload []byte) error
	Close() error
}

// Consumer reads lifecycle events, used by operator tooling
type Consumer interface {
	// Subscribe blocks until ctx is done. A handler error leaves the message unacknowledged.
	Subscribe(ctx context.Context, topic string, handler func(msg *Message) error) error
	Close() error
}

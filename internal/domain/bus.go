package domain

import "context"

// Message is the envelope carried by the event bus.
type Message struct {
	ID        string `json:"id"`
	Topic     string `json:"topic"`
	Payload   []byte `json:"payload"`
	Timestamp int64  `json:"timestamp"` // unix nanos
}

// MessageHandler processes one delivered message.
type MessageHandler func(ctx context.Context, msg *Message) error

// Subscription represents an active topic subscription.
type Subscription interface {
	Unsubscribe() error
	Topic() string
}

// EventBus distributes gateway events (query executions) to subscribers.
// Publishing is best-effort from the caller's point of view: the query path
// logs publish failures and continues.
type EventBus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)
	Ping(ctx context.Context) error
	Close() error
}

// AuditSink records executed statements. Write failures must be absorbed by
// callers (logged, never propagated to the query path).
type AuditSink interface {
	Write(ctx context.Context, rec AuditRecord) error
	Close() error
}

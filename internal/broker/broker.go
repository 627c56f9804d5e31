// Package broker defines the pub/sub contract between the chat services and
// provides the NATS-backed implementation. Delivery is at-least-once with
// best-effort ordering within a topic; payloads are JSON-encoded event
// structs from the domain package.
//
// Publishing is a notification side-channel, never part of a primary
// durable write: every caller is expected to catch and log a publish
// failure and still complete its own operation.
package broker

import "context"

// Topic names shared by all services.
const (
	TopicMemberJoined = "member-joined"
	TopicMemberLeft   = "member-left"
	TopicMessageSent  = "message-sent"
)

// Publisher emits an event payload on a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Subscriber delivers raw payloads for a topic to a handler. The returned
// stop function unsubscribes; it must be safe to call once during shutdown.
// Handlers run on the broker's delivery goroutine and must not block.
type Subscriber interface {
	Subscribe(topic string, handler func(data []byte)) (stop func() error, err error)
}

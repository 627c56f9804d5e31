// Package domain defines the persistence models and the event payloads that
// cross service boundaries. Events are published to the broker as JSON and
// consumed by the presence cache and the realtime fan-out bridge; they carry
// value snapshots only, never references into a service's own storage.
package domain

import "time"

// MemberJoinedEvent is published after a member registration has been
// durably stored. Consumers must treat it as at-least-once: replays are
// expected and must be handled idempotently.
type MemberJoinedEvent struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joined_at"`
}

// MemberLeftEvent is published when the inactivity sweep removes a member.
type MemberLeftEvent struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	LeftAt time.Time `json:"left_at"`
}

// MessageSentEvent is published after a message has been durably stored.
// SenderName is the attribution snapshot resolved at send time.
type MessageSentEvent struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	SentAt     time.Time `json:"sent_at"`
}

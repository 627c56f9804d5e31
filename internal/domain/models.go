// Package domain defines the persistence models for chat members and
// messages. These types are mapped with GORM and form the core data layer
// shared by the members and messages services.
package domain

import "time"

// MessageType classifies a chat message. User-submitted messages are always
// TypeText; the other values are reserved for server-generated content.
type MessageType string

const (
	TypeText   MessageType = "text"
	TypeSystem MessageType = "system"
	TypeEmoji  MessageType = "emoji"
)

// Member represents a registered chat participant. The members service is the
// sole owner of these rows; other services observe members only through
// published events and the presence cache.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Name: display name supplied at registration.
//   - JoinedAt: registration time (UTC).
//   - LastActivityAt: most recent activity touch; never before JoinedAt.
//   - IsActive: liveness flag; inactive rows are removed by the sweep.
//   - ETag: opaque concurrency tag, regenerated on every write. Conditional
//     updates must present the tag read last and fail when it is stale.
type Member struct {
	ID             string    `json:"id"               gorm:"type:char(36);primaryKey"`
	Name           string    `json:"name"             gorm:"type:varchar(255);not null"`
	JoinedAt       time.Time `json:"joined_at"        gorm:"not null"`
	LastActivityAt time.Time `json:"last_activity_at" gorm:"not null;index:idx_member_activity"`
	IsActive       bool      `json:"is_active"        gorm:"not null;default:true"`
	ETag           string    `json:"-"                gorm:"column:etag;type:char(36);not null"`
	CreatedAt      time.Time `json:"-"`
	UpdatedAt      time.Time `json:"-"`
}

// TableName returns the database table name for Member.
func (Member) TableName() string { return "members" }

// Message represents a single chat message. Rows are immutable after
// creation and are removed in batches once older than the retention window.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - Content: filtered message text (max 1000 characters at submission).
//   - SenderID: opaque id of the sending member.
//   - SenderName: display name snapshot taken at send time; it deliberately
//     does not track later name changes.
//   - SentAt: submission time (UTC), indexed for recency and range queries.
//   - Type: message classification (text/system/emoji).
type Message struct {
	ID         string      `json:"id"          gorm:"type:char(36);primaryKey"`
	Content    string      `json:"content"     gorm:"type:text;not null"`
	SenderID   string      `json:"sender_id"   gorm:"type:char(36);not null;index"`
	SenderName string      `json:"sender_name" gorm:"type:varchar(255);not null"`
	SentAt     time.Time   `json:"sent_at"     gorm:"not null;index:idx_message_sent"`
	Type       MessageType `json:"type"        gorm:"type:varchar(16);not null;default:'text'"`
	CreatedAt  time.Time   `json:"-"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

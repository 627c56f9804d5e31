// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model. Message rows are immutable; the only mutation is the batched
// retention delete.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/example/chat-services/internal/domain"
)

// DeleteBatchSize caps the number of rows removed per delete statement, in
// line with the store's per-transaction ceiling.
const DeleteBatchSize = 100

// CreateMessage inserts a new message row.
func CreateMessage(ctx context.Context, db *gorm.DB, m *domain.Message) error {
	return db.WithContext(ctx).Create(m).Error
}

// GetMessage fetches a message by ID, or returns (nil, nil) when absent.
func GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListRecentMessages returns the count most recent messages ordered newest
// first (SentAt DESC, ID DESC as a deterministic tie-break). Callers that
// need chronological order reverse the slice.
func ListRecentMessages(ctx context.Context, db *gorm.DB, count int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Order("sent_at DESC, id DESC").
		Limit(count).
		Find(&out).Error
	return out, err
}

// ListMessagesByRange returns all messages with SentAt in [from, to],
// ascending.
func ListMessagesByRange(ctx context.Context, db *gorm.DB, from, to time.Time) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("sent_at >= ? AND sent_at <= ?", from, to).
		Order("sent_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// ListExpiredMessages returns the IDs of messages sent strictly before
// cutoff, oldest first.
func ListExpiredMessages(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]string, error) {
	var ids []string
	err := db.WithContext(ctx).Model(&domain.Message{}).
		Where("sent_at < ?", cutoff).
		Order("sent_at ASC, id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// DeleteMessages removes the given message rows in a single statement. The
// caller chunks IDs to DeleteBatchSize; this function does not enforce it.
func DeleteMessages(ctx context.Context, db *gorm.DB, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return db.WithContext(ctx).Where("id IN ?", ids).Delete(&domain.Message{}).Error
}

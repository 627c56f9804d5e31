// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// by the room stats endpoints. Each function is context-aware and safe to
// call from services or handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/example/chat-services/internal/domain"
)

// MembersStats returns aggregate metadata for the member directory: the total
// number of registered members and the latest last-activity timestamp among
// them.
//
// When the directory is empty, the returned count is 0 and lastActivityAt is
// nil.
//
// Return values:
//   - count:          total registered members
//   - lastActivityAt: pointer to the greatest LastActivityAt, or nil if no rows
//   - err:            database error, if any
func MembersStats(ctx context.Context, db *gorm.DB) (count int64, lastActivityAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Member{})

	// Count
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest last_activity_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		LastActivityAt time.Time
	}
	if err = q.Select("last_activity_at").Order("last_activity_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.LastActivityAt, nil
}

// MessagesStats returns aggregate metadata for the message log: the total
// number of stored messages and the latest send timestamp among them.
//
// When the log is empty, the returned count is 0 and lastSentAt is nil.
//
// Return values:
//   - count:      total stored messages
//   - lastSentAt: pointer to the greatest SentAt, or nil if no rows
//   - err:        database error, if any
func MessagesStats(ctx context.Context, db *gorm.DB) (count int64, lastSentAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Message{})

	// Count
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest sent_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		SentAt time.Time
	}
	if err = q.Select("sent_at").Order("sent_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.SentAt, nil
}

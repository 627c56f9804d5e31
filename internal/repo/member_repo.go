// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Member
// model, including the conditional (concurrency-tagged) activity update.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/chat-services/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
//
// It aliases gorm.ErrRecordNotFound so callers can use errors.Is without
// importing GORM.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrStaleRecord is returned when a conditional update presents a
// concurrency tag that no longer matches the stored row. The caller decides
// whether to re-read or to accept the lost update; the repository never
// retries on its own.
var ErrStaleRecord = errors.New("stale concurrency tag")

// CreateMember inserts a new member row with a fresh concurrency tag.
func CreateMember(ctx context.Context, db *gorm.DB, m *domain.Member) error {
	m.ETag = uuid.NewString()
	return db.WithContext(ctx).Create(m).Error
}

// GetMember fetches a member by ID, or returns (nil, nil) when absent.
// Lookup misses are an expected outcome here, not an error.
func GetMember(ctx context.Context, db *gorm.DB, id string) (*domain.Member, error) {
	var m domain.Member
	err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMemberActivity sets last_activity_at conditionally on etag matching
// the value from the caller's latest read, rotating the tag on success.
// Returns ErrStaleRecord when a concurrent writer got there first.
func UpdateMemberActivity(ctx context.Context, db *gorm.DB, id, etag string, at time.Time) error {
	res := db.WithContext(ctx).Model(&domain.Member{}).
		Where("id = ? AND etag = ?", id, etag).
		Updates(map[string]any{
			"last_activity_at": at,
			"etag":             uuid.NewString(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleRecord
	}
	return nil
}

// ListInactiveMembers returns members whose last activity is strictly before
// cutoff, oldest first.
func ListInactiveMembers(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]domain.Member, error) {
	var out []domain.Member
	err := db.WithContext(ctx).
		Where("last_activity_at < ?", cutoff).
		Order("last_activity_at ASC").
		Find(&out).Error
	return out, err
}

// DeleteMember removes a member row by ID. Deleting an absent row is a no-op.
func DeleteMember(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Member{}).Error
}

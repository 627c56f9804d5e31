// Package services – MemberService
//
// This file implements the MemberService, which owns the durable member
// directory. It validates registrations, performs activity touches with
// last-write-wins tolerance, and runs the inactivity sweep that retires
// idle members. Join/leave notifications are published to the broker on a
// best-effort basis: the directory row is the source of truth and a failed
// publish never fails the primary operation.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// member identifiers and sweep counts.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/chat-services/internal/broker"
	"github.com/example/chat-services/internal/domain"
	"github.com/example/chat-services/internal/repo"
)

// DefaultInactiveAfter is the idle window after which a member is retired
// by the sweep.
const DefaultInactiveAfter = time.Hour

// MemberRepo defines the repository contract required by MemberService.
// Implementations are responsible for persistence of member rows.
type MemberRepo interface {
	// CreateMember inserts a new member row.
	CreateMember(ctx context.Context, db *gorm.DB, m *domain.Member) error

	// GetMember fetches a member by ID, (nil, nil) when absent.
	GetMember(ctx context.Context, db *gorm.DB, id string) (*domain.Member, error)

	// UpdateMemberActivity conditionally updates last_activity_at, failing
	// with repo.ErrStaleRecord on a concurrency-tag mismatch.
	UpdateMemberActivity(ctx context.Context, db *gorm.DB, id, etag string, at time.Time) error

	// ListInactiveMembers returns members idle since before cutoff.
	ListInactiveMembers(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]domain.Member, error)

	// DeleteMember removes a member row by ID.
	DeleteMember(ctx context.Context, db *gorm.DB, id string) error
}

// MemberService provides registration, lookup, activity tracking, and the
// inactive-member sweep.
type MemberService struct {
	DB     *gorm.DB
	Repo   MemberRepo
	Events broker.Publisher
	Clock  clock.Clock
	Log    zerolog.Logger

	// InactiveAfter is the idle window used by SweepInactive.
	InactiveAfter time.Duration
}

// NewMemberService constructs a MemberService with default sweep settings.
func NewMemberService(db *gorm.DB, r MemberRepo, events broker.Publisher, clk clock.Clock, log zerolog.Logger) *MemberService {
	if clk == nil {
		clk = clock.New()
	}
	return &MemberService{
		DB:            db,
		Repo:          r,
		Events:        events,
		Clock:         clk,
		Log:           log,
		InactiveAfter: DefaultInactiveAfter,
	}
}

// Register creates a member with a fresh id and both timestamps set to now,
// then publishes a member-joined notification. A publish failure is logged
// and swallowed; the stored row already made the registration durable.
func (s *MemberService) Register(ctx context.Context, name string) (*domain.Member, error) {
	tr := otel.Tracer("services/MemberService")
	ctx, span := tr.Start(ctx, "Register")
	defer span.End()

	if strings.TrimSpace(name) == "" {
		return nil, ErrNameRequired
	}

	now := s.Clock.Now().UTC()
	m := &domain.Member{
		ID:             uuid.NewString(),
		Name:           name,
		JoinedAt:       now,
		LastActivityAt: now,
		IsActive:       true,
	}
	if err := s.Repo.CreateMember(ctx, s.DB, m); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("member.id", m.ID))

	evt := domain.MemberJoinedEvent{ID: m.ID, Name: m.Name, JoinedAt: m.JoinedAt}
	if err := s.Events.Publish(ctx, broker.TopicMemberJoined, evt); err != nil {
		s.Log.Error().Err(err).Str("member_id", m.ID).Msg("failed to publish member joined event")
	}

	s.Log.Info().Str("member_id", m.ID).Str("name", m.Name).Msg("member registered")
	return m, nil
}

// GetByID returns the member or nil when not found. A blank id short-circuits
// to nil without touching the store.
func (s *MemberService) GetByID(ctx context.Context, id string) (*domain.Member, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}
	return s.Repo.GetMember(ctx, s.DB, id)
}

// TouchActivity sets the member's last activity to now. Touching an unknown
// member is a no-op, and losing the conditional update to a concurrent
// writer is accepted: the timestamp only needs to be approximately current.
func (s *MemberService) TouchActivity(ctx context.Context, id string) error {
	tr := otel.Tracer("services/MemberService")
	ctx, span := tr.Start(ctx, "TouchActivity",
		trace.WithAttributes(attribute.String("member.id", id)),
	)
	defer span.End()

	if strings.TrimSpace(id) == "" {
		return ErrMemberIDRequired
	}

	m, err := s.Repo.GetMember(ctx, s.DB, id)
	if err != nil {
		return err
	}
	if m == nil {
		return nil
	}

	err = s.Repo.UpdateMemberActivity(ctx, s.DB, m.ID, m.ETag, s.Clock.Now().UTC())
	if errors.Is(err, repo.ErrStaleRecord) {
		// A concurrent touch already refreshed the timestamp.
		s.Log.Debug().Str("member_id", id).Msg("activity touch lost to concurrent update")
		return nil
	}
	return err
}

// SweepInactive retires every member idle for longer than InactiveAfter:
// publish member-left, then delete the row. A failure on one member is
// logged and the sweep moves on to the next, so partial progress is always
// made.
func (s *MemberService) SweepInactive(ctx context.Context) error {
	tr := otel.Tracer("services/MemberService")
	ctx, span := tr.Start(ctx, "SweepInactive")
	defer span.End()

	cutoff := s.Clock.Now().UTC().Add(-s.InactiveAfter)
	inactive, err := s.Repo.ListInactiveMembers(ctx, s.DB, cutoff)
	if err != nil {
		return err
	}

	removed := 0
	for _, m := range inactive {
		evt := domain.MemberLeftEvent{ID: m.ID, Name: m.Name, LeftAt: s.Clock.Now().UTC()}
		if err := s.Events.Publish(ctx, broker.TopicMemberLeft, evt); err != nil {
			// Leave the row for the next sweep so the departure is not silent.
			s.Log.Error().Err(err).Str("member_id", m.ID).Msg("failed to publish member left event")
			continue
		}
		if err := s.Repo.DeleteMember(ctx, s.DB, m.ID); err != nil {
			s.Log.Error().Err(err).Str("member_id", m.ID).Str("name", m.Name).
				Msg("failed to remove inactive member")
			continue
		}
		removed++
		s.Log.Info().Str("member_id", m.ID).Str("name", m.Name).Msg("removed inactive member")
	}

	span.SetAttributes(attribute.Int("members.removed", removed))
	return nil
}

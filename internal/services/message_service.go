// Package services – MessageService
//
// This file implements MessageService, the application-level component that
// owns message submission, retrieval, and retention. It validates inputs in
// a fixed order, resolves the sender's display name through the presence
// cache with a deterministic placeholder fallback, filters content against a
// fixed denylist, and persists the message before publishing a best-effort
// message-sent notification.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// message/sender identifiers and sweep batch counts.
package services

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/chat-services/internal/broker"
	"github.com/example/chat-services/internal/domain"
	"github.com/example/chat-services/internal/presence"
	"github.com/example/chat-services/internal/repo"
	"github.com/example/chat-services/internal/search"
)

const (
	// MaxContentChars is the maximum accepted message length, counted in
	// characters rather than bytes.
	MaxContentChars = 1000

	// searchWindow caps how many recent messages Search considers.
	searchWindow = 500

	// DefaultRetention is how long messages are kept before the sweep
	// removes them.
	DefaultRetention = 24 * time.Hour
)

// SearchHit pairs a message with its relevance score.
type SearchHit struct {
	Message domain.Message `json:"message"`
	Score   float64        `json:"score"`
}

// NameResolver resolves a sender id to a display name, returning "" when the
// identity is unknown. Implementations must never fail: absence of a name is
// an expected, recoverable condition.
type NameResolver interface {
	ResolveName(ctx context.Context, senderID string) string
}

// MessageRepo defines the repository contract required by MessageService.
type MessageRepo interface {
	// CreateMessage inserts a new message row.
	CreateMessage(ctx context.Context, db *gorm.DB, m *domain.Message) error

	// ListRecentMessages returns the count most recent messages, newest first.
	ListRecentMessages(ctx context.Context, db *gorm.DB, count int) ([]domain.Message, error)

	// ListMessagesByRange returns messages with SentAt in [from, to], ascending.
	ListMessagesByRange(ctx context.Context, db *gorm.DB, from, to time.Time) ([]domain.Message, error)

	// ListExpiredMessages returns IDs of messages sent before cutoff.
	ListExpiredMessages(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]string, error)

	// DeleteMessages removes the given message rows.
	DeleteMessages(ctx context.Context, db *gorm.DB, ids []string) error
}

// MessageService coordinates message persistence, attribution, and retention.
type MessageService struct {
	DB       *gorm.DB
	Repo     MessageRepo
	Resolver NameResolver
	Events   broker.Publisher
	Clock    clock.Clock
	Log      zerolog.Logger

	// Retention is the message age cutoff used by SweepExpired.
	Retention time.Duration

	// DeleteBatch caps rows per delete call; defaults to repo.DeleteBatchSize.
	DeleteBatch int
}

// NewMessageService constructs a MessageService with default retention
// settings.
func NewMessageService(db *gorm.DB, r MessageRepo, resolver NameResolver, events broker.Publisher, clk clock.Clock, log zerolog.Logger) *MessageService {
	if clk == nil {
		clk = clock.New()
	}
	return &MessageService{
		DB:          db,
		Repo:        r,
		Resolver:    resolver,
		Events:      events,
		Clock:       clk,
		Log:         log,
		Retention:   DefaultRetention,
		DeleteBatch: repo.DeleteBatchSize,
	}
}

// SendMessage validates and stores a message attributed to senderID, then
// publishes a message-sent notification. Validation order is fixed (sender,
// content, length) so error reporting is deterministic. When the presence
// cache cannot resolve the sender, attribution degrades to the placeholder
// name and the send still succeeds; only a failure of the durable write
// itself is returned to the caller.
func (s *MessageService) SendMessage(ctx context.Context, content, senderID string) (*domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "SendMessage",
		trace.WithAttributes(attribute.String("sender.id", senderID)),
	)
	defer span.End()

	if strings.TrimSpace(senderID) == "" {
		return nil, ErrSenderIDRequired
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrContentRequired
	}
	if utf8.RuneCountInString(content) > MaxContentChars {
		return nil, ErrContentTooLong
	}

	senderName := s.Resolver.ResolveName(ctx, senderID)
	if senderName == "" {
		senderName = presence.DerivePlaceholderName(senderID)
		s.Log.Warn().Str("sender_id", senderID).Str("fallback", senderName).
			Msg("sender not present in cache, using fallback name")
	}

	m := &domain.Message{
		ID:         uuid.NewString(),
		Content:    FilterContent(content),
		SenderID:   senderID,
		SenderName: senderName,
		SentAt:     s.Clock.Now().UTC(),
		Type:       domain.TypeText,
	}
	if err := s.Repo.CreateMessage(ctx, s.DB, m); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("message.id", m.ID))

	evt := domain.MessageSentEvent{
		ID:         m.ID,
		Content:    m.Content,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		SentAt:     m.SentAt,
	}
	if err := s.Events.Publish(ctx, broker.TopicMessageSent, evt); err != nil {
		// Message is already durably stored; the notification is best-effort.
		s.Log.Error().Err(err).Str("message_id", m.ID).Msg("failed to publish message sent event")
	}

	s.Log.Info().Str("message_id", m.ID).Str("sender_id", senderID).Msg("message sent")
	return m, nil
}

// GetRecent returns the count most recent messages in chronological order
// (oldest of the selected window first), ready for UI rendering.
func (s *MessageService) GetRecent(ctx context.Context, count int) ([]domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "GetRecent",
		trace.WithAttributes(attribute.Int("count", count)),
	)
	defer span.End()

	if count <= 0 {
		return nil, ErrInvalidCount
	}

	items, err := s.Repo.ListRecentMessages(ctx, s.DB, count)
	if err != nil {
		return nil, err
	}
	// The store answers newest-first; the page reads oldest-first.
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, nil
}

// GetHistory returns all messages sent within [from, to], ascending.
func (s *MessageService) GetHistory(ctx context.Context, from, to time.Time) ([]domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "GetHistory")
	defer span.End()

	if from.After(to) {
		return nil, ErrInvalidRange
	}
	return s.Repo.ListMessagesByRange(ctx, s.DB, from, to)
}

// Search ranks the most recent messages against the query and returns up to
// k hits, best first. It is a convenience over the recent-message window, not
// a full-text index: candidates are the latest searchWindow messages.
func (s *MessageService) Search(ctx context.Context, query string, k int) ([]SearchHit, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Search")
	defer span.End()

	if strings.TrimSpace(query) == "" {
		return nil, ErrQueryRequired
	}

	items, err := s.Repo.ListRecentMessages(ctx, s.DB, searchWindow)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	docs := make([]search.Document, len(items))
	byID := make(map[string]domain.Message, len(items))
	for i, m := range items {
		docs[i] = search.Document{ID: m.ID, Text: m.Content}
		byID[m.ID] = m
	}

	hits := search.NewRanker(docs).TopK(query, k)
	out := make([]SearchHit, 0, len(hits))
	for _, h := range hits {
		if m, ok := byID[h.ID]; ok {
			out = append(out, SearchHit{Message: m, Score: h.Score})
		}
	}
	span.SetAttributes(attribute.Int("hits", len(out)))
	return out, nil
}

// SweepExpired removes messages older than the retention window in batches.
// A failed batch is logged and the sweep proceeds to the next one, mirroring
// the member sweep's partial-failure tolerance.
func (s *MessageService) SweepExpired(ctx context.Context) error {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "SweepExpired")
	defer span.End()

	cutoff := s.Clock.Now().UTC().Add(-s.Retention)
	ids, err := s.Repo.ListExpiredMessages(ctx, s.DB, cutoff)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	batch := s.DeleteBatch
	if batch <= 0 {
		batch = repo.DeleteBatchSize
	}

	removed := 0
	for start := 0; start < len(ids); start += batch {
		end := start + batch
		if end > len(ids) {
			end = len(ids)
		}
		if err := s.Repo.DeleteMessages(ctx, s.DB, ids[start:end]); err != nil {
			s.Log.Error().Err(err).Int("batch_size", end-start).Msg("failed to delete message batch")
			continue
		}
		removed += end - start
	}

	span.SetAttributes(attribute.Int("messages.removed", removed))
	s.Log.Info().Int("count", removed).Msg("removed expired messages")
	return nil
}

// contentDenylist holds the substrings masked by FilterContent. Matching is
// case-insensitive and not word-bounded.
var contentDenylist = []*regexp.Regexp{
	regexp.MustCompile(`(?i)spam`),
	regexp.MustCompile(`(?i)badword`),
}

// FilterContent replaces every denylisted substring with "***".
func FilterContent(content string) string {
	for _, re := range contentDenylist {
		content = re.ReplaceAllString(content, "***")
	}
	return content
}

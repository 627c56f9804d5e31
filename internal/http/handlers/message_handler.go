// Message HTTP handlers.
//
// This file exposes REST endpoints for chat messages:
//   - POST /messages                     (send a message)
//   - GET  /messages/recent?count=       (most recent page, chronological)
//   - GET  /messages/history?from=&to=   (time-range query)
//
// Handlers are transport-thin:
//   - validate & normalize inputs (timestamps are RFC 3339)
//   - delegate to application services (MessageService)
//   - implement idempotency semantics for sends
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// result exists for (sender, key), the handler returns that recorded message
// and sets `Idempotency-Replayed: true`. The broker behind the service is
// at-least-once, so duplicate-tolerant retries are part of the contract.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/example/chat-services/internal/domain"
	"github.com/example/chat-services/internal/http/middleware"
	"github.com/example/chat-services/internal/repo"
	"github.com/example/chat-services/internal/services"
	"github.com/example/chat-services/internal/utils"
)

// idempotencyTTL is how long a recorded send can be replayed.
const idempotencyTTL = 24 * time.Hour

// IdempotencyStore replays and records successful sends keyed by
// (sender, Idempotency-Key). Injected so the handler stays bound to service
// interfaces rather than a concrete persistence layer.
type IdempotencyStore interface {
	// Lookup returns the previously stored message for an unexpired
	// (sender, key) record, or nil when there is none.
	Lookup(ctx context.Context, senderID, key string, now time.Time) (*domain.Message, error)

	// Record remembers a successful send for later replay.
	Record(ctx context.Context, senderID, key, messageID string, status int, ttl time.Duration) error
}

// dbIdempotency implements IdempotencyStore over the messages database.
type dbIdempotency struct {
	db *gorm.DB
}

// NewIdempotencyDB returns an IdempotencyStore backed by the given database.
func NewIdempotencyDB(db *gorm.DB) IdempotencyStore {
	return dbIdempotency{db: db}
}

func (s dbIdempotency) Lookup(ctx context.Context, senderID, key string, now time.Time) (*domain.Message, error) {
	rec, err := repo.GetIdempotency(ctx, s.db, senderID, key, now)
	if err != nil || rec == nil {
		return nil, err
	}
	return repo.GetMessage(ctx, s.db, rec.MessageID)
}

func (s dbIdempotency) Record(ctx context.Context, senderID, key, messageID string, status int, ttl time.Duration) error {
	_, err := repo.CreateIdempotency(ctx, s.db, senderID, key, messageID, status, ttl)
	return err
}

//
// DTOs
//

// SendMessageRequest is the JSON payload for sending a chat message.
type SendMessageRequest struct {
	// Content is the message text. It must be non-blank and at most 1000
	// characters.
	Content string `json:"content" binding:"required" example:"hello there"`
	// SenderID identifies the sending member.
	SenderID string `json:"sender_id" binding:"required" example:"c1a9be03-4999-4289-9f03-999b042d65d6"`
}

// MessagesResponse is the JSON envelope for message listings.
type MessagesResponse struct {
	Messages []domain.Message `json:"messages"`
}

//
// Handlers
//

// SendMessage validates the payload, delegates to the message service, and
// returns the stored message with HTTP 201. Validation failures map to a 400
// with the service's deterministic error message.
func (h *Handlers) SendMessage(c *gin.Context) {
	ctx := c.Request.Context()

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content and sender_id required")
		return
	}

	// Idempotency (replay path) – read validated key if present.
	idemKey, _ := middleware.GetIdempotencyKey(c)
	if idemKey != "" && h.idem != nil {
		if prev, err := h.idem.Lookup(ctx, req.SenderID, idemKey, time.Now().UTC()); err == nil && prev != nil {
			c.Header("Idempotency-Replayed", "true")
			ok(c, http.StatusCreated, prev)
			return
		}
	}

	m, err := h.msgSvc.SendMessage(ctx, req.Content, req.SenderID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSenderIDRequired),
			errors.Is(err, services.ErrContentRequired),
			errors.Is(err, services.ErrContentTooLong):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeSendFailed, err.Error())
		}
		return
	}

	// Idempotency (store path) – best effort.
	if idemKey != "" && h.idem != nil {
		_ = h.idem.Record(ctx, req.SenderID, idemKey, m.ID, http.StatusCreated, idempotencyTTL)
	}

	ok(c, http.StatusCreated, m)
}

// GetRecentMessages returns the most recent messages in chronological order.
// The count query parameter defaults to 50.
func (h *Handlers) GetRecentMessages(c *gin.Context) {
	count := utils.AtoiDefault(c.Query("count"), 50)

	items, err := h.msgSvc.GetRecent(c.Request.Context(), count)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCount) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if items == nil {
		items = []domain.Message{}
	}
	ok(c, http.StatusOK, MessagesResponse{Messages: items})
}

// SearchMessages ranks recent messages against the q query parameter and
// returns up to k hits (default 10), best first.
func (h *Handlers) SearchMessages(c *gin.Context) {
	k := utils.AtoiDefault(c.Query("k"), 10)

	hits, err := h.msgSvc.Search(c.Request.Context(), c.Query("q"), k)
	if err != nil {
		if errors.Is(err, services.ErrQueryRequired) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if hits == nil {
		hits = []services.SearchHit{}
	}
	ok(c, http.StatusOK, gin.H{"hits": hits})
}

// GetMessageHistory returns messages sent within [from, to]. Both bounds are
// required RFC 3339 timestamps.
func (h *Handlers) GetMessageHistory(c *gin.Context) {
	from, okFrom := utils.ParseRFC3339(c.Query("from"))
	if !okFrom {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "from must be an RFC 3339 timestamp")
		return
	}
	to, okTo := utils.ParseRFC3339(c.Query("to"))
	if !okTo {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "to must be an RFC 3339 timestamp")
		return
	}

	items, err := h.msgSvc.GetHistory(c.Request.Context(), from, to)
	if err != nil {
		if errors.Is(err, services.ErrInvalidRange) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if items == nil {
		items = []domain.Message{}
	}
	ok(c, http.StatusOK, MessagesResponse{Messages: items})
}

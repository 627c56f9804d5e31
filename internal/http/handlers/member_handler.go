// Member HTTP handlers.
//
// This file exposes REST endpoints for the member directory:
//   - POST /members                (register)
//   - GET  /members/{id}           (lookup)
//   - PUT  /members/{id}/activity  (activity touch)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/example/chat-services/internal/domain"
	"github.com/example/chat-services/internal/services"
)

//
// Service contracts (context-aware)
//

// MemberService defines directory operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type MemberService interface {
	// Register creates a new member from a display name.
	Register(ctx context.Context, name string) (*domain.Member, error)
	// GetByID returns the member or nil when not found.
	GetByID(ctx context.Context, id string) (*domain.Member, error)
	// TouchActivity refreshes the member's last-activity timestamp.
	TouchActivity(ctx context.Context, id string) error
}

// MessageService defines message submission and retrieval operations.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type MessageService interface {
	// SendMessage stores a message attributed to senderID.
	SendMessage(ctx context.Context, content, senderID string) (*domain.Message, error)
	// GetRecent returns the count most recent messages, oldest first.
	GetRecent(ctx context.Context, count int) ([]domain.Message, error)
	// GetHistory returns messages sent within [from, to], ascending.
	GetHistory(ctx context.Context, from, to time.Time) ([]domain.Message, error)
	// Search ranks recent messages against the query, best first.
	Search(ctx context.Context, query string, k int) ([]services.SearchHit, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for members and messages. It depends on
// abstract service interfaces to keep transport concerns separate from
// business logic; each deployable wires only the services it serves.
type Handlers struct {
	memberSvc MemberService
	msgSvc    MessageService
	idem      IdempotencyStore
}

// New constructs and returns a Handlers instance bound to the given services.
// A service not served by the deployable may be nil as long as its routes
// are not mounted.
func New(memberSvc MemberService, msgSvc MessageService) *Handlers {
	return &Handlers{memberSvc: memberSvc, msgSvc: msgSvc}
}

// WithIdempotency attaches a replay store for message sends and returns the
// receiver. Without one, Idempotency-Key headers are validated upstream but
// sends are not deduplicated.
func (h *Handlers) WithIdempotency(store IdempotencyStore) *Handlers {
	h.idem = store
	return h
}

//
// DTOs
//

// RegisterMemberRequest is the JSON payload for registering a member.
type RegisterMemberRequest struct {
	// Name is the display name. It must be non-blank.
	Name string `json:"name" binding:"required" example:"Alice"`
}

//
// Handlers
//

// RegisterMember creates a new member and returns it with HTTP 201.
func (h *Handlers) RegisterMember(c *gin.Context) {
	var req RegisterMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name required")
		return
	}

	m, err := h.memberSvc.Register(c.Request.Context(), req.Name)
	if err != nil {
		if errors.Is(err, services.ErrNameRequired) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeRegisterFailed, err.Error())
		return
	}
	ok(c, http.StatusCreated, m)
}

// GetMember returns the member by id, or 404 when unknown.
func (h *Handlers) GetMember(c *gin.Context) {
	m, err := h.memberSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	if m == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "member not found")
		return
	}
	ok(c, http.StatusOK, m)
}

// TouchMemberActivity refreshes the member's activity timestamp. Touching an
// unknown member succeeds: the sweep may already have retired it.
func (h *Handlers) TouchMemberActivity(c *gin.Context) {
	err := h.memberSvc.TouchActivity(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrMemberIDRequired) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, gin.H{"status": "ok"})
}

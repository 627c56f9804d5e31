// Room statistics endpoints.
//
// These are lightweight aggregate queries served directly from the database;
// they bypass the application services because no business rules apply.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/example/chat-services/internal/repo"
)

// MemberStatsResponse summarizes the member directory.
type MemberStatsResponse struct {
	Count          int64      `json:"count"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
}

// MessageStatsResponse summarizes the message log.
type MessageStatsResponse struct {
	Count      int64      `json:"count"`
	LastSentAt *time.Time `json:"last_sent_at,omitempty"`
}

// MemberStats returns a handler reporting member directory aggregates.
func MemberStats(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		count, last, err := repo.MembersStats(c.Request.Context(), db)
		if err != nil {
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
			return
		}
		ok(c, http.StatusOK, MemberStatsResponse{Count: count, LastActivityAt: last})
	}
}

// MessageStats returns a handler reporting message log aggregates.
func MessageStats(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		count, last, err := repo.MessagesStats(c.Request.Context(), db)
		if err != nil {
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
			return
		}
		ok(c, http.StatusOK, MessageStatsResponse{Count: count, LastSentAt: last})
	}
}

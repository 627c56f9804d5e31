// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, and rate limiting.
//
// The chat system ships as three deployables (members, messages, realtime)
// that share one middleware chain. Each binary calls RegisterCommon once and
// then mounts only the route group it serves.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/example/chat-services/internal/broker"
	"github.com/example/chat-services/internal/config"
	"github.com/example/chat-services/internal/domain"
	"github.com/example/chat-services/internal/http/handlers"
	"github.com/example/chat-services/internal/http/middleware"
	"github.com/example/chat-services/internal/realtime"
	"github.com/example/chat-services/internal/repo"
	"github.com/example/chat-services/internal/services"
)

// memberRepoShim adapts the repository free functions to the
// services.MemberRepo interface expected by the MemberService. This keeps
// services decoupled from the concrete repo package while reusing existing
// functions.
type memberRepoShim struct{}

// CreateMember proxies repo.CreateMember.
func (memberRepoShim) CreateMember(ctx context.Context, db *gorm.DB, m *domain.Member) error {
	return repo.CreateMember(ctx, db, m)
}

// GetMember proxies repo.GetMember.
func (memberRepoShim) GetMember(ctx context.Context, db *gorm.DB, id string) (*domain.Member, error) {
	return repo.GetMember(ctx, db, id)
}

// UpdateMemberActivity proxies repo.UpdateMemberActivity.
func (memberRepoShim) UpdateMemberActivity(ctx context.Context, db *gorm.DB, id, etag string, at time.Time) error {
	return repo.UpdateMemberActivity(ctx, db, id, etag, at)
}

// ListInactiveMembers proxies repo.ListInactiveMembers.
func (memberRepoShim) ListInactiveMembers(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]domain.Member, error) {
	return repo.ListInactiveMembers(ctx, db, cutoff)
}

// DeleteMember proxies repo.DeleteMember.
func (memberRepoShim) DeleteMember(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeleteMember(ctx, db, id)
}

// messageRepoShim adapts the repository free functions to the
// services.MessageRepo interface expected by the MessageService.
type messageRepoShim struct{}

// CreateMessage proxies repo.CreateMessage.
func (messageRepoShim) CreateMessage(ctx context.Context, db *gorm.DB, m *domain.Message) error {
	return repo.CreateMessage(ctx, db, m)
}

// ListRecentMessages proxies repo.ListRecentMessages.
func (messageRepoShim) ListRecentMessages(ctx context.Context, db *gorm.DB, count int) ([]domain.Message, error) {
	return repo.ListRecentMessages(ctx, db, count)
}

// ListMessagesByRange proxies repo.ListMessagesByRange.
func (messageRepoShim) ListMessagesByRange(ctx context.Context, db *gorm.DB, from, to time.Time) ([]domain.Message, error) {
	return repo.ListMessagesByRange(ctx, db, from, to)
}

// ListExpiredMessages proxies repo.ListExpiredMessages.
func (messageRepoShim) ListExpiredMessages(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]string, error) {
	return repo.ListExpiredMessages(ctx, db, cutoff)
}

// DeleteMessages proxies repo.DeleteMessages.
func (messageRepoShim) DeleteMessages(ctx context.Context, db *gorm.DB, ids []string) error {
	return repo.DeleteMessages(ctx, db, ids)
}

// RegisterCommon attaches the shared middleware chain, fallback handlers, the
// health probe, and the Prometheus /metrics endpoint to the given Gin engine.
// Every deployable calls this once before mounting its route group.
//
// db may be nil for deployables without persistence (realtime); the
// idempotency replay lookup is skipped in that case.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Idempotency validator (before rate limiter to allow bypass on replay)
//  8. Rate limiter (per sender/IP, bypass on replay)
//  9. CORS and Security headers
func RegisterCommon(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-API-Key", // project-specific sensitive header example
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// Response compression. The websocket upgrade and the Prometheus
	// handler manage their own encoding.
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/ws", "/metrics"})))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Idempotency validation (before rate limiting)
	var lookup middleware.IdempotencyLookup
	if db != nil {
		lookup = func(ctx context.Context, senderID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, senderID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		}
	}
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		lookup,
	))

	// 8) Token-bucket rate limiter per sender/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyBySenderOrIP())
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Sender-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "Idempotency-Replayed"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Sender-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "Idempotency-Replayed"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
}

// RegisterMemberRoutes builds the member service and mounts the member
// directory endpoints under the configured API base path. The constructed
// service is returned so the caller can hand it to the background sweeper.
func RegisterMemberRoutes(r *gin.Engine, db *gorm.DB, events broker.Publisher, cfg config.Config, log zerolog.Logger) *services.MemberService {
	svc := services.NewMemberService(db, memberRepoShim{}, events, clock.New(), log)
	svc.InactiveAfter = cfg.Sweep.MemberIdleAfter

	h := handlers.New(svc, nil)

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.POST("/members", h.RegisterMember)
		api.GET("/members/stats", handlers.MemberStats(db))
		api.GET("/members/:id", h.GetMember)
		api.PUT("/members/:id/activity", h.TouchMemberActivity)
	}
	return svc
}

// RegisterMessageRoutes builds the message service and mounts the message
// endpoints under the configured API base path. The resolver supplies sender
// display names from the presence cache. The constructed service is returned
// for the retention sweeper.
func RegisterMessageRoutes(r *gin.Engine, db *gorm.DB, resolver services.NameResolver, events broker.Publisher, cfg config.Config, log zerolog.Logger) *services.MessageService {
	svc := services.NewMessageService(db, messageRepoShim{}, resolver, events, clock.New(), log)
	svc.Retention = cfg.Sweep.MessageRetention

	h := handlers.New(nil, svc)
	if db != nil {
		h = h.WithIdempotency(handlers.NewIdempotencyDB(db))
	}

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.POST("/messages", h.SendMessage)
		api.GET("/messages/recent", h.GetRecentMessages)
		api.GET("/messages/history", h.GetMessageHistory)
		api.GET("/messages/search", h.SearchMessages)
		api.GET("/messages/stats", handlers.MessageStats(db))
	}
	return svc
}

// RegisterRealtimeRoutes mounts the websocket endpoint served by the hub.
func RegisterRealtimeRoutes(r *gin.Engine, hub *realtime.Hub) {
	r.GET("/ws", func(c *gin.Context) {
		hub.ServeWS(c.Writer, c.Request)
	})
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

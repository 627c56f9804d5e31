// The messages service owns message submission, retrieval, search, and
// retention over SQLite. Sender display names come from the presence cache
// in the shared JetStream KV bucket, which this service populates by
// consuming member-joined events; a cache miss degrades to a deterministic
// placeholder identity, never a failure.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/example/chat-services/internal/broker"
	"github.com/example/chat-services/internal/config"
	"github.com/example/chat-services/internal/domain"
	httpapi "github.com/example/chat-services/internal/http"
	"github.com/example/chat-services/internal/observability"
	"github.com/example/chat-services/internal/presence"
	"github.com/example/chat-services/internal/repo"
	"github.com/example/chat-services/internal/statecache"
	"github.com/example/chat-services/internal/sweeper"
	"github.com/example/chat-services/internal/sysutil"
)

const serviceName = "chat-messages"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// .env is optional; the environment always wins.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.SetLogLevel(cfg.LogLevel)
	log := sysutil.NewLogger(serviceName, cfg.LogPretty)

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, "")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up tracing")
	}
	defer func() {
		if err := shutdownOTel(context.Background()); err != nil {
			log.Warn().Err(err).Msg("tracer shutdown failed")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open database")
	}
	if err := repo.MigrateMessages(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate message schema")
	}

	bus, err := broker.Connect(cfg.Broker.URL, serviceName)
	if err != nil {
		log.Fatal().Err(err).Str("url", cfg.Broker.URL).Msg("failed to connect to broker")
	}
	defer bus.Close()

	js, err := bus.Conn().JetStream()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open JetStream context")
	}
	cache, err := statecache.NewNATSKV(js, cfg.Broker.StateBucket, nil)
	if err != nil {
		log.Fatal().Err(err).Str("bucket", cfg.Broker.StateBucket).Msg("failed to open state bucket")
	}
	resolver := presence.NewResolver(cache, nil, cfg.PresenceTTL, log)

	// Keep the presence cache fed from the member directory.
	unsub, err := bus.Subscribe(broker.TopicMemberJoined, func(data []byte) {
		var evt domain.MemberJoinedEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			log.Warn().Err(err).Msg("invalid member joined event")
			return
		}
		if err := resolver.OnMemberJoined(ctx, evt); err != nil {
			log.Error().Err(err).Str("member_id", evt.ID).Msg("failed to cache member presence")
		}
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe to member joined events")
	}
	defer func() {
		if err := unsub(); err != nil {
			log.Warn().Err(err).Msg("failed to unsubscribe")
		}
	}()

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterCommon(r, db, cfg)
	msgSvc := httpapi.RegisterMessageRoutes(r, db, resolver, bus, cfg, log)

	go sweeper.Run(ctx, "expired-messages", cfg.Sweep.MessageInterval, nil, log, msgSvc.SweepExpired)

	serve(ctx, r, cfg, log)
}

// serve runs the HTTP server until the context is cancelled, then drains it.
func serve(ctx context.Context, handler http.Handler, cfg config.Config, log zerolog.Logger) {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
		}
	}
}

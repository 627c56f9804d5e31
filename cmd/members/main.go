// The members service owns the durable member directory: registration,
// lookup, and activity tracking over SQLite, plus the periodic sweep that
// retires idle members. Join/leave notifications go out on the NATS broker
// for the realtime service to fan out.
package main

import (
	"context"
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
	httpapi "github.com/example/chat-services/internal/http"
	"github.com/example/chat-services/internal/observability"
	"github.com/example/chat-services/internal/repo"
	"github.com/example/chat-services/internal/sweeper"
	"github.com/example/chat-services/internal/sysutil"
)

const serviceName = "chat-members"

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
	if err := repo.MigrateMembers(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate member schema")
	}

	bus, err := broker.Connect(cfg.Broker.URL, serviceName)
	if err != nil {
		log.Fatal().Err(err).Str("url", cfg.Broker.URL).Msg("failed to connect to broker")
	}
	defer bus.Close()

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterCommon(r, db, cfg)
	memberSvc := httpapi.RegisterMemberRoutes(r, db, bus, cfg, log)

	go sweeper.Run(ctx, "inactive-members", cfg.Sweep.MemberInterval, nil, log, memberSvc.SweepInactive)

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

// The realtime service fans chat events out to websocket clients. It keeps
// no durable state: the bridge subscribes to the broker topics and pushes
// frames into the hub, where every connected client belongs to the single
// chat room group.
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
	"github.com/example/chat-services/internal/realtime"
	"github.com/example/chat-services/internal/sysutil"
)

const serviceName = "chat-realtime"

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

	bus, err := broker.Connect(cfg.Broker.URL, serviceName)
	if err != nil {
		log.Fatal().Err(err).Str("url", cfg.Broker.URL).Msg("failed to connect to broker")
	}
	defer bus.Close()

	hub := realtime.NewHub(log)
	bridge := realtime.NewBridge(bus, hub, log)
	if err := bridge.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start event bridge")
	}
	defer bridge.Stop()

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterCommon(r, nil, cfg)
	httpapi.RegisterRealtimeRoutes(r, hub)

	serve(ctx, r, cfg, log)
}

// serve runs the HTTP server until the context is cancelled, then drains it.
func serve(ctx context.Context, handler http.Handler, cfg config.Config, log zerolog.Logger) {
	// No read/write timeouts here: websocket connections are long-lived and
	// keepalive is handled by the hub's ping/pong cycle.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
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

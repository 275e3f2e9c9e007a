package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agyrafa/livecodingtv-bot/internal/api"
	"github.com/agyrafa/livecodingtv-bot/internal/client"
	"github.com/agyrafa/livecodingtv-bot/internal/config"
	"github.com/agyrafa/livecodingtv-bot/internal/handlers"
	"github.com/agyrafa/livecodingtv-bot/internal/policy"
	"github.com/agyrafa/livecodingtv-bot/internal/stanza"
	"github.com/agyrafa/livecodingtv-bot/internal/store"
	"github.com/agyrafa/livecodingtv-bot/internal/xmppconn"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}
	logger = logger.With().Str("session", uuid.NewString()).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Open the settings store
	kv, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("store open failed")
	}
	defer kv.Close()
	logger.Info().Str("backend", cfg.StoreBackend).Msg("settings store ready")

	// Policies
	limiter := policy.NewRateLimiter(kv, logger)
	dedup := policy.NewDeduplicator(kv, logger)
	parser := stanza.NewParser(limiter, nil)

	// Chat transport
	conn, err := xmppconn.New(xmppconn.Config{
		Address:  cfg.Server,
		JID:      cfg.JID,
		Password: cfg.Password,
		Room:     cfg.Room,
		Nickname: cfg.Nickname,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("transport setup failed")
	}

	bot := client.New(conn, kv, dedup, cfg.Room, cfg.Debug, logger, nil)
	handler := handlers.New(bot, parser, limiter, cfg.Nickname, logger)

	// Ops endpoint (health + metrics)
	opsSrv := &http.Server{
		Addr:         cfg.OpsAddr,
		Handler:      api.NewRouter(logger, kv),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", cfg.OpsAddr).Msg("ops endpoint listening")
		if err := opsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("ops endpoint failed")
		}
	}()

	// Connect and listen
	connectCtx, connectCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := conn.Connect(connectCtx); err != nil {
		connectCancel()
		logger.Fatal().Err(err).Msg("room connection failed")
	}
	connectCancel()

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- bot.Listen(ctx, func(raw stanza.Raw) {
			handler.HandleRaw(ctx, raw)
		})
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info().Msg("shutting down...")
	case err := <-listenErr:
		if err != nil && err != context.Canceled {
			logger.Error().Err(err).Msg("listen loop ended")
		}
	}

	cancel()
	bot.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := opsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("ops endpoint forced to shutdown")
	}

	logger.Info().Msg("bot stopped")
}

// openStore selects the settings backend from config.
func openStore(ctx context.Context, cfg *config.Config) (store.KV, error) {
	switch cfg.StoreBackend {
	case "sqlite":
		return store.NewSQLiteStore(ctx, cfg.StoreDir)
	case "redis":
		return store.NewRedisStore(ctx, cfg.RedisURL)
	default:
		return store.NewBoltStore(cfg.StoreDir)
	}
}

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blockedby/tgdown/internal/collector"
	"github.com/blockedby/tgdown/internal/config"
	"github.com/blockedby/tgdown/internal/logger"
	"github.com/blockedby/tgdown/internal/media"
	"github.com/blockedby/tgdown/internal/nats"
	"github.com/blockedby/tgdown/internal/publisher"
	"github.com/blockedby/tgdown/internal/telegram"
	"github.com/blockedby/tgdown/internal/web"
	"github.com/blockedby/tgdown/internal/web/handlers"
	"gorm.io/gorm"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// 2. Initialize logger
	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	log := logger.Get()

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	policy, err := media.ParsePolicy(cfg.DownloadFilter)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	log.Info().
		Str("channel", cfg.Channel).
		Str("path", cfg.DownloadPath).
		Str("filter", string(policy)).
		Bool("history", cfg.DownloadHistory).
		Int("queue", cfg.MaxQueueSize).
		Bool("size_dedup", cfg.SizeDedup).
		Msg("starting tgdown")

	// 3. Setup context with graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("received shutdown signal")
		cancel()
		// a second signal skips the graceful drain
		<-sigChan
		log.Warn().Msg("forced exit")
		os.Exit(1)
	}()

	// 4. Open session store unless a string session is configured
	var db *gorm.DB
	if cfg.TGSessionStr == "" {
		db, err = telegram.OpenSessionStore(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open session store")
		}
	}

	// 5. Connect and authenticate
	tgManager := telegram.NewManager(cfg, db)
	if err := tgManager.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("telegram authentication failed")
	}

	tgClient := telegram.NewClient(
		tgManager,
		telegram.NewRateLimiter(cfg.RateLimitRPS, 1),
		cfg.DownloadThreads,
	)

	// 6. Connect to NATS
	var pub collector.EventPublisher
	if cfg.NatsURL != "" {
		nc, err := nats.New(ctx, cfg.NatsURL)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to nats, publishing disabled")
		} else {
			defer nc.Close()
			if err := nc.EnsureStream(ctx, publisher.StreamName, []string{publisher.SubjectWildcard}); err != nil {
				log.Warn().Err(err).Msg("failed to ensure media stream")
			}
			pub = publisher.NewNATSPublisher(nc)
		}
	}

	// 7. Build the pipeline
	controller := collector.NewController(tgClient, collector.Options{
		Channel:           cfg.Channel,
		Root:              cfg.DownloadPath,
		Policy:            policy,
		History:           cfg.DownloadHistory,
		SizeDedup:         cfg.SizeDedup,
		QueueSize:         cfg.MaxQueueSize,
		HeartbeatInterval: cfg.HeartbeatInterval,
		ShutdownTimeout:   cfg.ShutdownTimeout,
	}, pub, log.Component("collector"))

	// 8. Status server
	var server *web.Server
	if cfg.HTTPPort > 0 {
		server = web.NewServer(&web.Config{Port: cfg.HTTPPort}, log.Component("web"))
		server.RegisterStatsHandler(handlers.NewStatsHandler(controller, tgManager))
		go func() {
			if err := server.Start(); err != nil {
				log.Error().Err(err).Msg("status server error")
			}
		}()
	}

	// 9. Run until signaled
	runErr := controller.Run(ctx)
	switch {
	case errors.Is(runErr, collector.ErrShutdownTimeout):
		log.Warn().Err(runErr).Msg("disconnecting with a transfer still running")
	case runErr != nil:
		log.Error().Err(runErr).Msg("pipeline stopped")
	}

	// 10. Disconnect
	log.Info().Msg("shutting down services...")
	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = server.Stop(shutdownCtx)
		shutdownCancel()
	}
	tgClient.Close()

	s := controller.Counters().Snapshot()
	log.Info().
		Int64("downloaded", s.Downloaded).
		Int64("skipped_size", s.SkippedSize).
		Int64("skipped_hash", s.SkippedHash).
		Int64("skipped_filter", s.SkippedFilter).
		Int64("failed", s.Failed).
		Msg("shutdown complete")

	if runErr != nil && !errors.Is(runErr, collector.ErrShutdownTimeout) {
		os.Exit(1)
	}
}

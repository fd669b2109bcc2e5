package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"creatorstudio/internal/config"
	"creatorstudio/internal/database"
	"creatorstudio/internal/logger"
	"creatorstudio/internal/orchestrator/monitor"
	"creatorstudio/internal/orchestrator/scheduler"
	"creatorstudio/internal/pgmq"
	"creatorstudio/internal/pubsub"
	"creatorstudio/internal/repository"
	"creatorstudio/internal/service"
	"creatorstudio/internal/youtube"

	"github.com/joho/godotenv"
)

func main() {
	// Parse mode flag
	mode := flag.String("mode", "", "Orchestrator mode: monitor|scheduler")
	flag.Parse()

	logger := logger.New()

	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}
	if *mode != "monitor" && *mode != "scheduler" {
		logger.Fatal().Msgf("Invalid mode: %s", *mode)
	}
	logger = logger.With().Str("mode", *mode).Logger()

	// Set up context with graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := database.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Msgf("Failed to open DB: %v", err)
	}
	defer pool.Close()

	pgmqClient := pgmq.New(pool)
	logger.Info().Msg("PGMQ client initialized")

	// The worker refreshes channels on every scan, so no channel cache.
	videos, err := youtube.NewClient(ctx, config.SplitKeys(cfg.YouTubeAPIKeys), "", nil)
	if err != nil {
		logger.Fatal().Msgf("Failed to create YouTube client: %v", err)
	}

	var publisher pubsub.Publisher
	if cfg.GCPProjectID != "" {
		pub, err := pubsub.NewPublisher(ctx, cfg)
		if err != nil {
			logger.Fatal().Msgf("Failed to create Pub/Sub publisher: %v", err)
		}
		defer pub.Close()
		publisher = pub
	}

	monitors := service.NewMonitorService(repository.NewMonitorRepo(pool), videos, pgmqClient, publisher, service.MonitorConfig{
		QueueName:     cfg.MonitorQueueName,
		AlertTopic:    cfg.PubSubAlertTopic,
		VideosPerScan: cfg.MonitorVideosPerScan,
	}, logger)

	var runErr error
	switch *mode {
	case "monitor":
		runErr = monitor.Run(ctx, logger, pgmqClient, monitors, monitor.Config{
			Queue:           cfg.MonitorQueueName,
			DeadLetterQueue: cfg.MonitorDeadLetterQueueName,
			PollTimeoutSec:  cfg.MonitorPollTimeoutSec,
			PollMaxMsg:      cfg.MonitorPollMaxMsg,
			MaxRetries:      cfg.MonitorMaxRetries,
			BackoffInitial:  time.Duration(cfg.MonitorBackoffInitialSec) * time.Second,
			BackoffMax:      time.Duration(cfg.MonitorBackoffMaxSec) * time.Second,
		})
	case "scheduler":
		runErr = scheduler.Run(ctx, logger, monitors, time.Duration(cfg.SchedulerIntervalMin)*time.Minute)
	}
	if runErr != nil {
		logger.Fatal().Msgf("%s orchestrator failed: %v", *mode, runErr)
	}
	logger.Info().Msgf("%s orchestrator stopped gracefully", *mode)
}

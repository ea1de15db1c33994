package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"notifier/internal/batch"
	"notifier/internal/breaker"
	"notifier/internal/config"
	"notifier/internal/db"
	"notifier/internal/notify"
	"notifier/internal/poller"
	"notifier/internal/queue"
	"notifier/internal/redisstore"
)

func main() {
	cfg, err := config.LoadConfig("config/config.yml")
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient, err := redisstore.NewClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to redis")
	}
	store := redisstore.New(redisClient, redisstore.DefaultKeys(), cfg)

	database, err := db.NewDBWithConfig(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize database")
	}
	if err := database.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ping database")
	}
	orderRepo := db.NewOrderRepoWithDB(database)
	revenueRepo := db.NewRevenueRepo(database)

	executorLogger := logger.With().Str("component", "breaker-executor").Logger()
	executor := breaker.New("shared-store", cfg.CircuitBreaker, cfg.Retry, &executorLogger)

	notifyLogger := logger.With().Str("component", "notify-service").Logger()
	notifyService := notify.NewService(
		store, executor, cfg.Notifications.Channel, cfg.Notifications.MaxAge.Std(), &notifyLogger,
	)

	replayLogger := logger.With().Str("component", "outbox-replayer").Logger()
	replayer := notify.NewReplayer(
		notifyService, cfg.Notifications.ReplayInterval.Std(), cfg.Notifications.OutboxBatchSize, &replayLogger,
	)

	schedulerLogger := logger.With().Str("component", "batch-scheduler").Logger()
	scheduler := batch.NewScheduler(
		store, store, revenueRepo, executor,
		cfg.Notifications.Channel, cfg.Batch.Interval.Std(), cfg.Batch.MaxOrdersToSend, &schedulerLogger,
	)

	producerLogger := logger.With().Str("component", "queue-producer").Logger()
	producer := queue.NewProducer(cfg.Kafka, &producerLogger)

	pollerLogger := logger.With().Str("component", "order-poller").Logger()
	orderPoller := poller.New(orderRepo, store, producer, cfg.Poller.Interval.Std(), &pollerLogger)

	consumerLogger := logger.With().Str("component", "queue-consumer").Logger()
	consumer := queue.NewConsumer(*cfg, store, executor, &consumerLogger)

	if err := consumer.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start work-queue consumer")
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		replayer.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		notifyService.RunCleanup(ctx, cfg.Notifications.CleanupInterval.Std())
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		orderPoller.Run(ctx)
	}()

	logger.Info().Msg("Notification pipeline started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := consumer.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Failed to stop work-queue consumer")
	}
	if err := producer.Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close work-queue producer")
	}

	wg.Wait()

	database.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close redis client")
	}

	logger.Info().Msg("Shutdown complete")
}

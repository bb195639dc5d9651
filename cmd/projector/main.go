package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/transcribe-checkout/internal/config"
	"github.com/example/transcribe-checkout/internal/infrastructure/kafka"
	"github.com/example/transcribe-checkout/internal/infrastructure/store"
	"github.com/example/transcribe-checkout/internal/logging"
	"github.com/example/transcribe-checkout/internal/projection"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger, err := logging.New(cfg.LogLevel, "projector")
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	group := cfg.KafkaConsumerGroup
	if group == "" {
		group = "projector"
	}

	logger.Info("========================================")
	logger.Info("Transcription Checkout - CQRS Projector")
	logger.Info("========================================")
	logger.Info("configuration",
		zap.Strings("kafka", cfg.KafkaBrokers),
		zap.String("topic", cfg.KafkaTopic),
		zap.String("group", group))

	db, err := store.ConnectPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}
	defer db.Close()
	if err := store.RunMigrations(db, cfg.MigrationsDir); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("connected to PostgreSQL (read DB)")

	projector := projection.NewProjector(store.NewPostgresReadStore(db), logger)

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, group, logger.Named("kafka"))
	defer consumer.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("starting event consumer")
		if err := consumer.Consume(ctx, projector.HandleEvent); err != nil && ctx.Err() == nil {
			logger.Error("consumer error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	cancel()
	<-done
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/transcribe-checkout/internal/config"
	"github.com/example/transcribe-checkout/internal/domain/order"
	"github.com/example/transcribe-checkout/internal/email"
	"github.com/example/transcribe-checkout/internal/infrastructure/kafka"
	"github.com/example/transcribe-checkout/internal/infrastructure/store"
	"github.com/example/transcribe-checkout/internal/logging"
	"github.com/example/transcribe-checkout/internal/notification"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger, err := logging.New(cfg.LogLevel, "notifier")
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// receipts get their own group so they never compete with projection
	group := cfg.KafkaConsumerGroup
	if group == "" {
		group = "receipt-notifier"
	}

	logger.Info("========================================")
	logger.Info("Transcription Checkout - Receipt Notifier")
	logger.Info("========================================")
	logger.Info("configuration",
		zap.Strings("kafka", cfg.KafkaBrokers),
		zap.String("topic", cfg.KafkaTopic),
		zap.String("group", group),
		zap.String("smtp", cfg.SMTP.Host+":"+cfg.SMTP.Port),
		zap.String("from", cfg.SMTP.From))

	db, err := store.ConnectPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL (event store)")

	// reads only; publishing is the API's job
	orders := order.NewService(store.NewPostgresEventStore(db, nil), logger.Named("order"))
	mailer := email.NewService(email.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		From:     cfg.SMTP.From,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
	})
	handler := notification.NewHandler(mailer, orders, logger)

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, group, logger.Named("kafka"))
	defer consumer.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("starting event consumer")
		if err := consumer.Consume(ctx, handler.HandleEvent); err != nil && ctx.Err() == nil {
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

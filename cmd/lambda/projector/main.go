package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/example/transcribe-checkout/internal/config"
	"github.com/example/transcribe-checkout/internal/infrastructure/kinesis"
	"github.com/example/transcribe-checkout/internal/infrastructure/store"
	"github.com/example/transcribe-checkout/internal/logging"
	"github.com/example/transcribe-checkout/internal/projection"
	"go.uber.org/zap"
)

var (
	projector *projection.Projector
	logger    *zap.Logger
)

func init() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger, err = logging.New(cfg.LogLevel, "lambda-projector")
	if err != nil {
		panic(err)
	}

	db, err := store.ConnectPostgres(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}

	projector = projection.NewProjector(store.NewPostgresReadStore(db), logger)
	logger.Info("initialized")
}

func handler(ctx context.Context, batch events.KinesisEvent) (events.KinesisEventResponse, error) {
	return kinesis.Process(ctx, batch, projector.HandleEvent, logger), nil
}

func main() {
	lambda.Start(handler)
}

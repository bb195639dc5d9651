package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/example/transcribe-checkout/internal/config"
	"github.com/example/transcribe-checkout/internal/domain/order"
	"github.com/example/transcribe-checkout/internal/email"
	"github.com/example/transcribe-checkout/internal/infrastructure/kinesis"
	"github.com/example/transcribe-checkout/internal/infrastructure/store"
	"github.com/example/transcribe-checkout/internal/logging"
	"github.com/example/transcribe-checkout/internal/notification"
	"go.uber.org/zap"
)

var (
	notifier *notification.Handler
	logger   *zap.Logger
)

func init() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger, err = logging.New(cfg.LogLevel, "lambda-notifier")
	if err != nil {
		panic(err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		logger.Fatal("failed to load AWS config", zap.Error(err))
	}
	eventStore := store.NewDynamoEventStore(dynamodb.NewFromConfig(awsCfg), cfg.DynamoEvents, cfg.DynamoSnaps)

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		From:     cfg.SMTP.From,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
	})
	notifier = notification.NewHandler(mailer, order.NewService(eventStore, logger.Named("order")), logger)

	logger.Info("initialized",
		zap.String("table", cfg.DynamoEvents),
		zap.String("smtp", cfg.SMTP.Host+":"+cfg.SMTP.Port))
}

func handler(ctx context.Context, batch events.KinesisEvent) (events.KinesisEventResponse, error) {
	return kinesis.Process(ctx, batch, notifier.HandleEvent, logger), nil
}

func main() {
	lambda.Start(handler)
}

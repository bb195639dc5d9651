package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/example/transcribe-checkout/internal/api"
	"github.com/example/transcribe-checkout/internal/auth"
	"github.com/example/transcribe-checkout/internal/catalog"
	"github.com/example/transcribe-checkout/internal/checkout"
	"github.com/example/transcribe-checkout/internal/config"
	"github.com/example/transcribe-checkout/internal/discount"
	"github.com/example/transcribe-checkout/internal/domain/draft"
	"github.com/example/transcribe-checkout/internal/domain/order"
	"github.com/example/transcribe-checkout/internal/infrastructure/cache"
	"github.com/example/transcribe-checkout/internal/infrastructure/kafka"
	"github.com/example/transcribe-checkout/internal/infrastructure/store"
	"github.com/example/transcribe-checkout/internal/logging"
	"github.com/example/transcribe-checkout/internal/payment"
	"github.com/example/transcribe-checkout/internal/projection"
	"github.com/example/transcribe-checkout/internal/query"
	"github.com/example/transcribe-checkout/internal/session"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const sessionSweepInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger, err := logging.New(cfg.LogLevel, "api")
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := cfg.ValidateAPI(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("========================================")
	logger.Info("Transcription Checkout - CQRS Mode")
	logger.Info("========================================")
	logger.Info("configuration",
		zap.String("event_store", cfg.EventStore),
		zap.Strings("kafka", cfg.KafkaBrokers),
		zap.String("topic", cfg.KafkaTopic),
		zap.Bool("discount_codes", cfg.DiscountCodesEnabled),
		zap.Bool("stripe", cfg.StripeSecretKey != ""))

	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		logger.Fatal("failed to load catalog", zap.Error(err))
	}

	var (
		eventStore store.EventStoreInterface
		readStore  store.OrderReadStore
		projector  *projection.Projector
		wg         sync.WaitGroup
	)

	switch cfg.EventStore {
	case config.EventStoreMemory:
		memReads := store.NewReadStore()
		readStore = memReads
		projector = projection.NewProjector(memReads, logger.Named("projector"))
		eventStore = store.NewEventStore(&projectingPublisher{projector: projector})
		logger.Info("using in-memory stores with synchronous projection")

	case config.EventStorePostgres, config.EventStoreDynamo:
		db, err := store.ConnectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("failed to connect to PostgreSQL", zap.Error(err))
		}
		defer db.Close()
		if err := store.RunMigrations(db, cfg.MigrationsDir); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
		logger.Info("connected to PostgreSQL")

		pgReads := store.NewPostgresReadStore(db)
		readStore = pgReads
		projector = projection.NewProjector(pgReads, logger.Named("projector"))

		if cfg.EventStore == config.EventStoreDynamo {
			eventStore = newDynamoEventStore(ctx, cfg, logger)
			logger.Info("write DB: DynamoDB, read models fed by the Kinesis projector",
				zap.String("table", cfg.DynamoEvents))
			break
		}

		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, logger.Named("kafka"))
		defer producer.Close()
		pgEvents := store.NewPostgresEventStore(db, producer)
		eventStore = pgEvents

		logger.Info("replaying events from PostgreSQL")
		replayEvents(ctx, pgEvents, projector, logger)

		group := cfg.KafkaConsumerGroup
		if group == "" {
			group = "api-projector"
		}
		consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, group, logger.Named("kafka"))
		defer consumer.Close()

		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("starting Kafka consumer (async projection)")
			if err := consumer.Consume(ctx, projector.HandleEvent); err != nil && ctx.Err() == nil {
				logger.Error("projector stopped", zap.Error(err))
			}
		}()
	}

	tokens, err := auth.NewJWTService(cfg.SupabaseJWTSecret, cfg.SupabaseJWTAudience)
	if err != nil {
		logger.Fatal("failed to create token validator", zap.Error(err))
	}

	var rules draft.RuleSource
	var validator discount.Validator
	if cfg.DiscountCodesEnabled {
		rules = cat
		validator = newDiscountValidator(ctx, cfg, logger)
	}

	registry := session.NewRegistry(session.Config{
		TTL:             cfg.SessionTTL,
		Validator:       validator,
		DiscountEnabled: cfg.DiscountCodesEnabled,
		DiscountTimeout: cfg.DiscountTimeout,
		Rules:           rules,
	}, logger.Named("session"))

	wg.Add(1)
	go func() {
		defer wg.Done()
		registry.Run(ctx, sessionSweepInterval)
	}()

	orderSvc := order.NewService(eventStore, logger.Named("order"))
	checkoutSvc := checkout.NewService(newGateway(cfg, logger), orderSvc, checkout.Options{
		Currency: cfg.Currency,
		Timeout:  cfg.PaymentTimeout,
		Rules:    rules,
	}, logger.Named("checkout"))

	handlers := api.NewHandlers(api.Dependencies{
		Sessions:        registry,
		Checkout:        checkoutSvc,
		Queries:         query.NewHandler(readStore, logger.Named("query")),
		Orders:          orderSvc,
		Catalog:         cat,
		DiscountEnabled: cfg.DiscountCodesEnabled,
		SecureCookies:   cfg.SecureCookies,
		Logger:          logger.Named("http"),
	})
	router := api.NewRouter(handlers, api.RouterConfig{
		Tokens:       tokens,
		AdminKeyHash: cfg.AdminAPIKeyHash,
		WebDir:       cfg.WebDir,
		Logger:       logger.Named("http"),
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(router, "checkout-api"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("========================================")
		logger.Info("server started", zap.String("addr", cfg.HTTPAddr))
		logger.Info("========================================")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	wg.Wait()
}

// projectingPublisher feeds events straight into the projector when no
// broker is configured.
type projectingPublisher struct {
	projector *projection.Projector
}

func (p *projectingPublisher) Publish(ctx context.Context, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.projector.HandleEvent(ctx, []byte(key), data)
}

func newDynamoEventStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) *store.DynamoEventStore {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Fatal("failed to load AWS config", zap.Error(err))
	}
	return store.NewDynamoEventStore(dynamodb.NewFromConfig(awsCfg), cfg.DynamoEvents, cfg.DynamoSnaps)
}

func newDiscountValidator(ctx context.Context, cfg *config.Config, logger *zap.Logger) discount.Validator {
	var validator discount.Validator = discount.NewHTTPValidator(cfg.DiscountValidationURL, cfg.DiscountTimeout)
	if cfg.RedisAddr == "" {
		return validator
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, discount results will not be cached", zap.Error(err))
		client.Close()
		return validator
	}
	logger.Info("caching discount validations in Redis", zap.String("addr", cfg.RedisAddr))
	results := cache.NewRedisCache[discount.Result](client, "discount", cfg.DiscountCacheTTL)
	return discount.NewCachedValidator(validator, results, logger.Named("discount"))
}

func newGateway(cfg *config.Config, logger *zap.Logger) payment.Gateway {
	if cfg.StripeSecretKey == "" {
		logger.Warn("STRIPE_SECRET_KEY not set, using the in-memory payment gateway")
		return payment.NewMemoryGateway()
	}
	stripeGateway := payment.NewStripeGateway(cfg.StripeSecretKey, logger.Named("stripe"))
	return payment.NewBreakerGateway(stripeGateway, payment.DefaultBreakerSettings(), logger.Named("payment"))
}

// replayEvents rebuilds read models from every stored event.
func replayEvents(ctx context.Context, eventStore *store.PostgresEventStore, projector *projection.Projector, logger *zap.Logger) {
	events, err := eventStore.GetAllEvents(ctx)
	if err != nil {
		logger.Error("failed to load events for replay", zap.Error(err))
		return
	}
	logger.Info("replaying events", zap.Int("count", len(events)))

	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			logger.Error("failed to encode event", zap.String("event_id", event.ID), zap.Error(err))
			continue
		}
		if err := projector.HandleEvent(ctx, []byte(event.AggregateID), data); err != nil {
			logger.Error("failed to replay event", zap.String("event_id", event.ID), zap.Error(err))
		}
	}
	logger.Info("event replay completed")
}

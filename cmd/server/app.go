package main

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"onetee-be/internal/auth"
	"onetee-be/internal/catalog"
	"onetee-be/internal/config"
	"onetee-be/internal/kafka"
	"onetee-be/internal/logger"
	"onetee-be/internal/metrics"
	"onetee-be/internal/middleware"
	"onetee-be/internal/order"
	"onetee-be/internal/outbox"
	"onetee-be/internal/payment"
	"onetee-be/internal/payment/webhook"
	"onetee-be/internal/storage"
	"onetee-be/internal/transport"
	"onetee-be/internal/user"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const bootTimeout = 5 * time.Second

type app struct {
	handler    http.Handler
	background []func(ctx context.Context)
	closers    []func() error
}

// newApp wires every component. Redis, object storage, Stripe and Kafka are
// optional; each one missing is logged and its feature degrades.
func newApp(ctx context.Context, cfg *config.Config, database *sql.DB) (*app, error) {
	log := logger.L().With(zap.String("component", "bootstrap"))
	a := &app{}
	m := metrics.New()

	catalogSvc := catalog.NewService(catalog.NewRepository(database), imageStore(ctx, cfg.Storage, log))
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, bootTimeout)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Warn("redis unreachable, catalog cache will fall through to postgres", zap.Error(err))
		}
		cancel()
		catalogSvc = catalog.NewCachedService(catalogSvc, rdb, cfg.Redis.CatalogTTL, m)
		a.closers = append(a.closers, rdb.Close)
	} else {
		log.Info("REDIS_ADDR not set, catalog cache disabled")
	}

	var gateway payment.Gateway
	if cfg.Payment.Configured() {
		gateway = payment.NewStripeGateway(cfg.Payment, nil)
	} else {
		log.Warn("STRIPE_SECRET_KEY not set, checkout is disabled")
	}

	orderSvc := order.NewService(order.NewRepository(database, cfg.Kafka.OrderTopic), gateway, order.Options{
		DBTimeout:         cfg.DB.Timeout,
		CheckoutTTL:       cfg.Payment.CheckoutTTL,
		PublicURL:         cfg.PublicURL,
		PaymentConfigured: cfg.Payment.Configured(),
		Observer:          m,
	})

	webhookHandler := webhook.NewHandler(payment.NewVerifier(cfg), payment.NewRepository(database), orderSvc, m, cfg.DB.Timeout)

	userSvc := user.NewService(user.NewRepository(database))

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		log.Warn("JWT_SECRET not set, using an ephemeral signing key")
		secret = uuid.NewString()
	}
	tokens := auth.NewTokenManager(secret, cfg.Auth.TokenTTL)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.InternalKey)
	a.background = append(a.background, limiter.Run)

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, producer.Close)

		processor := outbox.NewProcessor(database, outbox.NewRepository(), producer, m,
			cfg.Kafka.OutboxBatchSize, cfg.Kafka.OutboxInterval)
		a.background = append(a.background, processor.Run)
	} else {
		log.Warn("KAFKA_BROKERS not set, order events stay in the outbox")
	}

	a.handler = transport.NewRouter(&transport.Handlers{
		Auth:    transport.NewAuthHandler(userSvc, tokens, cfg.Auth.CookieSecure),
		Shop:    transport.NewShopHandler(catalogSvc, orderSvc),
		Admin:   transport.NewAdminHandler(catalogSvc, orderSvc),
		Webhook: webhookHandler,
	}, transport.RouterConfig{
		Tokens:    tokens,
		Limiter:   limiter,
		Metrics:   m,
		Ping:      pinger(database),
		DBTimeout: cfg.DB.Timeout,
	})

	return a, nil
}

// imageStore returns nil when MINIO_ENDPOINT is unset or the client cannot be built.
func imageStore(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) catalog.ImageStore {
	if cfg.Endpoint == "" {
		log.Info("MINIO_ENDPOINT not set, product image uploads disabled")
		return nil
	}

	store, err := storage.NewImageStore(cfg)
	if err != nil {
		log.Error("object storage disabled", zap.Error(err))
		return nil
	}

	bucketCtx, cancel := context.WithTimeout(ctx, bootTimeout)
	defer cancel()
	if err := store.EnsureBucket(bucketCtx); err != nil {
		log.Warn("could not ensure product bucket", zap.String("bucket", cfg.ProductBucket), zap.Error(err))
	}
	return store
}

// Start launches the background workers; they stop when ctx is cancelled.
func (a *app) Start(ctx context.Context) {
	for _, run := range a.background {
		go run(ctx)
	}
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.L().Warn("error closing resource", zap.Error(err))
		}
	}
}

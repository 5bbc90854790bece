package config

import (
	"errors"
	"strings"
	"time"

	"onetee-be/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const EnvProduction = "production"

type Config struct {
	AppEnv    string
	AppPort   string
	PublicURL string

	DB        DBConfig
	Auth      AuthConfig
	Payment   PaymentConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Storage   StorageConfig
	RateLimit RateLimitConfig
}

type DBConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// Timeout bounds a single service operation against the database.
	Timeout time.Duration
}

type AuthConfig struct {
	JWTSecret    string
	TokenTTL     time.Duration
	CookieSecure bool
}

type PaymentConfig struct {
	StripeSecretKey     string
	StripeWebhookSecret string
	// APIURL overrides the provider base URL (stripe-mock, tests).
	APIURL                string
	Timeout               time.Duration
	CheckoutTTL           time.Duration
	AllowUnsignedWebhooks bool
}

type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	CatalogTTL time.Duration
}

type KafkaConfig struct {
	Brokers         []string
	OrderTopic      string
	OutboxInterval  time.Duration
	OutboxBatchSize int
}

type StorageConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Secure        bool
	Region        string
	ProductBucket string
	PublicURL     string
}

type RateLimitConfig struct {
	InternalKey string
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// Configured reports whether outbound checkout calls can be made.
func (p PaymentConfig) Configured() bool {
	return p.StripeSecretKey != ""
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("PUBLIC_URL", "http://localhost:5173")

	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("DB_TIMEOUT", "5s")

	v.SetDefault("JWT_TTL", "168h")
	v.SetDefault("COOKIE_SECURE", false)

	v.SetDefault("PAYMENT_TIMEOUT", "15s")
	v.SetDefault("CHECKOUT_TTL", "45m")
	v.SetDefault("PAYMENT_ALLOW_UNSIGNED_WEBHOOKS", false)

	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CATALOG_CACHE_TTL", "10m")

	v.SetDefault("KAFKA_ORDER_TOPIC", "shop.orders")
	v.SetDefault("OUTBOX_INTERVAL", "500ms")
	v.SetDefault("OUTBOX_BATCH_SIZE", 50)

	v.SetDefault("MINIO_SECURE", false)
	v.SetDefault("MINIO_REGION", "us-east-1")
	v.SetDefault("MINIO_BUCKET_PRODUCTS", "products")

	return v
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := newViper()

	cfg := &Config{
		AppEnv:    v.GetString("APP_ENV"),
		AppPort:   v.GetString("APP_PORT"),
		PublicURL: strings.TrimRight(v.GetString("PUBLIC_URL"), "/"),
		DB: DBConfig{
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetString("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			Name:            v.GetString("DB_NAME"),
			SSLMode:         v.GetString("DB_SSLMODE"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
			Timeout:         v.GetDuration("DB_TIMEOUT"),
		},
		Auth: AuthConfig{
			JWTSecret:    v.GetString("JWT_SECRET"),
			TokenTTL:     v.GetDuration("JWT_TTL"),
			CookieSecure: v.GetBool("COOKIE_SECURE"),
		},
		Payment: PaymentConfig{
			StripeSecretKey:       v.GetString("STRIPE_SECRET_KEY"),
			StripeWebhookSecret:   v.GetString("STRIPE_WEBHOOK_SECRET"),
			APIURL:                v.GetString("STRIPE_API_URL"),
			Timeout:               v.GetDuration("PAYMENT_TIMEOUT"),
			CheckoutTTL:           v.GetDuration("CHECKOUT_TTL"),
			AllowUnsignedWebhooks: v.GetBool("PAYMENT_ALLOW_UNSIGNED_WEBHOOKS"),
		},
		Redis: RedisConfig{
			Addr:       v.GetString("REDIS_ADDR"),
			Password:   v.GetString("REDIS_PASSWORD"),
			DB:         v.GetInt("REDIS_DB"),
			CatalogTTL: v.GetDuration("CATALOG_CACHE_TTL"),
		},
		Kafka: KafkaConfig{
			Brokers:         splitList(v.GetString("KAFKA_BROKERS")),
			OrderTopic:      v.GetString("KAFKA_ORDER_TOPIC"),
			OutboxInterval:  v.GetDuration("OUTBOX_INTERVAL"),
			OutboxBatchSize: v.GetInt("OUTBOX_BATCH_SIZE"),
		},
		Storage: StorageConfig{
			Endpoint:      v.GetString("MINIO_ENDPOINT"),
			AccessKey:     v.GetString("MINIO_ROOT_USER"),
			SecretKey:     v.GetString("MINIO_ROOT_PASSWORD"),
			Secure:        v.GetBool("MINIO_SECURE"),
			Region:        v.GetString("MINIO_REGION"),
			ProductBucket: v.GetString("MINIO_BUCKET_PRODUCTS"),
			PublicURL:     strings.TrimRight(v.GetString("MINIO_PUBLIC_URL"), "/"),
		},
		RateLimit: RateLimitConfig{
			InternalKey: v.GetString("RATE_LIMIT_INTERNAL_KEY"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadConfig is Load for process start: configuration errors are fatal.
func LoadConfig() *Config {
	cfg, err := Load()
	if err != nil {
		logger.L().Fatal("invalid configuration", zap.Error(err))
	}
	return cfg
}

func (c *Config) validate() error {
	if c.DB.Host == "" {
		return errors.New("DB_HOST is required")
	}

	// Hosted checkout sessions must expire between 30 minutes and 24 hours out.
	if c.Payment.CheckoutTTL <= 30*time.Minute || c.Payment.CheckoutTTL > 24*time.Hour {
		return errors.New("CHECKOUT_TTL must be more than 30m and at most 24h")
	}

	if c.IsProduction() {
		if c.Auth.JWTSecret == "" {
			return errors.New("JWT_SECRET is required in production")
		}
		if c.Payment.AllowUnsignedWebhooks {
			return errors.New("PAYMENT_ALLOW_UNSIGNED_WEBHOOKS cannot be enabled in production")
		}
	}

	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

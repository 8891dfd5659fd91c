package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env                string          `envconfig:"APP_ENV" default:"dev"`
	HTTPAddr           string          `envconfig:"HTTP_ADDR" default:":8080"`
	MongoURI           string          `envconfig:"MONGO_URI"`
	MongoDB            string          `envconfig:"MONGO_DB" default:"rentacar"`
	KafkaBrokers       []string        `envconfig:"KAFKA_BROKERS"`
	KafkaTopicPrefix   string          `envconfig:"KAFKA_TOPIC_PREFIX"`
	KafkaGroupID       string          `envconfig:"KAFKA_GROUP_ID" default:"rentacar-notifier"`
	IdempotencyTTL     time.Duration   `envconfig:"IDEMP_TTL" default:"168h"`
	OutboxPollInterval time.Duration   `envconfig:"OUTBOX_POLL_INTERVAL" default:"500ms"`
	RetryBackoff       []time.Duration `envconfig:"RETRY_BACKOFF" default:"1s,5s,30s"`
	RateLimitPerMinute int             `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`
	JWTSecret          string          `envconfig:"JWT_SECRET"`
	CarFixtures        string          `envconfig:"CAR_FIXTURES" default:"data/cars.json"`

	Stripe  Stripe
	Booking Booking
	Sweeps  Sweeps
	S3      S3
	SMTP    SMTP
}

type Stripe struct {
	SecretKey     string        `envconfig:"STRIPE_SECRET_KEY"`
	WebhookSecret string        `envconfig:"STRIPE_WEBHOOK_SECRET"`
	Timeout       time.Duration `envconfig:"STRIPE_TIMEOUT" default:"10s"`
	Currency      string        `envconfig:"CHECKOUT_CURRENCY" default:"usd"`
	PublicBaseURL string        `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:8080"`
}

type Booking struct {
	Timezone              string        `envconfig:"BOOKING_TIMEZONE" default:"UTC"`
	Horizon               time.Duration `envconfig:"BOOKING_HORIZON" default:"720h"`
	MinDuration           time.Duration `envconfig:"BOOKING_MIN_DURATION" default:"24h"`
	CancellationPenaltyPc int           `envconfig:"CANCELLATION_PENALTY_PERCENT" default:"10"`
	LatePenaltyPerHour    int64         `envconfig:"LATE_PENALTY_PER_HOUR_CENTS" default:"1000"`
	LateGrace             time.Duration `envconfig:"LATE_GRACE" default:"0s"`
}

type Sweeps struct {
	CompletionInterval time.Duration `envconfig:"COMPLETION_SWEEP_INTERVAL" default:"1h"`
	CleanupInterval    time.Duration `envconfig:"CLEANUP_SWEEP_INTERVAL" default:"12h"`
	CarRetentionMonths int           `envconfig:"CAR_RETENTION_MONTHS" default:"2"`
	RedisURL           string        `envconfig:"REDIS_URL"`
	LeaseTTL           time.Duration `envconfig:"SWEEP_LEASE_TTL" default:"10m"`
}

type S3 struct {
	Endpoint  string        `envconfig:"S3_ENDPOINT"`
	AccessKey string        `envconfig:"S3_ACCESS_KEY"`
	SecretKey string        `envconfig:"S3_SECRET_KEY"`
	Bucket    string        `envconfig:"S3_BUCKET" default:"rentacar-receipts"`
	UseSSL    bool          `envconfig:"S3_USE_SSL" default:"false"`
	LinkTTL   time.Duration `envconfig:"S3_LINK_TTL" default:"168h"`
}

type SMTP struct {
	Host     string `envconfig:"SMTP_HOST"`
	Port     string `envconfig:"SMTP_PORT" default:"587"`
	Username string `envconfig:"SMTP_USERNAME"`
	Password string `envconfig:"SMTP_PASSWORD"`
	From     string `envconfig:"SMTP_FROM" default:"bookings@rentacar.local"`
	FromName string `envconfig:"SMTP_FROM_NAME" default:"Rentacar"`
}

// Load reads an optional .env file and parses configuration from the
// current environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	cfg.KafkaBrokers = compact(cfg.KafkaBrokers)
	if cfg.Stripe.PublicBaseURL != "" {
		cfg.Stripe.PublicBaseURL = strings.TrimRight(cfg.Stripe.PublicBaseURL, "/")
	}
	if _, err := cfg.Location(); err != nil {
		return Config{}, err
	}
	if cfg.Sweeps.CompletionInterval <= 0 || cfg.Sweeps.CleanupInterval <= 0 {
		return Config{}, fmt.Errorf("sweep intervals must be positive")
	}
	return cfg, nil
}

// Location resolves BOOKING_TIMEZONE.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Booking.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid BOOKING_TIMEZONE %q: %w", c.Booking.Timezone, err)
	}
	return loc, nil
}

func (c Config) MemoryStorage() bool {
	return c.MongoURI == ""
}

func compact(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

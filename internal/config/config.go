package config

import (
	"errors"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// devJWTSecret lets a fresh checkout start; Load warns loudly when it is used.
const devJWTSecret = "dev-insecure-secret"

var ErrEmptyJWTSecret = errors.New("config: JWT_SECRET is set but empty")

type Config struct {
	Port     string `envconfig:"PORT" default:"8080"`
	DBDSN    string `envconfig:"DB_DSN" default:"realestate.db"` // sqlite file in project root
	LogFile  string `envconfig:"LOG_FILE" default:"./realestate.log"`
	TimeZone string `envconfig:"TIME_ZONE" default:"UTC"` // zone for naive timestamps

	JWTSecret    string `envconfig:"JWT_SECRET"`
	JWTExpireMin int    `envconfig:"JWT_EXPIRE_MIN" default:"60"`

	// Category graph cache; in-process when REDIS_URL is empty
	RedisURL         string        `envconfig:"REDIS_URL"`
	CategoryCacheTTL time.Duration `envconfig:"CATEGORY_CACHE_TTL" default:"300s"`

	// Domain events; no-op publisher when RABBIT_URL is empty
	RabbitURL      string `envconfig:"RABBIT_URL"`
	EventsExchange string `envconfig:"EVENTS_EXCHANGE" default:"realestate.events"`

	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	StripeCurrency      string `envconfig:"STRIPE_CURRENCY" default:"usd"`
	InsecureWebhooks    bool   `envconfig:"PAYMENTS_INSECURE_WEBHOOKS" default:"false"`

	BkashBaseURL   string `envconfig:"BKASH_BASE_URL"`
	BkashAppKey    string `envconfig:"BKASH_APP_KEY"`
	BkashAppSecret string `envconfig:"BKASH_APP_SECRET"`
	BkashUsername  string `envconfig:"BKASH_USERNAME"`
	BkashPassword  string `envconfig:"BKASH_PASSWORD"`
	BkashMode      string `envconfig:"BKASH_MODE" default:"auto"` // auto | live | mock
	BkashCurrency  string `envconfig:"BKASH_CURRENCY" default:"BDT"`

	ProviderTimeout time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"10s"`
}

// Location resolves TimeZone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func Load() (Config, error) {
	// .env is optional; real environment wins
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	if cfg.JWTSecret == "" {
		// an exported but blank JWT_SECRET is a deployment mistake, not a request for the dev key
		if _, set := os.LookupEnv("JWT_SECRET"); set {
			return Config{}, ErrEmptyJWTSecret
		}
		cfg.JWTSecret = devJWTSecret
	}

	log.Printf("[config] PORT=%s DB_DSN=%s LOG_FILE=%s TIME_ZONE=%s REDIS=%t RABBIT=%t OTLP=%t STRIPE=%t STRIPE_WEBHOOK_SECRET=%t INSECURE_WEBHOOKS=%t BKASH_MODE=%s",
		cfg.Port, cfg.DBDSN, cfg.LogFile, cfg.TimeZone,
		cfg.RedisURL != "", cfg.RabbitURL != "", cfg.OTLPEndpoint != "",
		cfg.StripeSecretKey != "", cfg.StripeWebhookSecret != "", cfg.InsecureWebhooks, cfg.BkashMode)
	if cfg.JWTSecret == devJWTSecret {
		log.Printf("[config] WARNING: JWT_SECRET is the built-in development value; tokens are forgeable")
	}
	if cfg.InsecureWebhooks {
		log.Printf("[config] WARNING: unsigned card webhooks are accepted (PAYMENTS_INSECURE_WEBHOOKS=true)")
	}
	return cfg, nil
}

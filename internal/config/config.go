// Package config loads runtime settings from the environment (and an optional .env file).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

type Config struct {
	Env      string `env:"APP_ENV,default=development"`
	HTTPAddr string `env:"HTTP_ADDR,default=:8080"`
	BaseURL  string `env:"APP_BASE_URL,default=http://localhost:8080"`

	// Storefront origin the hosted checkout returns to; defaults to BaseURL.
	StorefrontURL  string   `env:"STOREFRONT_URL"`
	// Semicolon separated, e.g. "https://shirly.shop;http://localhost:5173".
	AllowedOrigins []string `env:"ALLOWED_ORIGINS"`

	DB        DBConfig
	Auth      AuthConfig
	Redis     RedisConfig
	Payments  PaymentsConfig
	Storage   StorageConfig
	SMTP      SMTPConfig
	RateLimit RateLimitConfig
	Jobs      JobsConfig
}

type DBConfig struct {
	DSN          string `env:"DB_DSN,required"`
	MaxOpenConns int    `env:"DB_MAX_OPEN_CONNS,default=20"`
	MaxIdleConns int    `env:"DB_MAX_IDLE_CONNS,default=5"`
}

type AuthConfig struct {
	JWTSecret    string        `env:"JWT_SECRET,required"`
	TokenTTL     time.Duration `env:"AUTH_TOKEN_TTL,default=720h"`
	TicketSecret string        `env:"WS_TICKET_SECRET"`
	TicketTTL    time.Duration `env:"WS_TICKET_TTL,default=1m"`
}

type RedisConfig struct {
	URL string `env:"REDIS_URL"`
}

type PaymentsConfig struct {
	Provider            string        `env:"PAYMENT_PROVIDER,default=mock"`
	MockWebhookSecret   string        `env:"MOCK_WEBHOOK_SECRET,default=mock-secret"`
	StripeSecretKey     string        `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string        `env:"STRIPE_WEBHOOK_SECRET"`
	SessionTTL          time.Duration `env:"CHECKOUT_SESSION_TTL,default=30m"`
	UnpaidOrderTTL      time.Duration `env:"UNPAID_ORDER_TTL,default=24h"`
}

type StorageConfig struct {
	Driver          string `env:"STORAGE_DRIVER,default=local"`
	LocalDir        string `env:"LOCAL_UPLOAD_DIR,default=./storage/uploads"`
	LocalURLPrefix  string `env:"LOCAL_UPLOAD_URL_PREFIX,default=/uploads"`
	S3Region        string `env:"S3_REGION"`
	S3Bucket        string `env:"S3_BUCKET"`
	S3Prefix        string `env:"S3_PREFIX,default=uploads"`
	S3PublicBaseURL string `env:"S3_PUBLIC_BASE_URL"`
}

type SMTPConfig struct {
	Host          string `env:"SMTP_HOST"`
	Port          string `env:"SMTP_PORT,default=1025"`
	User          string `env:"SMTP_USER"`
	Pass          string `env:"SMTP_PASS"`
	TLSMode       string `env:"SMTP_TLS_MODE,default=none"` // none|starttls|tls
	SkipVerifyTLS bool   `env:"SMTP_SKIP_VERIFY_TLS,default=false"`
	From          string `env:"EMAIL_FROM,default=no-reply@shirly.shop"`
	FromName      string `env:"EMAIL_FROM_NAME,default=Shirly"`
}

type RateLimitConfig struct {
	AuthPerSecond float64 `env:"RATE_AUTH_PER_SEC,default=1"`
	AuthBurst     int     `env:"RATE_AUTH_BURST,default=5"`
	ChatPerSecond float64 `env:"RATE_CHAT_PER_SEC,default=2"`
	ChatBurst     int     `env:"RATE_CHAT_BURST,default=10"`
}

type JobsConfig struct {
	ExpireCheckouts    string        `env:"CRON_EXPIRE_CHECKOUTS,default=@every 5m"`
	PruneSessions      string        `env:"CRON_PRUNE_SESSIONS,default=@hourly"`
	PruneNotifications string        `env:"CRON_PRUNE_NOTIFICATIONS,default=@daily"`
	NotificationMaxAge time.Duration `env:"NOTIFICATION_MAX_AGE,default=2160h"`
}

// Load reads .env (if present; production uses real env vars) and decodes the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv decodes the current process environment without touching .env files.
func FromEnv() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.StorefrontURL == "" {
		c.StorefrontURL = c.BaseURL
	}
	c.StorefrontURL = strings.TrimRight(c.StorefrontURL, "/")
	c.Payments.Provider = strings.ToLower(strings.TrimSpace(c.Payments.Provider))
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if c.Auth.TicketSecret == "" {
		c.Auth.TicketSecret = c.Auth.JWTSecret
	}
}

func (c Config) validate() error {
	if len(c.Auth.JWTSecret) < 16 {
		return errors.New("config: JWT_SECRET must be at least 16 characters")
	}
	switch c.Payments.Provider {
	case "mock":
	case "stripe":
		if c.Payments.StripeSecretKey == "" || c.Payments.StripeWebhookSecret == "" {
			return errors.New("config: STRIPE_SECRET_KEY and STRIPE_WEBHOOK_SECRET are required for PAYMENT_PROVIDER=stripe")
		}
	default:
		return fmt.Errorf("config: unknown PAYMENT_PROVIDER %q", c.Payments.Provider)
	}
	switch c.Storage.Driver {
	case "local":
	case "s3":
		if c.Storage.S3Region == "" || c.Storage.S3Bucket == "" || c.Storage.S3PublicBaseURL == "" {
			return errors.New("config: S3_REGION, S3_BUCKET, S3_PUBLIC_BASE_URL required for STORAGE_DRIVER=s3")
		}
	default:
		return fmt.Errorf("config: unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	return nil
}

func (c Config) IsProduction() bool { return c.Env == "production" }

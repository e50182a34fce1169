package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Stripe   StripeConfig
	Email    EmailConfig
	Storage  StorageConfig
	Redis    RedisConfig
	Jobs     JobsConfig
	Frontend FrontendConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port           string
	Env            string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
	RateLimit      int
	RateBurst      int
}

// DatabaseConfig holds SurrealDB connection settings
type DatabaseConfig struct {
	Host      string
	Port      string
	Namespace string
	Database  string
	User      string
	Password  string
	TLS       bool
}

// JWTConfig holds JWT signing settings
type JWTConfig struct {
	PrivateKeyPath string
	PublicKeyPath  string
	ExpirationMins int
	Issuer         string
}

// StripeConfig holds payment processor settings
type StripeConfig struct {
	SecretKey       string
	WebhookSecret   string
	Currency        string
	MonthlyPriceID  string
	AnnualPriceID   string
	StatementSuffix string
}

// EmailConfig holds transactional email settings
type EmailConfig struct {
	APIURL    string
	APIKey    string
	FromEmail string
	FromName  string
	Timeout   time.Duration
}

// StorageConfig holds object storage settings for avatars
type StorageConfig struct {
	URL           string
	APIKey        string
	AvatarBucket  string
	MaxAvatarSize int64
}

// RedisConfig holds the optional Redis connection used for counters
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JobsConfig holds cron schedules for background jobs
type JobsConfig struct {
	Enabled               bool
	AuctionFinalizeSpec   string
	SubscriptionSweepSpec string
	ViewFlushSpec         string
	TokenCleanupSpec      string
}

// FrontendConfig holds the public web app location used in redirects and emails
type FrontendConfig struct {
	BaseURL string
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			Env:            getEnv("SERVER_ENV", "development"),
			ReadTimeout:    getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getDurationEnv("SERVER_WRITE_TIMEOUT", 15*time.Second),
			AllowedOrigins: getSliceEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
			RateLimit:      getIntEnv("RATE_LIMIT_PER_MINUTE", 120),
			RateBurst:      getIntEnv("RATE_LIMIT_BURST", 30),
		},
		Database: DatabaseConfig{
			Host:      getEnv("DB_HOST", "localhost"),
			Port:      getEnv("DB_PORT", "8000"),
			Namespace: getEnv("DB_NAMESPACE", "exitlane"),
			Database:  getEnv("DB_DATABASE", "main"),
			User:      getEnv("DB_USER", "root"),
			Password:  getEnv("DB_PASSWORD", "root"),
			TLS:       getBoolEnv("DB_TLS", false),
		},
		JWT: JWTConfig{
			PrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./keys/private.pem"),
			PublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./keys/public.pem"),
			ExpirationMins: getIntEnv("JWT_EXPIRATION_MINS", 15),
			Issuer:         getEnv("JWT_ISSUER", "exitlane.forgo.software"),
		},
		Stripe: StripeConfig{
			SecretKey:       getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret:   getEnv("STRIPE_WEBHOOK_SECRET", ""),
			Currency:        getEnv("STRIPE_CURRENCY", "usd"),
			MonthlyPriceID:  getEnv("STRIPE_PRICE_BUYER_MONTHLY", ""),
			AnnualPriceID:   getEnv("STRIPE_PRICE_BUYER_ANNUAL", ""),
			StatementSuffix: getEnv("STRIPE_STATEMENT_SUFFIX", "EXITLANE"),
		},
		Email: EmailConfig{
			APIURL:    getEnv("EMAIL_API_URL", "https://api.resend.com"),
			APIKey:    getEnv("EMAIL_API_KEY", ""),
			FromEmail: getEnv("EMAIL_FROM", "hello@exitlane.dev"),
			FromName:  getEnv("EMAIL_FROM_NAME", "Exitlane"),
			Timeout:   getDurationEnv("EMAIL_TIMEOUT", 10*time.Second),
		},
		Storage: StorageConfig{
			URL:           getEnv("STORAGE_URL", ""),
			APIKey:        getEnv("STORAGE_API_KEY", ""),
			AvatarBucket:  getEnv("STORAGE_AVATAR_BUCKET", "avatars"),
			MaxAvatarSize: getInt64Env("STORAGE_MAX_AVATAR_BYTES", 2<<20),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Jobs: JobsConfig{
			Enabled:               getBoolEnv("JOBS_ENABLED", true),
			AuctionFinalizeSpec:   getEnv("JOBS_AUCTION_FINALIZE_SPEC", "@every 1m"),
			SubscriptionSweepSpec: getEnv("JOBS_SUBSCRIPTION_SWEEP_SPEC", "@hourly"),
			ViewFlushSpec:         getEnv("JOBS_VIEW_FLUSH_SPEC", "@every 5m"),
			TokenCleanupSpec:      getEnv("JOBS_TOKEN_CLEANUP_SPEC", "0 3 * * *"),
		},
		Frontend: FrontendConfig{
			BaseURL: strings.TrimRight(getEnv("FRONTEND_BASE_URL", "http://localhost:5173"), "/"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}, nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Validate checks that all required configuration values are present and valid.
// It returns an error describing all validation failures, or nil if valid.
func (c *Config) Validate() error {
	var errs []error

	// Server validation
	if c.Server.Port == "" {
		errs = append(errs, errors.New("SERVER_PORT is required"))
	}
	if c.Server.Env != "development" && c.Server.Env != "production" && c.Server.Env != "test" {
		errs = append(errs, fmt.Errorf("SERVER_ENV must be 'development', 'production', or 'test', got '%s'", c.Server.Env))
	}
	if len(c.Server.AllowedOrigins) == 0 {
		errs = append(errs, errors.New("CORS_ALLOWED_ORIGINS must have at least one origin"))
	}
	if c.Server.RateLimit <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_PER_MINUTE must be positive"))
	}

	// Database validation
	if c.Database.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.Database.Port == "" {
		errs = append(errs, errors.New("DB_PORT is required"))
	}
	if c.Database.Namespace == "" {
		errs = append(errs, errors.New("DB_NAMESPACE is required"))
	}
	if c.Database.Database == "" {
		errs = append(errs, errors.New("DB_DATABASE is required"))
	}

	// JWT validation - critical for production
	if c.IsProduction() {
		if c.JWT.PrivateKeyPath == "" {
			errs = append(errs, errors.New("JWT_PRIVATE_KEY_PATH is required in production"))
		}
		if c.JWT.PublicKeyPath == "" {
			errs = append(errs, errors.New("JWT_PUBLIC_KEY_PATH is required in production"))
		}
	}
	if c.JWT.ExpirationMins <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRATION_MINS must be positive"))
	}

	// Payments are mandatory in production, optional elsewhere
	if c.IsProduction() || c.Stripe.IsConfigured() {
		if err := c.Stripe.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("Stripe: %w", err))
		}
	}

	if c.Storage.IsConfigured() {
		if err := c.Storage.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("Storage: %w", err))
		}
	}

	if c.Email.APIKey != "" && c.Email.FromEmail == "" {
		errs = append(errs, errors.New("EMAIL_FROM is required when EMAIL_API_KEY is set"))
	}

	if c.Frontend.BaseURL == "" {
		errs = append(errs, errors.New("FRONTEND_BASE_URL is required"))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got '%s'", c.Log.Level))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// IsConfigured returns true if any Stripe field is set
func (s StripeConfig) IsConfigured() bool {
	return s.SecretKey != "" || s.WebhookSecret != ""
}

// Validate checks that all required Stripe fields are present
func (s StripeConfig) Validate() error {
	var missing []string
	if s.SecretKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}
	if s.WebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	if s.Currency == "" {
		missing = append(missing, "STRIPE_CURRENCY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// IsConfigured returns true if any storage field is set
func (s StorageConfig) IsConfigured() bool {
	return s.URL != "" || s.APIKey != ""
}

// Validate checks that all required storage fields are present
func (s StorageConfig) Validate() error {
	var missing []string
	if s.URL == "" {
		missing = append(missing, "STORAGE_URL")
	}
	if s.APIKey == "" {
		missing = append(missing, "STORAGE_API_KEY")
	}
	if s.AvatarBucket == "" {
		missing = append(missing, "STORAGE_AVATAR_BUCKET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	if s.MaxAvatarSize <= 0 {
		return errors.New("STORAGE_MAX_AVATAR_BYTES must be positive")
	}
	return nil
}

// Helper functions for reading environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

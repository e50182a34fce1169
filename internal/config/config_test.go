package config

import (
	"strings"
	"testing"
	"time"
)

func TestConfig_Validate_ValidConfig(t *testing.T) {
	cfg := validBaseConfig()

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}
}

func TestConfig_Validate_InvalidServerEnv(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Server.Env = "invalid"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid SERVER_ENV")
	}
	if !strings.Contains(err.Error(), "SERVER_ENV") {
		t.Errorf("expected error to mention SERVER_ENV, got: %v", err)
	}
}

func TestConfig_Validate_MissingPort(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Server.Port = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing SERVER_PORT")
	}
	if !strings.Contains(err.Error(), "SERVER_PORT") {
		t.Errorf("expected error to mention SERVER_PORT, got: %v", err)
	}
}

func TestConfig_Validate_EmptyAllowedOrigins(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Server.AllowedOrigins = []string{}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for empty CORS_ALLOWED_ORIGINS")
	}
	if !strings.Contains(err.Error(), "CORS_ALLOWED_ORIGINS") {
		t.Errorf("expected error to mention CORS_ALLOWED_ORIGINS, got: %v", err)
	}
}

func TestConfig_Validate_MissingDatabaseHost(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Database.Host = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing DB_HOST")
	}
	if !strings.Contains(err.Error(), "DB_HOST") {
		t.Errorf("expected error to mention DB_HOST, got: %v", err)
	}
}

func TestConfig_Validate_InvalidJWTExpiration(t *testing.T) {
	cfg := validBaseConfig()
	cfg.JWT.ExpirationMins = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for zero JWT_EXPIRATION_MINS")
	}
	if !strings.Contains(err.Error(), "JWT_EXPIRATION_MINS") {
		t.Errorf("expected error to mention JWT_EXPIRATION_MINS, got: %v", err)
	}
}

func TestConfig_Validate_ProductionRequiresJWTKeysAndStripe(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Server.Env = "production"
	cfg.JWT.PrivateKeyPath = ""
	cfg.JWT.PublicKeyPath = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing JWT keys in production")
	}
	for _, field := range []string{"JWT_PRIVATE_KEY_PATH", "JWT_PUBLIC_KEY_PATH", "STRIPE_SECRET_KEY", "STRIPE_WEBHOOK_SECRET"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("expected error to mention %s, got: %v", field, err)
		}
	}
}

func TestConfig_Validate_PartialStripe(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Stripe.SecretKey = "sk_test_123"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for partial Stripe config")
	}
	if !strings.Contains(err.Error(), "Stripe") {
		t.Errorf("expected error to mention Stripe, got: %v", err)
	}
	if !strings.Contains(err.Error(), "STRIPE_WEBHOOK_SECRET") {
		t.Errorf("expected error to mention STRIPE_WEBHOOK_SECRET, got: %v", err)
	}
}

func TestConfig_Validate_StripeOptionalInDevelopment(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Stripe = StripeConfig{Currency: "usd"}

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected no error without Stripe in development, got: %v", err)
	}
}

func TestConfig_Validate_InvalidLogLevel(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Log.Level = "verbose"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid LOG_LEVEL")
	}
	if !strings.Contains(err.Error(), "LOG_LEVEL") {
		t.Errorf("expected error to mention LOG_LEVEL, got: %v", err)
	}
}

func TestStripeConfig_IsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		cfg      StripeConfig
		expected bool
	}{
		{"empty", StripeConfig{}, false},
		{"currency_only", StripeConfig{Currency: "usd"}, false},
		{"secret_only", StripeConfig{SecretKey: "sk"}, true},
		{"full", StripeConfig{SecretKey: "sk", WebhookSecret: "whsec", Currency: "usd"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.IsConfigured(); got != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestStorageConfig_Validate_MissingFields(t *testing.T) {
	cfg := StorageConfig{
		URL: "https://storage.example.com",
		// Missing APIKey
		AvatarBucket:  "avatars",
		MaxAvatarSize: 1024,
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for incomplete storage config")
	}
	if !strings.Contains(err.Error(), "STORAGE_API_KEY") {
		t.Errorf("expected error to mention STORAGE_API_KEY, got: %v", err)
	}
}

func TestStorageConfig_Validate_NonPositiveSize(t *testing.T) {
	cfg := StorageConfig{URL: "u", APIKey: "k", AvatarBucket: "avatars", MaxAvatarSize: 0}

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "STORAGE_MAX_AVATAR_BYTES") {
		t.Errorf("expected STORAGE_MAX_AVATAR_BYTES error, got: %v", err)
	}
}

func TestConfig_Validate_MultipleErrors(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           "",
			Env:            "invalid",
			AllowedOrigins: []string{},
		},
		Database: DatabaseConfig{
			Host: "",
		},
		JWT: JWTConfig{
			ExpirationMins: 0,
		},
		Log: LogConfig{Level: "info"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected multiple validation errors")
	}

	errStr := err.Error()
	expectedFields := []string{"SERVER_PORT", "SERVER_ENV", "CORS_ALLOWED_ORIGINS", "RATE_LIMIT_PER_MINUTE", "DB_HOST", "JWT_EXPIRATION_MINS", "FRONTEND_BASE_URL"}
	for _, field := range expectedFields {
		if !strings.Contains(errStr, field) {
			t.Errorf("expected error to mention %s, got: %v", field, err)
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "")
	t.Setenv("FRONTEND_BASE_URL", "https://exitlane.dev/")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Frontend.BaseURL != "https://exitlane.dev" {
		t.Errorf("Frontend.BaseURL = %q, want trailing slash trimmed", cfg.Frontend.BaseURL)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Storage.MaxAvatarSize != 2<<20 {
		t.Errorf("MaxAvatarSize = %d, want %d", cfg.Storage.MaxAvatarSize, 2<<20)
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Env: "development"}}
	if !cfg.IsDevelopment() {
		t.Error("expected IsDevelopment() to return true")
	}

	cfg.Server.Env = "production"
	if cfg.IsDevelopment() {
		t.Error("expected IsDevelopment() to return false in production")
	}
}

func TestConfig_IsProduction(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Env: "production"}}
	if !cfg.IsProduction() {
		t.Error("expected IsProduction() to return true")
	}

	cfg.Server.Env = "development"
	if cfg.IsProduction() {
		t.Error("expected IsProduction() to return false in development")
	}
}

// validBaseConfig returns a minimal valid configuration for testing
func validBaseConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			Env:            "development",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			AllowedOrigins: []string{"http://localhost:5173"},
			RateLimit:      120,
			RateBurst:      30,
		},
		Database: DatabaseConfig{
			Host:      "localhost",
			Port:      "8000",
			Namespace: "exitlane",
			Database:  "main",
			User:      "root",
			Password:  "root",
		},
		JWT: JWTConfig{
			PrivateKeyPath: "./keys/private.pem",
			PublicKeyPath:  "./keys/public.pem",
			ExpirationMins: 15,
			Issuer:         "exitlane.forgo.software",
		},
		Stripe: StripeConfig{
			Currency: "usd",
		},
		Email: EmailConfig{
			FromEmail: "hello@exitlane.dev",
		},
		Storage: StorageConfig{
			AvatarBucket:  "avatars",
			MaxAvatarSize: 2 << 20,
		},
		Frontend: FrontendConfig{BaseURL: "http://localhost:5173"},
		Log:      LogConfig{Level: "info"},
	}
}

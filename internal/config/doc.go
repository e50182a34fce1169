// Package config manages application configuration for the Exitlane API.
//
// The config package loads and validates configuration from environment variables.
// All configuration is centralized here to provide a single source of truth.
//
// # Configuration Loading
//
// An optional .env file is read first, then environment variables:
//
//	cfg, err := config.Load()
//	if err != nil { ... }
//	if err := cfg.Validate(); err != nil { ... }
//
// # Configuration Groups
//
//   - ServerConfig: HTTP server settings (port, timeouts, CORS, rate limits)
//   - DatabaseConfig: SurrealDB connection settings
//   - JWTConfig: JWT signing and validation settings
//   - StripeConfig: payment intents, checkout and webhook secret
//   - EmailConfig: transactional email API
//   - StorageConfig: avatar object storage
//   - RedisConfig: optional counter store
//   - JobsConfig: cron expressions for background jobs
//   - FrontendConfig: public web app URL for redirects and email links
//
// # Environment Variables
//
// Key environment variables:
//
//	SERVER_PORT            - HTTP server port (default: 8080)
//	DB_HOST, DB_PORT       - SurrealDB endpoint
//	DB_NAMESPACE           - Database namespace (default: exitlane)
//	JWT_PRIVATE_KEY_PATH   - RSA private key for access tokens
//	STRIPE_SECRET_KEY      - Stripe API key (required in production)
//	STRIPE_WEBHOOK_SECRET  - Stripe webhook signing secret
//	EMAIL_API_KEY          - Email API key; emails are logged when unset
//	STORAGE_URL            - Object storage base URL for avatars
//	REDIS_ADDR             - Redis address; in-memory counters when unset
//	FRONTEND_BASE_URL      - Public web app URL
package config

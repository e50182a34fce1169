// Package middleware provides HTTP middleware for the Exitlane API.
//
// The middleware package contains reusable middleware components for
// authentication, authorization, rate limiting, and request processing.
//
// # Available Middleware
//
//   - Auth / OptionalAuth: JWT access token validation
//   - AdminAuth: admin role check, runs after Auth
//   - RateLimit: token bucket per user or remote address
//   - Idempotency: replays POST/PATCH responses for a repeated Idempotency-Key
//   - RequestID, Logger, Recovery, CORS, Compress
//
// Compose them with Chain:
//
//	h := middleware.Chain(mux, middleware.RequestID, middleware.Logger, middleware.Recovery)
//
// # Context Values
//
// Middleware sets context values accessible via helper functions:
//
//   - GetUserID(ctx): authenticated user ID
//   - GetClaims(ctx): full access token claims
//   - IsAdmin(ctx): whether the claims carry the admin role
//   - GetRequestID(ctx): unique request identifier
package middleware

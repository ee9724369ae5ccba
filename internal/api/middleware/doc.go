// Package middleware provides HTTP middleware for the broker.
//
// Middleware stack includes:
//   - CORS: Cross-origin resource sharing for the session API
//   - RateLimit: Per-IP token bucket rate limiting for the upgrade route
//
// Rate Limiting:
//   - Per-IP tracking; idle clients are dropped after five minutes
//   - Token bucket algorithm from golang.org/x/time/rate
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.CORSConfigForOrigins(cfg.Server.AllowedOrigins)))
//	router.GET("/terminal", middleware.RateLimit(middleware.DefaultRateLimitConfig()), ws.HandleConnection)
package middleware

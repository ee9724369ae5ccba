// Package http provides the broker's REST endpoints.
//
// Endpoints:
//   - Health: / and /health
//   - Sessions: GET /sessions, DELETE /sessions/:id
//   - Stats: /metrics/json
//
// Example Usage:
//
//	handlers := http.NewHandlers(registry, metrics, version)
//	router.GET("/health", handlers.Health)
//	router.DELETE("/sessions/:id", handlers.DeleteSession)
package http

// Package server assembles the broker: configuration, session registry,
// HTTP routes and the listener.
//
// Routes:
//   - GET /terminal: WebSocket upgrade, one shell per connection
//   - GET /health, GET /sessions, DELETE /sessions/:id
//   - GET /metrics (Prometheus), GET /metrics/json
//
// Example Usage:
//
//	srv, err := server.NewServer(cfg, logger, version)
//	if err != nil {
//	    return err
//	}
//	return srv.Run(ctx)
package server

// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON lines on stderr for machine parsing
//   - Development: Colored console output for human readability
//
// Logs go to stderr so that `ptyd attach` can own stdout for terminal
// output.
//
// Example Usage:
//
//	logger, err := logging.New(logging.ConfigFor(cfg.Logging.Level, cfg.Logging.Development))
//	logger.Info("Listening", zap.Int("port", 3001))
//	sessions := logger.Component("registry")
//	sessions.Warn("Spawn failed", zap.Error(err))
package logging

// Package config provides 12-factor configuration management for ptyd.
//
// Configuration is layered: built-in defaults, then an optional TOML file,
// then environment variables. CLI flags override the result.
//
// Configuration Sections:
//   - Server: listen host, preferred port, port search limit, allowed origins
//   - Terminal: shell, working directory, TERM, COLORTERM, locale, kill grace
//   - Logging: log level and output format
//   - RateLimit: per-IP limiting of new terminal connections
//
// Example Usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Environment Variables:
//   - PTYD_CONFIG (path to a TOML file)
//   - HOST, PORT, PORT_SEARCH_LIMIT, ALLOWED_ORIGINS
//   - SHELL_PATH, TERMINAL_DIR, TERM_TYPE, COLOR_TERM, TERMINAL_LOCALE
//   - KILL_GRACE, MAX_SESSIONS
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config

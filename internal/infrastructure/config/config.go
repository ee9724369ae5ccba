package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// FileEnv names the environment variable that points at an optional TOML
// configuration file.
const FileEnv = "PTYD_CONFIG"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Terminal  TerminalConfig  `toml:"terminal"`
	Logging   LogConfig       `toml:"logging"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
}

// ServerConfig holds listener configuration.
type ServerConfig struct {
	Host string `envconfig:"HOST" toml:"host"`
	Port int    `envconfig:"PORT" toml:"port"`
	// PortSearchLimit is how many ports above Port are tried when Port is
	// already bound.
	PortSearchLimit int      `envconfig:"PORT_SEARCH_LIMIT" toml:"port_search_limit"`
	AllowedOrigins  []string `envconfig:"ALLOWED_ORIGINS" toml:"allowed_origins"`
}

// TerminalConfig holds shell spawn configuration.
type TerminalConfig struct {
	Shell     string   `envconfig:"SHELL_PATH" toml:"shell"`
	Dir       string   `envconfig:"TERMINAL_DIR" toml:"dir"`
	TermType  string   `envconfig:"TERM_TYPE" toml:"term"`
	ColorTerm string   `envconfig:"COLOR_TERM" toml:"color_term"`
	Locale    string   `envconfig:"TERMINAL_LOCALE" toml:"locale"`
	KillGrace Duration `envconfig:"KILL_GRACE" toml:"kill_grace"`
	// MaxSessions caps concurrent sessions. Zero means unbounded.
	MaxSessions int `envconfig:"MAX_SESSIONS" toml:"max_sessions"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" toml:"development"`
}

// RateLimitConfig holds per-IP rate limiting for the upgrade endpoint.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" toml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" toml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" toml:"enabled"`
}

// Duration is a time.Duration that decodes from strings like "500ms" in
// both TOML files and environment variables.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Load loads configuration from Default, then the file named by PTYD_CONFIG
// (if set), then environment variables.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(FileEnv))
}

// LoadFile is Load with an explicit file path. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if c.Server.PortSearchLimit < 0 {
		return fmt.Errorf("invalid port search limit %d", c.Server.PortSearchLimit)
	}
	if c.Terminal.MaxSessions < 0 {
		return fmt.Errorf("invalid max sessions %d", c.Terminal.MaxSessions)
	}
	if c.Terminal.KillGrace.Duration < 0 {
		return fmt.Errorf("invalid kill grace %s", c.Terminal.KillGrace)
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            3001,
			PortSearchLimit: 20,
		},
		Terminal: TerminalConfig{
			Shell:     defaultShell(),
			TermType:  "xterm-256color",
			ColorTerm: "truecolor",
			KillGrace: Duration{500 * time.Millisecond},
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			Burst:             20,
			Enabled:           true,
		},
	}
}

func defaultShell() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	return "/bin/bash"
}

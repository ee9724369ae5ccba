package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/ptyd/internal/api/http"
	"github.com/GriffinCanCode/ptyd/internal/api/middleware"
	"github.com/GriffinCanCode/ptyd/internal/api/ws"
	"github.com/GriffinCanCode/ptyd/internal/infrastructure/config"
	"github.com/GriffinCanCode/ptyd/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ptyd/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ptyd/internal/terminal"
)

// ShutdownTimeout bounds how long Run waits for sessions to end after its
// context is cancelled.
const ShutdownTimeout = 5 * time.Second

// ErrNotStarted is returned by Serve before Start has bound a port.
var ErrNotStarted = errors.New("server not started")

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	registry *terminal.Registry
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics

	mu       sync.Mutex
	http     *http.Server
	listener net.Listener
	port     int
}

// NewServer creates a new server instance. A nil logger is built from
// cfg.Logging.
func NewServer(cfg *config.Config, logger *logging.Logger, version string) (*Server, error) {
	if logger == nil {
		var err error
		logger, err = logging.New(logging.ConfigFor(cfg.Logging.Level, cfg.Logging.Development))
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	logger.Info("Initializing terminal broker",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("shell", cfg.Terminal.Shell),
		zap.Int("max_sessions", cfg.Terminal.MaxSessions),
	)

	metrics := monitoring.NewMetrics()

	registry := terminal.NewRegistry(terminal.RegistryConfig{
		Spawn: terminal.SpawnOptions{
			Shell:     cfg.Terminal.Shell,
			Dir:       cfg.Terminal.Dir,
			TermType:  cfg.Terminal.TermType,
			ColorTerm: cfg.Terminal.ColorTerm,
			Locale:    cfg.Terminal.Locale,
			KillGrace: cfg.Terminal.KillGrace.Duration,
		},
		MaxSessions: cfg.Terminal.MaxSessions,
	}, logger.Component("terminal"), metrics)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.CORSConfigForOrigins(cfg.Server.AllowedOrigins)))

	handlers := apihttp.NewHandlers(registry, metrics, version)
	wsHandler := ws.NewHandler(registry, ws.Config{
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, logger.Component("ws"))

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	router.GET("/sessions", handlers.ListSessions)
	router.DELETE("/sessions/:id", handlers.DeleteSession)

	// Only the upgrade is rate limited; each accepted request costs a shell.
	upgrade := []gin.HandlerFunc{}
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		upgrade = append(upgrade, middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}
	upgrade = append(upgrade, wsHandler.HandleConnection)
	router.GET("/terminal", upgrade...)

	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/metrics/json", handlers.Stats)

	logger.Info("Server initialized successfully")

	return &Server{
		router:   router,
		registry: registry,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}, nil
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Registry returns the session registry.
func (s *Server) Registry() *terminal.Registry {
	return s.registry
}

// Start binds the listener, falling back to higher ports when the configured
// one is taken.
func (s *Server) Start() error {
	ln, port, err := terminal.Listen(
		s.config.Server.Host,
		s.config.Server.Port,
		s.config.Server.PortSearchLimit+1,
		s.logger.Component("listener"),
		s.metrics,
	)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = ln
	s.port = port
	s.http = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Unlock()

	s.logger.Info("Listening", zap.String("addr", s.Addr()))
	return nil
}

// Serve accepts connections until Shutdown. It returns nil after a clean
// shutdown.
func (s *Server) Serve() error {
	s.mu.Lock()
	srv, ln := s.http, s.listener
	s.mu.Unlock()
	if srv == nil {
		return ErrNotStarted
	}

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Run starts the server and blocks until ctx is cancelled or serving fails.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Serve()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if shutdownErr := s.registry.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Warn("Sessions did not end in time", zap.Error(shutdownErr))
		}
		return err
	}
}

// Port returns the bound port, or 0 before Start.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// Addr returns the address clients should connect to.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Server.Host, strconv.Itoa(s.Port()))
}

// Shutdown stops accepting connections and then terminates every session.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()

	var errs []error
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Error("Failed to stop HTTP server", zap.Error(err))
			errs = append(errs, fmt.Errorf("failed to stop http server: %w", err))
		}
	}
	if err := s.registry.Shutdown(ctx); err != nil {
		s.logger.Error("Sessions did not end in time", zap.Error(err))
		errs = append(errs, fmt.Errorf("failed to close sessions: %w", err))
	} else {
		s.logger.Info("Closed all sessions")
	}

	// Sync logger before exit
	s.logger.Sync()

	return errors.Join(errs...)
}

package ws

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ptyd/internal/terminal"
)

// DefaultReadLimit caps a single inbound frame. Pasted text arrives as one
// frame, so this is generous.
const DefaultReadLimit = 1 << 20

// Opener runs a session on an upgraded connection until it is closed.
// *terminal.Registry satisfies it.
type Opener interface {
	Open(conn terminal.Conn, remoteAddr string) error
}

// Config configures the upgrade.
type Config struct {
	// AllowedOrigins restricts browser origins. Empty allows every origin;
	// requests without an Origin header (non-browser clients) are always
	// allowed.
	AllowedOrigins  []string
	ReadLimit       int64
	ReadBufferSize  int
	WriteBufferSize int
}

// Handler upgrades HTTP requests to terminal sessions.
type Handler struct {
	opener    Opener
	upgrader  websocket.Upgrader
	readLimit int64
	logger    *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(opener Opener, cfg Config, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = DefaultReadLimit
	}
	return &Handler{
		opener: opener,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
		readLimit: cfg.ReadLimit,
		logger:    logger,
	}
}

// HandleConnection upgrades the request and blocks until the session ends.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		h.logger.Warn("WebSocket upgrade failed",
			zap.String("remote_addr", c.ClientIP()),
			zap.String("origin", c.GetHeader("Origin")),
			zap.Error(err),
		)
		return
	}
	conn.SetReadLimit(h.readLimit)

	if err := h.opener.Open(conn, c.Request.RemoteAddr); err != nil {
		var spawnErr *terminal.SpawnError
		switch {
		case errors.As(err, &spawnErr):
			// Logged by the registry.
		case errors.Is(err, terminal.ErrCapacity), errors.Is(err, terminal.ErrRegistryClosed):
			h.logger.Debug("Connection refused", zap.Error(err))
		default:
			h.logger.Warn("Session ended with error", zap.Error(err))
		}
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.ToLower(strings.TrimRight(origin, "/"))] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return set[strings.ToLower(origin)]
	}
}

package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/ptyd/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ptyd/internal/shared/id"
	"github.com/GriffinCanCode/ptyd/internal/terminal"
)

// Sessions is the part of the session registry the API exposes.
// *terminal.Registry satisfies it.
type Sessions interface {
	Count() int
	List() []terminal.SessionInfo
	Close(sessionID id.SessionID) error
}

// Handlers contains all HTTP handlers
type Handlers struct {
	sessions Sessions
	metrics  *monitoring.Metrics
	version  string
}

// NewHandlers creates a new handlers instance
func NewHandlers(sessions Sessions, metrics *monitoring.Metrics, version string) *Handlers {
	return &Handlers{
		sessions: sessions,
		metrics:  metrics,
		version:  version,
	}
}

// Root handles the root endpoint
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "ptyd",
		"version": h.version,
	})
}

// Health reports liveness and the number of open sessions.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": h.sessions.Count(),
	})
}

// ListSessions lists open sessions.
func (h *Handlers) ListSessions(c *gin.Context) {
	sessions := h.sessions.List()
	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// DeleteSession terminates a session and its shell.
func (h *Handlers) DeleteSession(c *gin.Context) {
	sessionID := id.SessionID(c.Param("id"))
	if !sessionID.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	if err := h.sessions.Close(sessionID); err != nil {
		if errors.Is(err, terminal.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"session_id": sessionID,
	})
}

// Stats returns the session counters as JSON.
func (h *Handlers) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics.Snapshot())
}

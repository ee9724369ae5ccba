package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/ptyd/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ptyd/internal/shared/id"
	"github.com/GriffinCanCode/ptyd/internal/terminal"
)

type fakeSessions struct {
	infos  []terminal.SessionInfo
	closed []id.SessionID
	err    error
}

func (f *fakeSessions) Count() int                   { return len(f.infos) }
func (f *fakeSessions) List() []terminal.SessionInfo { return f.infos }

func (f *fakeSessions) Close(sessionID id.SessionID) error {
	if f.err != nil {
		return f.err
	}
	for _, info := range f.infos {
		if info.ID == sessionID.String() {
			f.closed = append(f.closed, sessionID)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", terminal.ErrSessionNotFound, sessionID)
}

func setupRouter(sessions Sessions, metrics *monitoring.Metrics) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewHandlers(sessions, metrics, "1.2.3")
	router.GET("/", h.Root)
	router.GET("/health", h.Health)
	router.GET("/sessions", h.ListSessions)
	router.DELETE("/sessions/:id", h.DeleteSession)
	router.GET("/metrics/json", h.Stats)
	return router
}

func request(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestRoot(t *testing.T) {
	w := request(setupRouter(&fakeSessions{}, nil), "GET", "/")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"online","service":"ptyd","version":"1.2.3"}`, w.Body.String())
}

func TestHealth(t *testing.T) {
	sessions := &fakeSessions{infos: []terminal.SessionInfo{{ID: id.NewSessionID().String()}, {ID: id.NewSessionID().String()}}}
	w := request(setupRouter(sessions, nil), "GET", "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","sessions":2}`, w.Body.String())
}

func TestListSessions(t *testing.T) {
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	sessionID := id.NewSessionID().String()
	sessions := &fakeSessions{infos: []terminal.SessionInfo{{
		ID:         sessionID,
		State:      terminal.StateActive,
		PID:        4242,
		Cols:       120,
		Rows:       40,
		RemoteAddr: "127.0.0.1:5000",
		StartedAt:  started,
	}}}

	w := request(setupRouter(sessions, nil), "GET", "/sessions")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Sessions []map[string]any `json:"sessions"`
		Count    int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	require.Len(t, body.Sessions, 1)
	assert.Equal(t, sessionID, body.Sessions[0]["id"])
	assert.Equal(t, "active", body.Sessions[0]["state"])
	assert.Equal(t, float64(4242), body.Sessions[0]["pid"])
	assert.Equal(t, float64(120), body.Sessions[0]["cols"])
}

func TestDeleteSession(t *testing.T) {
	existing := id.NewSessionID()
	tests := []struct {
		name       string
		path       string
		sessions   *fakeSessions
		wantStatus int
	}{
		{
			name:       "closes session",
			path:       "/sessions/" + existing.String(),
			sessions:   &fakeSessions{infos: []terminal.SessionInfo{{ID: existing.String()}}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "unknown session",
			path:       "/sessions/" + id.NewSessionID().String(),
			sessions:   &fakeSessions{},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "malformed id",
			path:       "/sessions/not-an-id",
			sessions:   &fakeSessions{},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bare ulid without prefix",
			path:       "/sessions/" + strings.TrimPrefix(existing.String(), id.SessionPrefix+"_"),
			sessions:   &fakeSessions{infos: []terminal.SessionInfo{{ID: existing.String()}}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "registry error",
			path:       "/sessions/" + existing.String(),
			sessions:   &fakeSessions{err: fmt.Errorf("boom")},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := request(setupRouter(tt.sessions, nil), "DELETE", tt.path)
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, []id.SessionID{existing}, tt.sessions.closed)
				assert.JSONEq(t, fmt.Sprintf(`{"success":true,"session_id":%q}`, existing), w.Body.String())
			}
		})
	}
}

func TestStats(t *testing.T) {
	metrics := monitoring.NewMetrics()
	metrics.SessionOpened()
	metrics.SpawnFailed()

	w := request(setupRouter(&fakeSessions{}, metrics), "GET", "/metrics/json")
	require.Equal(t, http.StatusOK, w.Code)

	var snap monitoring.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, int64(1), snap.ActiveSessions)
	assert.Equal(t, int64(1), snap.SpawnFailures)
}

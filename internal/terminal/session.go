package terminal

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ptyd/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ptyd/internal/protocol"
	"github.com/GriffinCanCode/ptyd/internal/shared/id"
)

// closeWriteTimeout bounds how long a close frame may take to send.
const closeWriteTimeout = time.Second

// Conn is the client side of a session. *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// State is a session lifecycle state.
type State int32

const (
	StateConnecting State = iota
	StateActive
	StateClosing
	StateClosed
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// closeTrigger records which side ended the session.
type closeTrigger int

const (
	triggerConnection closeTrigger = iota
	triggerProcessExit
	triggerShutdown
)

// Session binds one connection to one shell. Neither outlives the other.
type Session struct {
	ID         id.SessionID
	RemoteAddr string
	StartedAt  time.Time

	conn    Conn
	shell   Shell
	logger  *zap.Logger
	metrics *monitoring.Metrics

	state     atomic.Int32
	closeOnce sync.Once
	closed    chan struct{}

	mu   sync.Mutex
	cols int
	rows int
}

// SessionInfo is the public representation of a session
type SessionInfo struct {
	ID         string    `json:"id"`
	State      State     `json:"state"`
	PID        int       `json:"pid"`
	Cols       int       `json:"cols"`
	Rows       int       `json:"rows"`
	RemoteAddr string    `json:"remote_addr"`
	StartedAt  time.Time `json:"started_at"`
}

// NewSession pairs conn with shell. The session starts in Connecting and
// does nothing until Run is called.
func NewSession(sessionID id.SessionID, conn Conn, shell Shell, logger *zap.Logger, metrics *monitoring.Metrics) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		ID:        sessionID,
		StartedAt: time.Now(),
		conn:      conn,
		shell:     shell,
		logger:    logger.With(zap.String("session_id", sessionID.String()), zap.Int("pid", shell.PID())),
		metrics:   metrics,
		closed:    make(chan struct{}),
		cols:      protocol.DefaultCols,
		rows:      protocol.DefaultRows,
	}
	s.state.Store(int32(StateConnecting))
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Closed is closed once the session reaches StateClosed.
func (s *Session) Closed() <-chan struct{} {
	return s.closed
}

// Dimensions returns the last negotiated terminal size.
func (s *Session) Dimensions() (cols, rows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cols, s.rows
}

// Info returns a snapshot of the session.
func (s *Session) Info() SessionInfo {
	cols, rows := s.Dimensions()
	return SessionInfo{
		ID:         s.ID.String(),
		State:      s.State(),
		PID:        s.shell.PID(),
		Cols:       cols,
		Rows:       rows,
		RemoteAddr: s.RemoteAddr,
		StartedAt:  s.StartedAt,
	}
}

// Run relays data in both directions until the connection closes, the shell
// exits or ctx is cancelled, then tears both down. It returns once the
// session is Closed.
func (s *Session) Run(ctx context.Context) {
	if !s.state.CompareAndSwap(int32(StateConnecting), int32(StateActive)) {
		return
	}
	s.metrics.SessionOpened()
	s.logger.Info("Session active", zap.String("remote_addr", s.RemoteAddr))

	s.shell.OnData(s.relayOutput)

	go func() {
		select {
		case <-s.shell.Done():
			s.close(triggerProcessExit)
		case <-ctx.Done():
			s.close(triggerShutdown)
		case <-s.closed:
		}
	}()

	s.relayInput()
	s.close(triggerConnection)
	<-s.closed
}

// Close tears the session down as if the client had disconnected. It is
// safe to call any number of times from any goroutine.
func (s *Session) Close() {
	s.close(triggerShutdown)
}

func (s *Session) relayInput() {
	for {
		messageType, payload, err := s.conn.ReadMessage()
		if err != nil {
			if s.State() == StateActive && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("Connection read ended", zap.Error(err))
			}
			return
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		s.handleFrame(payload)
	}
}

func (s *Session) handleFrame(payload []byte) {
	frame := protocol.Decode(payload)
	switch frame.Kind {
	case protocol.KindControl:
		s.metrics.RecordFrame(monitoring.DirectionInbound, monitoring.KindControl, len(payload))
		s.resize(frame.Resize.Cols, frame.Resize.Rows)
	default:
		s.metrics.RecordFrame(monitoring.DirectionInbound, monitoring.KindInput, len(payload))
		// Write failures are logged by the shell; a dead shell closes the
		// session through its exit path.
		_ = s.shell.Write(frame.Input)
	}
}

func (s *Session) resize(cols, rows int) {
	cols, rows = protocol.Clamp(cols, rows)
	if err := s.shell.Resize(cols, rows); err != nil {
		return
	}
	s.mu.Lock()
	s.cols, s.rows = cols, rows
	s.mu.Unlock()
}

func (s *Session) relayOutput(data []byte) {
	if s.State() != StateActive {
		return
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		s.logger.Debug("Connection write failed", zap.Error(err))
		s.close(triggerConnection)
		return
	}
	s.metrics.RecordFrame(monitoring.DirectionOutbound, monitoring.KindOutput, len(data))
}

// close runs the Active → Closing → Closed transition exactly once. The
// shell is always signalled before the session counts as Closed; exit is
// confirmed asynchronously through the shell's Done channel.
func (s *Session) close(trigger closeTrigger) {
	s.closeOnce.Do(func() {
		previous := State(s.state.Swap(int32(StateClosing)))

		switch trigger {
		case triggerProcessExit:
			status := s.shell.ExitStatus()
			s.logger.Info("Shell exited, closing connection", zap.Stringer("status", status))
			s.sendClose(websocket.CloseNormalClosure, fmt.Sprintf("process exited with %s", status))
		case triggerShutdown:
			s.logger.Info("Session terminated by broker")
			s.sendClose(websocket.CloseGoingAway, "session terminated")
		default:
			s.logger.Info("Connection closed, terminating shell")
		}

		if err := s.shell.Kill(); err != nil {
			s.logger.Warn("Failed to signal shell", zap.Error(err))
		}
		if err := s.conn.Close(); err != nil {
			s.logger.Debug("Failed to close connection", zap.Error(err))
		}

		s.state.Store(int32(StateClosed))
		if previous == StateActive {
			s.metrics.SessionClosed(time.Since(s.StartedAt))
		}
		close(s.closed)
	})
}

func (s *Session) sendClose(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, truncateReason(reason))
	if err := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout)); err != nil {
		s.logger.Debug("Failed to send close frame", zap.Error(err))
	}
}

// truncateReason keeps a close reason within the 123 bytes a control frame
// allows.
func truncateReason(reason string) string {
	const maxReason = 123
	if len(reason) <= maxReason {
		return reason
	}
	return reason[:maxReason]
}

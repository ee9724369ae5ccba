package terminal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ptyd/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ptyd/internal/shared/id"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrCapacity        = errors.New("session limit reached")
	ErrRegistryClosed  = errors.New("registry is shut down")
)

// Spawner starts the shell for a new session.
type Spawner func(opts SpawnOptions) (Shell, error)

// DefaultSpawner starts a real PTY-backed shell.
func DefaultSpawner(opts SpawnOptions) (Shell, error) {
	return Spawn(opts)
}

// RegistryConfig configures every session the registry creates.
type RegistryConfig struct {
	// Spawn is the template for each session's shell. An empty Dir means the
	// invoking user's home directory.
	Spawn SpawnOptions
	// MaxSessions caps concurrent sessions. Zero means unbounded.
	MaxSessions int
}

// Registry accepts connections and owns the set of live sessions, keyed by
// session id. The map is only mutated when a session is opened or closed.
type Registry struct {
	cfg     RegistryConfig
	spawn   Spawner
	logger  *zap.Logger
	metrics *monitoring.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	sessions map[id.SessionID]*Session
	pending  int
	shutdown bool
}

// NewRegistry creates a registry that spawns real shells.
func NewRegistry(cfg RegistryConfig, logger *zap.Logger, metrics *monitoring.Metrics) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Spawn.Dir == "" {
		cfg.Spawn.Dir = HomeDir()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		cfg:      cfg,
		spawn:    DefaultSpawner,
		logger:   logger,
		metrics:  metrics,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[id.SessionID]*Session),
	}
}

// WithSpawner replaces the function used to start shells.
func (r *Registry) WithSpawner(spawn Spawner) *Registry {
	r.spawn = spawn
	return r
}

// Open creates a session for conn and runs it. It blocks until the session
// is Closed and always leaves conn closed. A spawn failure affects only this
// connection.
func (r *Registry) Open(conn Conn, remoteAddr string) error {
	if err := r.reserve(); err != nil {
		code := websocket.CloseTryAgainLater
		if errors.Is(err, ErrRegistryClosed) {
			code = websocket.CloseGoingAway
		} else {
			r.metrics.SessionRejected()
			r.logger.Warn("Refusing connection", zap.String("remote_addr", remoteAddr), zap.Int("max_sessions", r.cfg.MaxSessions))
		}
		refuse(conn, code, err.Error())
		return err
	}
	defer r.wg.Done()

	sessionID := id.NewSessionID()
	opts := r.cfg.Spawn
	opts.Logger = r.logger.With(zap.String("session_id", sessionID.String()))

	shell, err := r.spawn(opts)
	if err != nil {
		r.release()
		r.metrics.SpawnFailed()
		r.logger.Error("Failed to spawn shell",
			zap.String("session_id", sessionID.String()),
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
		refuse(conn, websocket.CloseInternalServerErr, "spawn failed")
		return fmt.Errorf("open session: %w", err)
	}

	session := NewSession(sessionID, conn, shell, r.logger, r.metrics)
	session.RemoteAddr = remoteAddr

	r.mu.Lock()
	r.pending--
	r.sessions[sessionID] = session
	r.mu.Unlock()

	session.Run(r.ctx)

	r.mu.Lock()
	delete(r.sessions, sessionID)
	remaining := len(r.sessions)
	r.mu.Unlock()

	r.logger.Info("Session closed",
		zap.String("session_id", sessionID.String()),
		zap.Duration("lifetime", time.Since(session.StartedAt)),
		zap.Int("remaining", remaining),
	)
	return nil
}

func (r *Registry) reserve() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.shutdown {
		return ErrRegistryClosed
	}
	if r.cfg.MaxSessions > 0 && len(r.sessions)+r.pending >= r.cfg.MaxSessions {
		return ErrCapacity
	}
	r.pending++
	r.wg.Add(1)
	return nil
}

func (r *Registry) release() {
	r.mu.Lock()
	r.pending--
	r.mu.Unlock()
}

func refuse(conn Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, truncateReason(reason))
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout))
	_ = conn.Close()
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Get returns a live session by id.
func (r *Registry) Get(sessionID id.SessionID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	return s, ok
}

// List returns a snapshot of live sessions, oldest first.
func (r *Registry) List() []SessionInfo {
	r.mu.Lock()
	infos := make([]SessionInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		infos = append(infos, s.Info())
	}
	r.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Close terminates one session.
func (r *Registry) Close(sessionID id.SessionID) error {
	s, ok := r.Get(sessionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	s.Close()
	return nil
}

// Shutdown refuses new connections, closes every session and waits for them
// to be removed or for ctx to expire.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.shutdown = true
	r.mu.Unlock()

	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown with %d sessions open: %w", r.Count(), ctx.Err())
	}
}

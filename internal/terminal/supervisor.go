package terminal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/creack/pty"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/GriffinCanCode/ptyd/internal/protocol"
)

const (
	// DefaultKillGrace is how long a shell has to exit after SIGHUP before
	// it is sent SIGKILL.
	DefaultKillGrace = 500 * time.Millisecond

	// drainTimeout bounds how long exit waits for buffered PTY output.
	drainTimeout = 250 * time.Millisecond

	readBufferSize = 32 * 1024
)

// ErrProcessExited is returned by operations on a shell that has exited.
var ErrProcessExited = errors.New("process exited")

// SpawnOptions configures a new shell.
type SpawnOptions struct {
	Shell     string
	Args      []string
	Dir       string
	Env       map[string]string
	TermType  string
	ColorTerm string
	Locale    string
	Cols      int
	Rows      int
	KillGrace time.Duration
	Logger    *zap.Logger
}

// SpawnError reports a shell that could not be started.
type SpawnError struct {
	Shell string
	Dir   string
	Err   error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn %s in %s: %v", e.Shell, e.Dir, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// ExitStatus describes how a shell ended. Code is -1 when the process was
// terminated by a signal.
type ExitStatus struct {
	Code   int            `json:"code"`
	Signal syscall.Signal `json:"signal,omitempty"`
}

// Signaled reports whether the process was terminated by a signal.
func (s ExitStatus) Signaled() bool { return s.Signal != 0 }

func (s ExitStatus) String() string {
	if s.Signaled() {
		return fmt.Sprintf("signal %s", unix.SignalName(s.Signal))
	}
	return fmt.Sprintf("code %d", s.Code)
}

// Shell is the process side of a session.
type Shell interface {
	Write(data []byte) error
	Resize(cols, rows int) error
	Kill() error
	OnData(fn func([]byte))
	Done() <-chan struct{}
	ExitStatus() ExitStatus
	PID() int
}

// Process is a shell running on a pseudo-terminal. The shell leads its own
// session and process group with the PTY as its controlling terminal.
type Process struct {
	cmd       *exec.Cmd
	ptmx      *os.File
	logger    *zap.Logger
	killGrace time.Duration
	startedAt time.Time

	done     chan struct{}
	exit     ExitStatus
	pumpDone chan struct{}

	// ptyMu orders window-size ioctls against closing the master. Reads and
	// writes go through *os.File, which already synchronizes with Close.
	ptyMu     sync.RWMutex
	ptyClosed bool

	dataOnce  sync.Once
	pumping   atomic.Bool
	killOnce  sync.Once
	closeOnce sync.Once

	// terminations counts termination requests actually dispatched.
	terminations atomic.Int32
}

var _ Shell = (*Process)(nil)

// Spawn starts a shell on a new PTY.
func Spawn(opts SpawnOptions) (*Process, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	shell := opts.Shell
	if shell == "" {
		shell = os.Getenv("SHELL")
		if shell == "" {
			shell = "/bin/bash"
		}
	}

	dir := opts.Dir
	if dir == "" {
		dir = HomeDir()
	}

	cols, rows := opts.Cols, opts.Rows
	if cols <= 0 {
		cols = protocol.DefaultCols
	}
	if rows <= 0 {
		rows = protocol.DefaultRows
	}
	cols, rows = protocol.Clamp(cols, rows)

	grace := opts.KillGrace
	if grace <= 0 {
		grace = DefaultKillGrace
	}

	cmd := exec.Command(shell, opts.Args...)
	cmd.Dir = dir
	cmd.Env = BuildEnv(os.Environ(), EnvOptions{
		TermType:  opts.TermType,
		ColorTerm: opts.ColorTerm,
		Locale:    opts.Locale,
		Extra:     opts.Env,
	})

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Cols: uint16(cols),
		Rows: uint16(rows),
	})
	if err != nil {
		return nil, &SpawnError{Shell: shell, Dir: dir, Err: err}
	}

	p := &Process{
		cmd:       cmd,
		ptmx:      ptmx,
		logger:    logger.With(zap.Int("pid", cmd.Process.Pid)),
		killGrace: grace,
		startedAt: time.Now(),
		done:      make(chan struct{}),
		pumpDone:  make(chan struct{}),
	}

	go p.wait()

	p.logger.Debug("Shell started",
		zap.String("shell", shell),
		zap.String("dir", dir),
		zap.Int("cols", cols),
		zap.Int("rows", rows),
	)
	return p, nil
}

// PID returns the shell's process ID.
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Done is closed once the shell has been reaped and its output drained.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// ExitStatus returns the exit status. It is only meaningful after Done is
// closed.
func (p *Process) ExitStatus() ExitStatus {
	select {
	case <-p.done:
		return p.exit
	default:
		return ExitStatus{Code: -1}
	}
}

// Wait blocks until the shell has exited or ctx is done.
func (p *Process) Wait(ctx context.Context) (ExitStatus, error) {
	select {
	case <-p.done:
		return p.exit, nil
	case <-ctx.Done():
		return ExitStatus{Code: -1}, ctx.Err()
	}
}

// OnExit calls fn asynchronously once the shell has exited.
func (p *Process) OnExit(fn func(ExitStatus)) {
	go func() {
		<-p.done
		fn(p.exit)
	}()
}

// OnData starts the output pump. fn is called sequentially with each chunk
// read from the PTY, in the order it was produced, and must not retain the
// slice. Only the first call has any effect.
func (p *Process) OnData(fn func([]byte)) {
	p.dataOnce.Do(func() {
		p.pumping.Store(true)
		go p.pump(fn)
	})
}

func (p *Process) pump(fn func([]byte)) {
	defer close(p.pumpDone)

	buf := make([]byte, readBufferSize)
	for {
		n, err := p.ptmx.Read(buf)
		if n > 0 {
			fn(buf[:n])
		}
		if err != nil {
			// EIO once every slave descriptor is closed; os.ErrClosed after Close.
			if !errors.Is(err, syscall.EIO) && !errors.Is(err, os.ErrClosed) {
				p.logger.Debug("PTY read ended", zap.Error(err))
			}
			return
		}
	}
}

// Write sends input to the shell. Failures are logged and returned; they are
// never fatal because the shell may already be gone.
func (p *Process) Write(data []byte) error {
	if p.exited() {
		return ErrProcessExited
	}
	if _, err := p.ptmx.Write(data); err != nil {
		p.logger.Warn("Failed to write to shell", zap.Int("bytes", len(data)), zap.Error(err))
		return fmt.Errorf("write to shell: %w", err)
	}
	return nil
}

// Resize changes the PTY window size. Dimensions below the floor are raised
// to it first.
func (p *Process) Resize(cols, rows int) error {
	cols, rows = protocol.Clamp(cols, rows)

	p.ptyMu.RLock()
	defer p.ptyMu.RUnlock()
	if p.ptyClosed {
		return ErrProcessExited
	}
	err := pty.Setsize(p.ptmx, &pty.Winsize{
		Cols: uint16(cols),
		Rows: uint16(rows),
	})
	if err != nil {
		p.logger.Warn("Failed to resize shell", zap.Int("cols", cols), zap.Int("rows", rows), zap.Error(err))
		return fmt.Errorf("resize shell: %w", err)
	}
	return nil
}

// Size reports the current PTY window size.
func (p *Process) Size() (cols, rows int, err error) {
	p.ptyMu.RLock()
	defer p.ptyMu.RUnlock()
	if p.ptyClosed {
		return 0, 0, ErrProcessExited
	}
	ws, err := pty.GetsizeFull(p.ptmx)
	if err != nil {
		return 0, 0, err
	}
	return int(ws.Cols), int(ws.Rows), nil
}

// Kill asks the shell to terminate by sending SIGHUP to its process group,
// the same signal a hung-up terminal delivers. It returns without waiting;
// if the shell is still running after the grace period it is sent SIGKILL.
// Kill is idempotent and a no-op once the shell has exited.
func (p *Process) Kill() error {
	var err error
	p.killOnce.Do(func() {
		if p.exited() {
			return
		}
		p.terminations.Add(1)
		err = p.signalGroup(unix.SIGHUP)
		go p.escalate()
	})
	return err
}

func (p *Process) escalate() {
	timer := time.NewTimer(p.killGrace)
	defer timer.Stop()

	select {
	case <-p.done:
		return
	case <-timer.C:
	}

	p.logger.Warn("Shell still running after SIGHUP, sending SIGKILL", zap.Duration("grace", p.killGrace))
	if err := p.signalGroup(unix.SIGKILL); err != nil {
		p.logger.Error("Failed to kill shell", zap.Error(err))
	}
}

func (p *Process) signalGroup(sig unix.Signal) error {
	if p.exited() {
		return nil
	}
	pid := p.PID()
	err := unix.Kill(-pid, sig)
	if errors.Is(err, unix.ESRCH) {
		// Group already gone; make sure the leader is too.
		err = unix.Kill(pid, sig)
	}
	if err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("signal %s to pid %d: %w", unix.SignalName(sig), pid, err)
	}
	return nil
}

func (p *Process) wait() {
	err := p.cmd.Wait()
	p.exit = exitStatusFrom(err)

	// Let the pump deliver whatever the shell wrote before exiting.
	if p.pumping.Load() {
		select {
		case <-p.pumpDone:
		case <-time.After(drainTimeout):
		}
	}
	p.closePTY()

	p.logger.Debug("Shell exited",
		zap.Stringer("status", p.exit),
		zap.Duration("lifetime", time.Since(p.startedAt)),
	)
	close(p.done)
}

func (p *Process) closePTY() {
	p.closeOnce.Do(func() {
		p.ptyMu.Lock()
		defer p.ptyMu.Unlock()
		p.ptyClosed = true
		if err := p.ptmx.Close(); err != nil {
			p.logger.Debug("Failed to close PTY", zap.Error(err))
		}
	})
}

func (p *Process) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func exitStatusFrom(err error) ExitStatus {
	if err == nil {
		return ExitStatus{Code: 0}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		status := ExitStatus{Code: exitErr.ExitCode()}
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			status.Signal = ws.Signal()
		}
		return status
	}
	return ExitStatus{Code: -1}
}

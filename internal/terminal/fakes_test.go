package terminal

import (
	"encoding/binary"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

type message struct {
	kind int
	data []byte
}

type closeFrame struct {
	code   int
	reason string
}

// fakeConn is an in-memory Conn. Inbound frames are queued with send; the
// read side fails once Close is called.
type fakeConn struct {
	inbound chan message
	closed  chan struct{}
	once    sync.Once

	mu     sync.Mutex
	writes []message
	frames []closeFrame
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan message, 16),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) send(kind int, data string) {
	c.inbound <- message{kind: kind, data: []byte(data)}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case m := <-c.inbound:
		return m.kind, m.data, nil
	case <-c.closed:
		return 0, nil, &websocket.CloseError{Code: websocket.CloseAbnormalClosure}
	}
}

func (c *fakeConn) WriteMessage(kind int, data []byte) error {
	select {
	case <-c.closed:
		return websocket.ErrCloseSent
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, message{kind: kind, data: append([]byte(nil), data...)})
	return nil
}

func (c *fakeConn) WriteControl(kind int, data []byte, _ time.Time) error {
	if kind != websocket.CloseMessage {
		return nil
	}
	frame := closeFrame{code: websocket.CloseNoStatusReceived}
	if len(data) >= 2 {
		frame.code = int(binary.BigEndian.Uint16(data[:2]))
		frame.reason = string(data[2:])
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, frame)
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) written() []message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]message(nil), c.writes...)
}

func (c *fakeConn) closeFrames() []closeFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]closeFrame(nil), c.frames...)
}

// fakeShell records what a session does to its shell. Kill behaves like a
// shell that dies immediately on SIGHUP.
type fakeShell struct {
	pid  int
	done chan struct{}
	once sync.Once

	kills atomic.Int32

	mu      sync.Mutex
	status  ExitStatus
	input   []byte
	resizes [][2]int
	onData  func([]byte)
	failRes bool
}

func newFakeShell(pid int) *fakeShell {
	return &fakeShell{pid: pid, done: make(chan struct{}), status: ExitStatus{Code: -1}}
}

func (s *fakeShell) Write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input = append(s.input, data...)
	return nil
}

func (s *fakeShell) Resize(cols, rows int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRes {
		return errors.New("resize failed")
	}
	s.resizes = append(s.resizes, [2]int{cols, rows})
	return nil
}

func (s *fakeShell) Kill() error {
	select {
	case <-s.done:
		return nil
	default:
	}
	s.kills.Add(1)
	s.exit(ExitStatus{Code: -1, Signal: 1})
	return nil
}

func (s *fakeShell) OnData(fn func([]byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onData = fn
}

func (s *fakeShell) Done() <-chan struct{} { return s.done }

func (s *fakeShell) ExitStatus() ExitStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *fakeShell) PID() int { return s.pid }

// emit delivers output as if the shell had written it.
func (s *fakeShell) emit(data string) {
	s.mu.Lock()
	fn := s.onData
	s.mu.Unlock()
	if fn != nil {
		fn([]byte(data))
	}
}

func (s *fakeShell) exit(status ExitStatus) {
	s.once.Do(func() {
		s.mu.Lock()
		s.status = status
		s.mu.Unlock()
		close(s.done)
	})
}

func (s *fakeShell) received() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.input)
}

func (s *fakeShell) resized() [][2]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][2]int(nil), s.resizes...)
}

func (s *fakeShell) hasDataHandler() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onData != nil
}

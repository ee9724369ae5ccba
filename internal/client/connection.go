package client

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ptyd/internal/protocol"
)

// ClosedNotice is written to a surface when its connection drops without
// being disposed.
const ClosedNotice = "\r\n[connection closed]\r\n"

const closeTimeout = time.Second

// ErrDisposed is returned when sending on a disposed connection.
var ErrDisposed = errors.New("connection disposed")

// Connection relays one tab's traffic. Output is written to the surface in
// arrival order; title sequences in it are reported through onTitle.
type Connection struct {
	conn    WireConn
	surface Surface
	logger  *zap.Logger
	titles  TitleTracker

	onTitle func(string)
	onDrop  func()

	// disposed guards the single close request for this connection. It is
	// only set with surfaceMu held, so no output reaches the surface once
	// Dispose has returned.
	disposed      atomic.Bool
	closeRequests atomic.Int32
	done          chan struct{}

	surfaceMu sync.Mutex
	writeMu   sync.Mutex
}

// NewConnection starts relaying output from conn to surface. onTitle and
// onDrop may be nil; onDrop is called once if the connection ends without
// being disposed.
func NewConnection(conn WireConn, surface Surface, logger *zap.Logger, onTitle func(string), onDrop func()) *Connection {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Connection{
		conn:    conn,
		surface: surface,
		logger:  logger,
		onTitle: onTitle,
		onDrop:  onDrop,
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Done is closed when the read side of the connection has ended.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Disposed reports whether Dispose has been called.
func (c *Connection) Disposed() bool {
	return c.disposed.Load()
}

// Send writes keystrokes to the remote shell.
func (c *Connection) Send(data []byte) error {
	return c.write(websocket.BinaryMessage, data)
}

// Resize asks the remote shell to change its window size. Dimensions are
// clamped like the server does.
func (c *Connection) Resize(cols, rows int) error {
	msg, err := protocol.EncodeResize(cols, rows)
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, msg)
}

func (c *Connection) write(kind int, data []byte) error {
	if c.disposed.Load() {
		return ErrDisposed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(kind, data)
}

// Dispose closes the connection on purpose. Only the first call sends a
// close request; later calls and any output still in flight are ignored.
func (c *Connection) Dispose() {
	c.surfaceMu.Lock()
	first := c.disposed.CompareAndSwap(false, true)
	c.surfaceMu.Unlock()
	if !first {
		return
	}
	c.closeRequests.Add(1)

	c.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "tab closed")
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeTimeout)); err != nil {
		c.logger.Debug("Failed to send close frame", zap.Error(err))
	}
	c.writeMu.Unlock()

	if err := c.conn.Close(); err != nil {
		c.logger.Debug("Failed to close connection", zap.Error(err))
	}
}

func (c *Connection) readLoop() {
	defer close(c.done)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.ended(err)
			return
		}
		c.render(data)
	}
}

func (c *Connection) render(data []byte) {
	c.surfaceMu.Lock()
	defer c.surfaceMu.Unlock()
	if c.disposed.Load() {
		return
	}
	if title, ok := c.titles.Feed(data); ok && c.onTitle != nil {
		c.onTitle(title)
	}
	if _, err := c.surface.Write(data); err != nil {
		c.logger.Debug("Failed to render output", zap.Error(err))
	}
}

func (c *Connection) ended(err error) {
	c.surfaceMu.Lock()
	if c.disposed.Load() {
		c.surfaceMu.Unlock()
		return
	}
	c.logger.Info("Connection closed unexpectedly", zap.Error(err))
	_, _ = c.surface.Write([]byte(ClosedNotice))
	c.surfaceMu.Unlock()

	if c.onDrop != nil {
		c.onDrop()
	}
}

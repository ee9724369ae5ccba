package client

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/GriffinCanCode/ptyd/internal/protocol"
)

type sent struct {
	kind int
	data []byte
}

// fakeWire is an in-memory WireConn. The test pushes server output with
// deliver and ends the connection with drop.
type fakeWire struct {
	inbound chan []byte
	closed  chan struct{}
	once    sync.Once

	controls atomic.Int32
	closes   atomic.Int32

	mu   sync.Mutex
	sent []sent
}

func newFakeWire() *fakeWire {
	return &fakeWire{inbound: make(chan []byte, 16), closed: make(chan struct{})}
}

func (w *fakeWire) deliver(data string) {
	w.inbound <- []byte(data)
}

// drop ends the connection as if the server went away.
func (w *fakeWire) drop() {
	w.once.Do(func() { close(w.closed) })
}

func (w *fakeWire) ReadMessage() (int, []byte, error) {
	select {
	case data := <-w.inbound:
		return websocket.BinaryMessage, data, nil
	case <-w.closed:
		return 0, nil, errors.New("connection reset")
	}
}

func (w *fakeWire) WriteMessage(kind int, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sent = append(w.sent, sent{kind: kind, data: append([]byte(nil), data...)})
	return nil
}

func (w *fakeWire) WriteControl(kind int, _ []byte, _ time.Time) error {
	if kind == websocket.CloseMessage {
		w.controls.Add(1)
	}
	return nil
}

func (w *fakeWire) Close() error {
	w.closes.Add(1)
	w.drop()
	return nil
}

func (w *fakeWire) messages() []sent {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]sent(nil), w.sent...)
}

// resizes decodes every resize control message sent so far.
func (w *fakeWire) resizes() []protocol.Resize {
	var out []protocol.Resize
	for _, m := range w.messages() {
		if frame := protocol.Decode(m.data); frame.Kind == protocol.KindControl {
			out = append(out, frame.Resize)
		}
	}
	return out
}

// fakeDialer hands out a fresh fakeWire per dial.
type fakeDialer struct {
	mu    sync.Mutex
	wires []*fakeWire
	err   error
}

func (d *fakeDialer) Dial(context.Context) (WireConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	w := newFakeWire()
	d.wires = append(d.wires, w)
	return w, nil
}

func (d *fakeDialer) wire(i int) *fakeWire {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.wires[i]
}

// fakeSurface records output and reports a fixed size.
type fakeSurface struct {
	cols, rows int

	mu       sync.Mutex
	buf      bytes.Buffer
	title    string
	attached bool
	attaches int
}

func (s *fakeSurface) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *fakeSurface) Fit() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cols, s.rows
}

func (s *fakeSurface) SetTitle(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.title = title
}

func (s *fakeSurface) Attach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attached = true
	s.attaches++
}

func (s *fakeSurface) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attached = false
}

func (s *fakeSurface) setSize(cols, rows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cols, s.rows = cols, rows
}

func (s *fakeSurface) output() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func (s *fakeSurface) isAttached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached
}

func (s *fakeSurface) currentTitle() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

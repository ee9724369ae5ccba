package client

import (
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/x/ansi"
	"golang.org/x/term"

	"github.com/GriffinCanCode/ptyd/internal/protocol"
)

// Surface renders the output of one tab.
type Surface interface {
	Write(p []byte) (int, error)
	// Fit measures the space available to the tab in character cells.
	Fit() (cols, rows int)
	SetTitle(title string)
}

// Attacher is implemented by surfaces that share one screen and are shown
// only while their tab is active.
type Attacher interface {
	Attach()
	Detach()
}

// clearScreen homes the cursor and erases the display.
const clearScreen = "\x1b[H\x1b[2J"

// ScreenSurface renders a tab onto the local terminal. All tabs of a manager
// share the terminal; only the attached one writes to it. Every surface keeps
// a bounded backlog that is replayed when it is attached again.
type ScreenSurface struct {
	out     io.Writer
	size    func() (cols, rows int, err error)
	backlog *Backlog

	mu       sync.Mutex
	attached bool
	title    string
}

var (
	_ Surface  = (*ScreenSurface)(nil)
	_ Attacher = (*ScreenSurface)(nil)
)

// NewScreenSurface creates a detached surface drawing to out.
func NewScreenSurface(out *os.File, backlogSize int) *ScreenSurface {
	fd := int(out.Fd())
	return newScreenSurface(out, func() (int, int, error) { return term.GetSize(fd) }, backlogSize)
}

func newScreenSurface(out io.Writer, size func() (int, int, error), backlogSize int) *ScreenSurface {
	return &ScreenSurface{
		out:     out,
		size:    size,
		backlog: NewBacklog(backlogSize),
	}
}

// Write records p and draws it if the surface is attached.
func (s *ScreenSurface) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.backlog.Write(p)
	if !s.attached {
		return len(p), nil
	}
	return s.out.Write(p)
}

// Fit returns the local terminal size, or 80x24 when it cannot be read.
func (s *ScreenSurface) Fit() (cols, rows int) {
	cols, rows, err := s.size()
	if err != nil || cols <= 0 || rows <= 0 {
		return protocol.DefaultCols, protocol.DefaultRows
	}
	return protocol.Clamp(cols, rows)
}

// SetTitle records the title and shows it in the local terminal when
// attached.
func (s *ScreenSurface) SetTitle(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.title = title
	if s.attached {
		_, _ = io.WriteString(s.out, ansi.SetWindowTitle(title))
	}
}

// Title returns the last title set.
func (s *ScreenSurface) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

// Attach clears the screen and repaints it from the backlog.
func (s *ScreenSurface) Attach() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attached {
		return
	}
	s.attached = true
	_, _ = io.WriteString(s.out, clearScreen)
	_, _ = s.out.Write(s.backlog.Bytes())
	if s.title != "" {
		_, _ = io.WriteString(s.out, ansi.SetWindowTitle(s.title))
	}
}

// Detach stops drawing; output keeps accumulating in the backlog.
func (s *ScreenSurface) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attached = false
}

// Attached reports whether the surface is drawing to the screen.
func (s *ScreenSurface) Attached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached
}

package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrTabNotFound is returned for an unknown tab id.
var ErrTabNotFound = errors.New("tab not found")

// SurfaceFactory creates the surface for a new tab.
type SurfaceFactory func(tabID string) Surface

// Tab is one terminal in the manager. It owns its connection and through it
// one remote session.
type Tab struct {
	ID        string
	CreatedAt time.Time

	surface Surface
	conn    *Connection

	mu    sync.Mutex
	title string
}

// Title returns the title last announced by the shell.
func (t *Tab) Title() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.title
}

// Surface returns the tab's render surface.
func (t *Tab) Surface() Surface {
	return t.surface
}

// Connection returns the tab's connection.
func (t *Tab) Connection() *Connection {
	return t.conn
}

// Send types data into the tab's shell.
func (t *Tab) Send(data []byte) error {
	return t.conn.Send(data)
}

func (t *Tab) setTitle(title string) {
	t.mu.Lock()
	t.title = title
	t.mu.Unlock()
	t.surface.SetTitle(title)
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithDisconnectHandler registers fn to be called when a tab's connection
// ends without the tab being closed.
func WithDisconnectHandler(fn func(*Tab)) Option {
	return func(m *Manager) { m.onDisconnect = fn }
}

// Manager keeps an ordered set of tabs with at most one active.
type Manager struct {
	dialer       Dialer
	newSurface   SurfaceFactory
	logger       *zap.Logger
	onDisconnect func(*Tab)

	mu     sync.Mutex
	tabs   []*Tab // creation order
	active *Tab
}

// NewManager creates an empty manager.
func NewManager(dialer Dialer, newSurface SurfaceFactory, opts ...Option) *Manager {
	m := &Manager{
		dialer:     dialer,
		newSurface: newSurface,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// New opens a tab with its own connection and makes it active.
func (m *Manager) New(ctx context.Context) (*Tab, error) {
	conn, err := m.dialer.Dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("open tab: %w", err)
	}

	tabID := uuid.NewString()
	tab := &Tab{
		ID:        tabID,
		CreatedAt: time.Now(),
		surface:   m.newSurface(tabID),
	}
	logger := m.logger.With(zap.String("tab_id", tabID))
	tab.conn = NewConnection(conn, tab.surface, logger, tab.setTitle, func() {
		if m.onDisconnect != nil {
			m.onDisconnect(tab)
		}
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tabs = append(m.tabs, tab)
	m.activate(tab)

	logger.Debug("Tab opened", zap.Int("tabs", len(m.tabs)))
	return tab, nil
}

// Close disposes a tab. If it was active, the most recently created
// remaining tab becomes active; closing the last tab leaves none.
func (m *Manager) Close(tabID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.index(tabID)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrTabNotFound, tabID)
	}
	tab := m.tabs[idx]
	m.tabs = append(m.tabs[:idx], m.tabs[idx+1:]...)
	tab.conn.Dispose()

	if m.active == tab {
		m.active = nil
		if attacher, ok := tab.surface.(Attacher); ok {
			attacher.Detach()
		}
		if n := len(m.tabs); n > 0 {
			m.activate(m.tabs[n-1])
		}
	}
	return nil
}

// Activate makes a tab active, refits it and sends its size.
func (m *Manager) Activate(tabID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.index(tabID)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrTabNotFound, tabID)
	}
	m.activate(m.tabs[idx])
	return nil
}

// ContainerResized refits the visible tab and sends its new size.
func (m *Manager) ContainerResized() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		m.fit(m.active)
	}
}

// Active returns the active tab, or nil when there are no tabs.
func (m *Manager) Active() *Tab {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Get returns a tab by id.
func (m *Manager) Get(tabID string) (*Tab, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if idx := m.index(tabID); idx >= 0 {
		return m.tabs[idx], true
	}
	return nil, false
}

// Tabs returns the tabs in creation order.
func (m *Manager) Tabs() []*Tab {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Tab(nil), m.tabs...)
}

// Len returns the number of open tabs.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tabs)
}

// Shutdown disposes every tab.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, tab := range m.tabs {
		tab.conn.Dispose()
	}
	m.tabs = nil
	m.active = nil
}

func (m *Manager) index(tabID string) int {
	for i, tab := range m.tabs {
		if tab.ID == tabID {
			return i
		}
	}
	return -1
}

// activate must be called with m.mu held.
func (m *Manager) activate(tab *Tab) {
	if m.active != tab {
		if m.active != nil {
			if attacher, ok := m.active.surface.(Attacher); ok {
				attacher.Detach()
			}
		}
		m.active = tab
		if attacher, ok := tab.surface.(Attacher); ok {
			attacher.Attach()
		}
	}
	m.fit(tab)
}

func (m *Manager) fit(tab *Tab) {
	cols, rows := tab.surface.Fit()
	if err := tab.conn.Resize(cols, rows); err != nil {
		m.logger.Debug("Failed to send resize", zap.String("tab_id", tab.ID), zap.Error(err))
	}
}

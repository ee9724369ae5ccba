package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/GriffinCanCode/ptyd/internal/protocol"
)

type harness struct {
	dialer   *fakeDialer
	manager  *Manager
	surfaces map[string]*fakeSurface
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{dialer: &fakeDialer{}, surfaces: map[string]*fakeSurface{}}
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	h.manager = NewManager(h.dialer, func(tabID string) Surface {
		s := &fakeSurface{cols: 120, rows: 40}
		h.surfaces[tabID] = s
		return s
	}, opts...)
	t.Cleanup(h.manager.Shutdown)
	return h
}

func (h *harness) open(t *testing.T) *Tab {
	t.Helper()
	tab, err := h.manager.New(context.Background())
	require.NoError(t, err)
	return tab
}

func TestManagerNewActivates(t *testing.T) {
	h := newHarness(t)

	first := h.open(t)
	assert.Equal(t, first, h.manager.Active())
	assert.True(t, h.surfaces[first.ID].isAttached())
	assert.Equal(t, []protocol.Resize{{Cols: 120, Rows: 40}}, h.dialer.wire(0).resizes())

	second := h.open(t)
	assert.Equal(t, second, h.manager.Active())
	assert.False(t, h.surfaces[first.ID].isAttached())
	assert.True(t, h.surfaces[second.ID].isAttached())
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, []*Tab{first, second}, h.manager.Tabs())
}

func TestManagerNewDialFailure(t *testing.T) {
	h := newHarness(t)
	h.dialer.err = errors.New("connection refused")

	tab, err := h.manager.New(context.Background())
	require.Error(t, err)
	assert.Nil(t, tab)
	assert.Zero(t, h.manager.Len())
	assert.Nil(t, h.manager.Active())
}

func TestManagerCloseActivatesMostRecent(t *testing.T) {
	h := newHarness(t)
	a := h.open(t)
	b := h.open(t)
	c := h.open(t)

	require.NoError(t, h.manager.Activate(a.ID))
	require.NoError(t, h.manager.Close(a.ID))
	assert.Equal(t, c, h.manager.Active(), "most recently created remaining tab")

	require.NoError(t, h.manager.Close(c.ID))
	assert.Equal(t, b, h.manager.Active())

	require.NoError(t, h.manager.Close(b.ID))
	assert.Nil(t, h.manager.Active())
	assert.Zero(t, h.manager.Len())
}

func TestManagerCloseInactiveKeepsActive(t *testing.T) {
	h := newHarness(t)
	a := h.open(t)
	b := h.open(t)

	require.NoError(t, h.manager.Close(a.ID))
	assert.Equal(t, b, h.manager.Active())
	assert.True(t, a.Connection().Disposed())
	assert.False(t, b.Connection().Disposed())
}

func TestManagerCloseDisposesOnce(t *testing.T) {
	h := newHarness(t)
	tab := h.open(t)

	require.NoError(t, h.manager.Close(tab.ID))
	assert.ErrorIs(t, h.manager.Close(tab.ID), ErrTabNotFound)
	tab.Connection().Dispose()

	wire := h.dialer.wire(0)
	assert.Equal(t, int32(1), wire.controls.Load())
	assert.Empty(t, h.surfaces[tab.ID].output(), "closing a tab prints nothing")
}

func TestManagerActivateSendsSize(t *testing.T) {
	h := newHarness(t)
	a := h.open(t)
	h.open(t)

	h.surfaces[a.ID].setSize(2, 2)
	require.NoError(t, h.manager.Activate(a.ID))

	resizes := h.dialer.wire(0).resizes()
	require.Len(t, resizes, 2)
	assert.Equal(t, protocol.Resize{Cols: protocol.FloorCols, Rows: protocol.FloorRows}, resizes[1])

	assert.ErrorIs(t, h.manager.Activate("missing"), ErrTabNotFound)
}

func TestManagerContainerResized(t *testing.T) {
	h := newHarness(t)
	a := h.open(t)
	b := h.open(t)

	h.surfaces[a.ID].setSize(90, 30)
	h.surfaces[b.ID].setSize(100, 50)
	h.manager.ContainerResized()

	assert.Len(t, h.dialer.wire(0).resizes(), 1, "hidden tab is not refit")
	resizes := h.dialer.wire(1).resizes()
	require.Len(t, resizes, 2)
	assert.Equal(t, protocol.Resize{Cols: 100, Rows: 50}, resizes[1])
}

func TestManagerContainerResizedWithoutTabs(t *testing.T) {
	h := newHarness(t)
	assert.NotPanics(t, h.manager.ContainerResized)
}

func TestManagerTitleFromOutput(t *testing.T) {
	h := newHarness(t)
	tab := h.open(t)

	h.dialer.wire(0).deliver("\x1b]2;make test\x07")

	assert.Eventually(t, func() bool { return tab.Title() == "make test" }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "make test", h.surfaces[tab.ID].currentTitle())
}

func TestManagerDisconnectHandler(t *testing.T) {
	dropped := make(chan *Tab, 1)
	h := newHarness(t, WithDisconnectHandler(func(tab *Tab) { dropped <- tab }))
	tab := h.open(t)

	h.dialer.wire(0).drop()

	select {
	case got := <-dropped:
		assert.Equal(t, tab, got)
	case <-time.After(time.Second):
		t.Fatal("disconnect not reported")
	}
	assert.Contains(t, h.surfaces[tab.ID].output(), "[connection closed]")
	assert.Equal(t, 1, h.manager.Len(), "a dropped tab stays until closed")
}

func TestManagerShutdown(t *testing.T) {
	h := newHarness(t)
	a := h.open(t)
	b := h.open(t)

	h.manager.Shutdown()

	assert.Zero(t, h.manager.Len())
	assert.Nil(t, h.manager.Active())
	assert.True(t, a.Connection().Disposed())
	assert.True(t, b.Connection().Disposed())
	_, ok := h.manager.Get(a.ID)
	assert.False(t, ok)
}

func TestTabSend(t *testing.T) {
	h := newHarness(t)
	tab := h.open(t)

	require.NoError(t, tab.Send([]byte("pwd\n")))
	msgs := h.dialer.wire(0).messages()
	assert.Equal(t, "pwd\n", string(msgs[len(msgs)-1].data))
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/GriffinCanCode/ptyd/internal/client"
	"github.com/GriffinCanCode/ptyd/internal/infrastructure/logging"
)

const defaultURL = "ws://127.0.0.1:3001/terminal"

func newAttachCmd() *cobra.Command {
	var (
		url     string
		logFile string
	)
	cmd := &cobra.Command{
		Use:   "attach",
		Short: "Open a tabbed terminal on a running broker",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewNop()
			if logFile != "" {
				logCfg := logging.DevelopmentConfig()
				logCfg.OutputPaths = []string{logFile}
				l, err := logging.New(logCfg)
				if err != nil {
					return err
				}
				logger = l
			}
			defer logger.Sync()

			return attach(cmd.Context(), url, logger.Component("client"))
		},
	}

	cmd.Flags().StringVarP(&url, "url", "u", defaultURL, "broker WebSocket endpoint")
	cmd.Flags().StringVar(&logFile, "log-file", "", "write client logs to this file")
	return cmd
}

func attach(ctx context.Context, url string, logger *zap.Logger) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return errors.New("attach needs a terminal on stdin")
	}

	dropped := make(chan string, 1)
	manager := client.NewManager(
		&client.WSDialer{URL: url},
		func(string) client.Surface {
			return client.NewScreenSurface(os.Stdout, client.DefaultBacklogSize)
		},
		client.WithLogger(logger),
		client.WithDisconnectHandler(func(tab *client.Tab) {
			select {
			case dropped <- tab.ID:
			default:
			}
		}),
	)
	defer manager.Shutdown()

	if _, err := manager.New(ctx); err != nil {
		return err
	}

	state, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("failed to enter raw mode: %w", err)
	}
	defer func() {
		_ = term.Restore(fd, state)
		fmt.Fprintln(os.Stdout)
	}()

	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	defer signal.Stop(winch)

	keys := make(chan []byte)
	readErr := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)
	go readInput(os.Stdin, keys, readErr, stop)

	var decoder keyDecoder
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-winch:
			manager.ContainerResized()
		case tabID := <-dropped:
			logger.Debug("Tab disconnected", zap.String("tab_id", tabID))
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		case chunk := <-keys:
			for _, ev := range decoder.Decode(chunk) {
				if done := dispatch(ctx, manager, ev, logger); done {
					return nil
				}
			}
			if manager.Len() == 0 {
				return nil
			}
		}
	}
}

// readInput forwards chunks read from r until r fails or stop is closed. A
// Read already in progress is abandoned once stop is closed.
func readInput(r io.Reader, keys chan<- []byte, errs chan<- error, stop <-chan struct{}) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case keys <- chunk:
			case <-stop:
				return
			}
		}
		if err != nil {
			select {
			case errs <- err:
			case <-stop:
			}
			return
		}
	}
}

// dispatch applies one key event and reports whether the client should exit.
func dispatch(ctx context.Context, manager *client.Manager, ev keyEvent, logger *zap.Logger) bool {
	active := manager.Active()

	switch ev.cmd {
	case cmdInput:
		if active == nil {
			return false
		}
		// A tab whose session ended keeps its screen until the next key.
		if isEnded(active) {
			_ = manager.Close(active.ID)
			return false
		}
		if err := active.Send(ev.input); err != nil {
			logger.Debug("Failed to send input", zap.String("tab_id", active.ID), zap.Error(err))
		}
	case cmdNewTab:
		if _, err := manager.New(ctx); err != nil {
			logger.Warn("Failed to open tab", zap.Error(err))
		}
	case cmdNextTab, cmdPrevTab:
		delta := 1
		if ev.cmd == cmdPrevTab {
			delta = -1
		}
		tabs := manager.Tabs()
		if idx := cycle(indexOf(tabs, active), delta, len(tabs)); idx >= 0 {
			_ = manager.Activate(tabs[idx].ID)
		}
	case cmdSelectTab:
		if tabs := manager.Tabs(); ev.index < len(tabs) {
			_ = manager.Activate(tabs[ev.index].ID)
		}
	case cmdCloseTab:
		if active != nil {
			_ = manager.Close(active.ID)
		}
	case cmdDetach:
		return true
	}
	return false
}

func isEnded(tab *client.Tab) bool {
	select {
	case <-tab.Connection().Done():
		return true
	default:
		return false
	}
}

func indexOf(tabs []*client.Tab, tab *client.Tab) int {
	for i, t := range tabs {
		if t == tab {
			return i
		}
	}
	return 0
}

package terminal

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/GriffinCanCode/ptyd/internal/infrastructure/monitoring"
)

// ErrPortExhausted is returned when no port in the search range is free.
var ErrPortExhausted = errors.New("no free port in search range")

// Listen binds host:port. When the port is taken it tries the next one up,
// at most attempts times, and logs every fallback. Any error other than
// EADDRINUSE fails immediately. Port 0 binds an ephemeral port.
func Listen(host string, port, attempts int, logger *zap.Logger, metrics *monitoring.Metrics) (net.Listener, int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if attempts < 1 {
		attempts = 1
	}

	requested := port
	for i := 0; i < attempts; i++ {
		candidate := requested + i
		if candidate > 65535 {
			break
		}

		ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(candidate)))
		if err == nil {
			bound := ln.Addr().(*net.TCPAddr).Port
			if candidate != requested {
				logger.Warn("Requested port was in use, listening on a different port",
					zap.Int("requested_port", requested),
					zap.Int("port", bound),
				)
			}
			return ln, bound, nil
		}

		if requested == 0 || !errors.Is(err, unix.EADDRINUSE) {
			return nil, 0, fmt.Errorf("listen on %s:%d: %w", host, candidate, err)
		}

		metrics.PortFallback()
		logger.Warn("Port in use, trying next",
			zap.Int("port", candidate),
			zap.Int("next", candidate+1),
		)
	}

	return nil, 0, fmt.Errorf("%w: %d-%d on %s", ErrPortExhausted, requested, requested+attempts-1, host)
}

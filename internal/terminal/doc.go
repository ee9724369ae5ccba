// Package terminal brokers interactive shell sessions over WebSocket.
//
// Each accepted connection gets exactly one shell running on a
// pseudo-terminal, and the two live and die together: when the connection
// closes the shell is signalled, and when the shell exits the connection is
// closed.
//
// Features:
//   - PTY-backed shells with a sane TERM, COLORTERM and UTF-8 locale
//   - Resize control messages with a 10×10 floor
//   - Idempotent teardown with SIGHUP, escalating to SIGKILL after a grace period
//   - Process exit exposed as a future (Done/Wait) as well as a callback
//   - Per-session isolation: failures never cross session boundaries
//   - Optional concurrency cap
//   - Listener that walks upward to the next free port
//
// Architecture:
//   - Process: owns the shell and its PTY master
//   - Session: binds one Conn to one Shell and runs the relay
//   - Registry: accepts connections, spawns shells, tracks live sessions
//
// Session states:
//
//	Connecting → Active → Closing → Closed
//
// Example Usage:
//
//	reg := terminal.NewRegistry(terminal.RegistryConfig{
//	    Spawn: terminal.SpawnOptions{Shell: "/bin/bash"},
//	}, logger, metrics)
//	// in a WebSocket handler:
//	err := reg.Open(conn, r.RemoteAddr)
package terminal

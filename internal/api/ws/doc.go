// Package ws upgrades HTTP requests to terminal sessions.
//
// Each accepted connection gets its own shell through the session registry;
// the handler blocks until that session is closed.
//
// Frames (Client → Server):
//   - {"type":"resize","cols":N,"rows":N}: resize the PTY
//   - anything else: keystrokes, written to the shell verbatim
//
// Frames (Server → Client):
//   - binary: raw PTY output
//   - close 1000: the shell exited
//   - close 1011: the shell could not be started
//   - close 1013: the session limit is reached
//
// Example Usage:
//
//	handler := ws.NewHandler(registry, ws.Config{AllowedOrigins: origins}, logger)
//	router.GET("/terminal", handler.HandleConnection)
package ws

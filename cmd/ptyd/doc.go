// Command ptyd runs the terminal broker and a tabbed terminal client for it.
//
// Usage:
//
//	ptyd serve [--config file] [--host addr] [--port n] [--shell path]
//	ptyd attach [--url ws://127.0.0.1:3001/terminal]
//	ptyd version
//
// Inside attach, Ctrl-] is the prefix key:
//
//	Ctrl-] c     new tab
//	Ctrl-] n/p   next/previous tab
//	Ctrl-] 1-9   select tab
//	Ctrl-] x     close tab
//	Ctrl-] d     detach (close every tab and exit)
//	Ctrl-] Ctrl-] send a literal Ctrl-]
package main

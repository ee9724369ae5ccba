package client

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// maxPendingOSC bounds how much of an unterminated OSC sequence is carried
// over to the next chunk.
const maxPendingOSC = 4096

// TitleTracker finds window-title sequences (OSC 0 and OSC 2) in terminal
// output. A sequence split across chunks is recognised once it completes.
type TitleTracker struct {
	pending string
	title   string
}

// Title returns the last title seen.
func (t *TitleTracker) Title() string {
	return t.title
}

// Feed scans one chunk of output. It reports the newest title the chunk
// completed, if any.
func (t *TitleTracker) Feed(chunk []byte) (string, bool) {
	input := t.pending + string(chunk)
	t.pending = ""

	var (
		found   string
		changed bool
	)
	remaining := input
	for len(remaining) > 0 {
		// Only an escape can start an OSC; skip plain text.
		next := strings.IndexByte(remaining, ansi.ESC)
		if next < 0 {
			break
		}
		remaining = remaining[next:]
		if remaining == "\x1b" {
			t.pending = remaining
			break
		}

		seq, _, n, _ := ansi.DecodeSequence(remaining, 0, nil)
		if n <= 0 {
			break
		}

		if ansi.HasOscPrefix(seq) {
			if !oscTerminated(seq) {
				if n >= len(remaining) && len(remaining) <= maxPendingOSC {
					t.pending = remaining
				}
				break
			}
			if title, ok := parseTitle(seq); ok {
				found, changed = title, true
			}
		}
		remaining = remaining[n:]
	}

	if changed {
		t.title = found
	}
	return found, changed
}

func oscTerminated(seq string) bool {
	return strings.HasSuffix(seq, "\x07") || strings.HasSuffix(seq, "\x1b\\") || strings.HasSuffix(seq, "\x9c")
}

// parseTitle extracts the text of an OSC 0 (icon name and title) or OSC 2
// (title) sequence.
func parseTitle(seq string) (string, bool) {
	body := strings.TrimPrefix(seq, "\x1b]")
	for _, terminator := range []string{"\x07", "\x1b\\", "\x9c"} {
		body = strings.TrimSuffix(body, terminator)
	}

	cmd, text, ok := strings.Cut(body, ";")
	if !ok || (cmd != "0" && cmd != "2") {
		return "", false
	}
	return text, true
}

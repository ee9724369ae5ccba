package main

// prefixKey is Ctrl-], the key that introduces a tab command.
const prefixKey = 0x1d

type command int

const (
	cmdInput command = iota
	cmdNewTab
	cmdNextTab
	cmdPrevTab
	cmdSelectTab
	cmdCloseTab
	cmdDetach
)

// keyEvent is either keystrokes for the active tab or a tab command.
type keyEvent struct {
	cmd   command
	input []byte
	index int // cmdSelectTab only
}

// keyDecoder splits raw stdin into keystrokes and prefix commands. The
// prefix state carries across reads.
type keyDecoder struct {
	prefixed bool
}

func (d *keyDecoder) Decode(p []byte) []keyEvent {
	var (
		events []keyEvent
		input  []byte
	)
	flush := func() {
		if len(input) > 0 {
			events = append(events, keyEvent{cmd: cmdInput, input: input})
			input = nil
		}
	}

	for _, b := range p {
		if !d.prefixed {
			if b == prefixKey {
				d.prefixed = true
				continue
			}
			input = append(input, b)
			continue
		}

		d.prefixed = false
		switch {
		case b == prefixKey:
			input = append(input, prefixKey)
		case b == 'c':
			flush()
			events = append(events, keyEvent{cmd: cmdNewTab})
		case b == 'n':
			flush()
			events = append(events, keyEvent{cmd: cmdNextTab})
		case b == 'p':
			flush()
			events = append(events, keyEvent{cmd: cmdPrevTab})
		case b == 'x':
			flush()
			events = append(events, keyEvent{cmd: cmdCloseTab})
		case b == 'd':
			flush()
			events = append(events, keyEvent{cmd: cmdDetach})
		case b >= '1' && b <= '9':
			flush()
			events = append(events, keyEvent{cmd: cmdSelectTab, index: int(b - '1')})
		}
		// Unknown commands are swallowed.
	}
	flush()
	return events
}

// cycle returns the index delta steps away from current, wrapping around.
func cycle(current, delta, n int) int {
	if n == 0 {
		return -1
	}
	return ((current+delta)%n + n) % n
}

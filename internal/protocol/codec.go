package protocol

import (
	"bytes"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/bytedance/sonic"
)

// Terminal geometry limits. Dimensions below the floor are raised to it
// because a degenerate window size crashes some shells.
const (
	FloorCols   = 10
	FloorRows   = 10
	DefaultCols = 80
	DefaultRows = 24

	// MaxDimension is the largest value a PTY window size field can hold.
	MaxDimension = math.MaxUint16
)

// TypeResize is the "type" tag of a resize control message.
const TypeResize = "resize"

// Kind classifies an inbound frame.
type Kind int

const (
	KindInput Kind = iota
	KindControl
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindControl:
		return "control"
	default:
		return "unknown"
	}
}

// Resize is the only control message currently defined.
type Resize struct {
	Cols int
	Rows int
}

// Frame is a decoded inbound frame. Exactly one of Resize or Input is
// meaningful, selected by Kind.
type Frame struct {
	Kind   Kind
	Resize Resize
	Input  []byte
}

// wireMessage mirrors the JSON shape of a control frame. Pointers distinguish
// a missing field from a zero value.
type wireMessage struct {
	Type string   `json:"type"`
	Cols *float64 `json:"cols"`
	Rows *float64 `json:"rows"`
}

type resizeMessage struct {
	Type string `json:"type"`
	Cols int    `json:"cols"`
	Rows int    `json:"rows"`
}

// Decode classifies a single inbound frame. It never fails: anything that is
// not a well-formed resize message is raw input.
func Decode(frame []byte) Frame {
	if msg, ok := parseControl(frame); ok {
		cols, rows := clampFloat(*msg.Cols, FloorCols), clampFloat(*msg.Rows, FloorRows)
		return Frame{Kind: KindControl, Resize: Resize{Cols: cols, Rows: rows}}
	}
	return Frame{Kind: KindInput, Input: frame}
}

func parseControl(frame []byte) (wireMessage, bool) {
	var msg wireMessage

	// Only a JSON object can carry a control message; skip the parse for
	// ordinary keystrokes.
	trimmed := bytes.TrimLeft(frame, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return msg, false
	}
	if !utf8.Valid(frame) {
		return msg, false
	}
	if err := sonic.Unmarshal(frame, &msg); err != nil {
		return msg, false
	}
	if msg.Type != TypeResize || msg.Cols == nil || msg.Rows == nil {
		return msg, false
	}
	return msg, true
}

// EncodeResize builds a resize control frame with the dimensions clamped the
// same way the server clamps them.
func EncodeResize(cols, rows int) ([]byte, error) {
	cols, rows = Clamp(cols, rows)
	data, err := sonic.Marshal(resizeMessage{Type: TypeResize, Cols: cols, Rows: rows})
	if err != nil {
		return nil, fmt.Errorf("encode resize: %w", err)
	}
	return data, nil
}

// Clamp raises cols and rows to the floor and caps them at MaxDimension.
func Clamp(cols, rows int) (int, int) {
	return clampInt(cols, FloorCols), clampInt(rows, FloorRows)
}

func clampInt(v, floor int) int {
	if v < floor {
		return floor
	}
	if v > MaxDimension {
		return MaxDimension
	}
	return v
}

func clampFloat(v float64, floor int) int {
	if v > MaxDimension {
		return MaxDimension
	}
	if v < float64(floor) {
		return floor
	}
	return int(math.Floor(v))
}

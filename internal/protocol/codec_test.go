package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		frame    string
		wantKind Kind
		wantCols int
		wantRows int
	}{
		{
			name:     "resize",
			frame:    `{"type":"resize","cols":120,"rows":30}`,
			wantKind: KindControl,
			wantCols: 120,
			wantRows: 30,
		},
		{
			name:     "resize below floor is clamped",
			frame:    `{"type":"resize","cols":1,"rows":1}`,
			wantKind: KindControl,
			wantCols: FloorCols,
			wantRows: FloorRows,
		},
		{
			name:     "zero and negative dimensions",
			frame:    `{"type":"resize","cols":0,"rows":-4}`,
			wantKind: KindControl,
			wantCols: FloorCols,
			wantRows: FloorRows,
		},
		{
			name:     "fractional dimensions are truncated",
			frame:    `{"type":"resize","cols":100.9,"rows":40.2}`,
			wantKind: KindControl,
			wantCols: 100,
			wantRows: 40,
		},
		{
			name:     "oversized dimensions are capped",
			frame:    `{"type":"resize","cols":1e9,"rows":70000}`,
			wantKind: KindControl,
			wantCols: MaxDimension,
			wantRows: MaxDimension,
		},
		{
			name:     "leading whitespace and extra fields",
			frame:    "  {\"type\":\"resize\",\"cols\":90,\"rows\":25,\"source\":\"fit\"}",
			wantKind: KindControl,
			wantCols: 90,
			wantRows: 25,
		},
		{name: "plain keystrokes", frame: "ls -la\n", wantKind: KindInput},
		{name: "json number", frame: "42", wantKind: KindInput},
		{name: "json string", frame: `"resize"`, wantKind: KindInput},
		{name: "malformed json", frame: `{"type":"resize",`, wantKind: KindInput},
		{name: "unknown type", frame: `{"type":"ping"}`, wantKind: KindInput},
		{name: "missing rows", frame: `{"type":"resize","cols":80}`, wantKind: KindInput},
		{name: "string dimension", frame: `{"type":"resize","cols":"80","rows":24}`, wantKind: KindInput},
		{name: "null", frame: "null", wantKind: KindInput},
		{name: "empty frame", frame: "", wantKind: KindInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := Decode([]byte(tt.frame))

			assert.Equal(t, tt.wantKind, frame.Kind)
			if tt.wantKind == KindControl {
				assert.Equal(t, tt.wantCols, frame.Resize.Cols)
				assert.Equal(t, tt.wantRows, frame.Resize.Rows)
				assert.Nil(t, frame.Input)
			} else {
				assert.Equal(t, []byte(tt.frame), frame.Input)
			}
		})
	}
}

func TestDecodeInvalidUTF8IsInput(t *testing.T) {
	payload := []byte{'{', 0xff, 0xfe, '}'}

	frame := Decode(payload)

	assert.Equal(t, KindInput, frame.Kind)
	assert.Equal(t, payload, frame.Input)
}

func TestEncodeResize(t *testing.T) {
	data, err := EncodeResize(3, 200)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"resize","cols":10,"rows":200}`, string(data))

	frame := Decode(data)
	assert.Equal(t, KindControl, frame.Kind)
	assert.Equal(t, Resize{Cols: 10, Rows: 200}, frame.Resize)
}

func TestClamp(t *testing.T) {
	cols, rows := Clamp(0, 0)
	assert.Equal(t, FloorCols, cols)
	assert.Equal(t, FloorRows, rows)

	cols, rows = Clamp(DefaultCols, DefaultRows)
	assert.Equal(t, 80, cols)
	assert.Equal(t, 24, rows)

	cols, rows = Clamp(100000, 12)
	assert.Equal(t, MaxDimension, cols)
	assert.Equal(t, 12, rows)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "input", KindInput.String())
	assert.Equal(t, "control", KindControl.String())
	assert.Equal(t, "unknown", Kind(9).String())
}

// Package protocol implements the terminal wire codec shared by the broker
// and its clients.
//
// Inbound frames (client → server) are classified by attempting a JSON parse:
//
//	{"type":"resize","cols":120,"rows":30}   → control message
//	anything else                            → raw shell input, verbatim
//
// Outbound frames (server → client) are the literal bytes produced by the
// pseudo-terminal. The codec adds no framing and performs no transformation.
//
// A raw input frame that happens to be a resize-shaped JSON object is routed
// as a control message. Clients that need to type such text must split it
// across frames.
//
// Example Usage:
//
//	frame := protocol.Decode(payload)
//	switch frame.Kind {
//	case protocol.KindControl:
//	    proc.Resize(frame.Resize.Cols, frame.Resize.Rows)
//	case protocol.KindInput:
//	    proc.Write(frame.Input)
//	}
package protocol

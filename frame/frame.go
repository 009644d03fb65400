// Package frame implements the text-frame codec for the realtime messaging
// protocol. Every frame is a JSON object carrying a "type" discriminator:
//
//	{"type": "message", "channel": "C024BE91L", "text": "hello"}
//	{"type": "typing", "channel": "C024BE91L"}
//	{"type": "ping", "id": 1234}
//
// Inbound frames may be followed by a NUL terminator left over from the
// server's framing; Decode strips it before parsing.
package frame

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// MaxPayloadLen bounds outbound frames. The server rejects larger messages.
const MaxPayloadLen = 16 * 1024

// Frame types.
const (
	TypeHello   = "hello"
	TypeMessage = "message"
	TypeTyping  = "typing"
	TypePing    = "ping"
	TypePong    = "pong"
	TypeError   = "error"
	TypeGoodbye = "goodbye"
)

var (
	ErrEmpty           = errors.New("frame: empty payload")
	ErrPayloadTooLarge = errors.New("frame: payload exceeds maximum size")
	ErrNotObject       = errors.New("frame: payload is not a JSON object")
)

// Decode strips trailing NUL bytes from raw and parses the remainder as a
// JSON object. Numbers are kept as json.Number so that ids survive
// round trips unchanged.
func Decode(raw []byte) (map[string]any, error) {
	data := bytes.TrimRight(raw, "\x00")
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmpty
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("frame: decode: %w", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return obj, nil
}

// Type returns the "type" field of a decoded frame, or "" when it is
// missing or not a string.
func Type(obj map[string]any) string {
	t, _ := obj["type"].(string)
	return t
}

// Encode serialises an outbound frame.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("frame: encode: %w", err)
	}
	if len(data) > MaxPayloadLen {
		return nil, ErrPayloadTooLarge
	}
	return data, nil
}

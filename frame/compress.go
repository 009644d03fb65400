package frame

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/flate"
)

const compressionThreshold = 1024 // only compress payloads > 1KB

// deflateTail is the empty stored block a sync flush leaves at the end of
// every permessage-deflate message (RFC 7692 section 7.2.1). Senders strip
// it and receivers put it back.
var deflateTail = []byte{0x00, 0x00, 0xff, 0xff}

// finalBlock is an empty final stored block. Appending it after the tail lets
// the decompressor reach a clean io.EOF.
var finalBlock = []byte{0x01, 0x00, 0x00, 0xff, 0xff}

// Deflate compresses a message body for permessage-deflate if it exceeds the
// threshold. Returns (compressed data, true) if compression helped, or
// (original, false).
func Deflate(payload []byte) ([]byte, bool) {
	if len(payload) <= compressionThreshold {
		return payload, false
	}

	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestSpeed)
	if err != nil {
		return payload, false
	}
	if _, err := w.Write(payload); err != nil {
		return payload, false
	}
	if err := w.Flush(); err != nil {
		return payload, false
	}

	compressed := bytes.TrimSuffix(buf.Bytes(), deflateTail)

	// Only use compressed if it's actually smaller
	if len(compressed) >= len(payload) {
		return payload, false
	}
	return compressed, true
}

// Inflate decompresses a permessage-deflate message body.
func Inflate(data []byte) ([]byte, error) {
	r := flate.NewReader(io.MultiReader(
		bytes.NewReader(data),
		bytes.NewReader(deflateTail),
		bytes.NewReader(finalBlock),
	))
	defer r.Close()
	return io.ReadAll(r)
}

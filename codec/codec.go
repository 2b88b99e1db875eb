package codec

import (
	"errors"
	"fmt"
	"io"

	"github.com/spacemeshos/go-scale"
)

// ErrShortBuffer is returned when encoding into a fixed buffer runs out of room.
var ErrShortBuffer = errors.New("short buffer")

// Encodable is an interface that must be implemented by a struct to be encoded.
type Encodable = scale.Encodable

// Decodable is an interface that must be implemented by a struct to be decoded.
type Decodable = scale.Decodable

// EncodeTo encodes value to a writer stream.
func EncodeTo(w io.Writer, value Encodable) (int, error) {
	n, err := value.EncodeScale(scale.NewEncoder(w))
	if err != nil {
		return n, fmt.Errorf("encode: %w", err)
	}
	return n, nil
}

// DecodeFrom decodes a value using data from a reader stream.
func DecodeFrom(r io.Reader, value Decodable) (int, error) {
	n, err := value.DecodeScale(scale.NewDecoder(r))
	if err != nil {
		return n, fmt.Errorf("decode: %w", err)
	}
	return n, nil
}

// FixedWriter is an io.Writer over a caller-provided buffer that never grows.
// A write that doesn't fit fails with ErrShortBuffer and leaves the buffer
// contents past the already written part unspecified.
type FixedWriter struct {
	buf []byte
	n   int
}

// NewFixedWriter creates a FixedWriter over buf.
func NewFixedWriter(buf []byte) *FixedWriter {
	return &FixedWriter{buf: buf}
}

// Write implements io.Writer.
func (w *FixedWriter) Write(p []byte) (int, error) {
	if len(p) > len(w.buf)-w.n {
		return 0, ErrShortBuffer
	}
	copy(w.buf[w.n:], p)
	w.n += len(p)
	return len(p), nil
}

// Len returns the number of bytes written so far.
func (w *FixedWriter) Len() int {
	return w.n
}

// Available returns the number of bytes that can still be written.
func (w *FixedWriter) Available() int {
	return len(w.buf) - w.n
}

// Package stream provides a bus link over a byte stream.
package stream

import (
	"context"
	"io"
)

// Link implements bus.Link over an io.ReadWriter.
// The peer answers each written byte with exactly one byte, e.g. a
// USB-serial bridge clocking the bus.
type Link struct {
	io.ReadWriter
	// ResetFunc pulses the reset line. Nil means no reset line.
	ResetFunc func(context.Context) error
}

// New creates a Link with io.ReadWriter.
func New(s io.ReadWriter) *Link {
	return &Link{ReadWriter: s}
}

// Transfer implements bus.Link.
func (l *Link) Transfer(b byte) (byte, error) {
	buf := []byte{b}
	if _, err := l.Write(buf); err != nil {
		return 0, err
	}
	if _, err := io.ReadFull(l, buf); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// Reset implements bus.Link.
func (l *Link) Reset(ctx context.Context) error {
	if l.ResetFunc == nil {
		return nil
	}
	return l.ResetFunc(ctx)
}

// Close implements io.Closer.
func (l *Link) Close() error {
	if closer, ok := l.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

package bus

import "context"

// Link is the byte-synchronous full-duplex channel to the chain.
// Transfer blocks until one byte has been clocked out and one byte in;
// there is no timeout at this level.
type Link interface {
	// Transfer sends b and returns the byte received at the same time.
	Transfer(b byte) (byte, error)
	// Reset pulses the shared reset (slave select) line, which puts every
	// device back into address assignment mode.
	Reset(ctx context.Context) error
}

// LinkFunc adapts a transfer func to a Link with no reset line.
type LinkFunc func(byte) (byte, error)

// Transfer implements Link.
func (f LinkFunc) Transfer(b byte) (byte, error) {
	return f(b)
}

// Reset implements Link.
func (f LinkFunc) Reset(context.Context) error {
	return nil
}

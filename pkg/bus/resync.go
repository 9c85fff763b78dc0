package bus

// ResyncState is the state of reply frame recovery.
type ResyncState int

const (
	// Seeking discards bytes until the first sync byte shows up.
	Seeking ResyncState = iota
	// Accepting stores every byte until the reply frame is full.
	Accepting
)

// String implements fmt.Stringer.
func (s ResyncState) String() string {
	if s == Seeking {
		return "seeking"
	}
	return "accepting"
}

// Resync recovers a reply frame from the received byte stream.
type Resync struct {
	state ResyncState
	frame Frame
	recv  int
}

// Reset clears the reply buffer and starts seeking.
func (r *Resync) Reset() {
	r.state, r.frame, r.recv = Seeking, Frame{}, 0
}

// State gets the current state.
func (r *Resync) State() ResyncState {
	return r.state
}

// Received returns the number of bytes accepted into the reply.
func (r *Resync) Received() int {
	return r.recv
}

// Full indicates a whole frame has been accepted.
func (r *Resync) Full() bool {
	return r.recv >= PacketSize
}

// Frame returns the reply buffer.
func (r *Resync) Frame() Frame {
	return r.frame
}

// Feed consumes one received byte and reports whether it was accepted.
// Bytes fed after the frame is full are dropped.
func (r *Resync) Feed(b byte) bool {
	if r.Full() {
		return false
	}
	if r.state == Seeking {
		if b != SyncByte {
			return false
		}
		r.state = Accepting
	}
	r.frame[r.recv] = b
	r.recv++
	return true
}

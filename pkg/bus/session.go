package bus

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/dispense.go/pkg/framework"
)

// DebugLevel controls the protocol trace. It never changes protocol behavior.
type DebugLevel int

// Debug levels.
const (
	DebugOff DebugLevel = iota
	// DebugExchange traces exchange attempts and transmission errors.
	DebugExchange
	// DebugBytes traces every transferred byte pair as well.
	DebugBytes
)

// DefaultMaxDispensers is the default plausibility bound of enumeration.
// A larger count means enumeration was corrupted and the bus is reset again.
const DefaultMaxDispensers = 32

// Default bus timings.
const (
	DefaultSettleDelay = 100 * time.Millisecond
)

// Session is the master's view of the bus between two resets.
// It is not safe for concurrent use: exactly one caller drives the bus.
type Session struct {
	Link Link
	// Trace receives protocol trace lines. glog is used if nil.
	Trace io.Writer
	// MaxDispensers is the plausibility bound of enumeration.
	MaxDispensers int
	// MaxResetAttempts limits the bus reset loop, 0 retries forever.
	MaxResetAttempts int
	// SettleDelay is the wait after address assignment.
	SettleDelay time.Duration

	debug DebugLevel
	count int
}

// NewSession creates a Session on the link.
func NewSession(link Link) *Session {
	return &Session{
		Link:          link,
		MaxDispensers: DefaultMaxDispensers,
		SettleDelay:   DefaultSettleDelay,
	}
}

// Count returns the number of dispensers found by the last enumeration.
func (s *Session) Count() int {
	return s.count
}

// Debug gets the debug level.
func (s *Session) Debug() DebugLevel {
	return s.debug
}

// SetDebug sets the debug level.
func (s *Session) SetDebug(level DebugLevel) {
	s.debug = level
}

func (s *Session) tracef(level DebugLevel, format string, args ...interface{}) {
	if s.debug < level {
		return
	}
	if w := s.Trace; w != nil {
		fmt.Fprintf(w, format, args...)
		return
	}
	if msg := strings.TrimRight(fmt.Sprintf(format, args...), "\n"); msg != "" {
		glog.Info(msg)
	}
}

func (s *Session) transfer(b byte) (byte, error) {
	if s.Link == nil {
		return 0, ErrNoLink
	}
	rx, err := s.Link.Transfer(b)
	if err != nil {
		return 0, err
	}
	s.tracef(DebugBytes, "# %02x %02x\n", b, rx)
	return rx, nil
}

// Exchange clocks out the request and recovers the echoed reply.
// The reply is returned even if it fails verification, together with
// ErrTransmission.
func (s *Session) Exchange(req *Packet) (*Packet, error) {
	tx := req.Frame()
	var rs Resync
	rs.Reset()
	s.tracef(DebugExchange, "# transfer packet %d\n", req.Type)
	for i, b := range tx {
		rx, err := s.transfer(b)
		if err != nil {
			return nil, err
		}
		// the first byte is clocked in before any device answers.
		if i > 0 {
			rs.Feed(rx)
		}
	}
	for !rs.Full() {
		rx, err := s.transfer(0)
		if err != nil {
			return nil, err
		}
		rs.Feed(rx)
	}

	reply := rs.Frame()
	if !s.verify(req.Type, tx, reply) {
		s.tracef(DebugExchange, "# data transmission error!\n")
		return ParsePacket(reply), ErrTransmission
	}
	return ParsePacket(reply), nil
}

func (s *Session) verify(typ Type, tx, rx Frame) bool {
	s.tracef(DebugBytes, "verify:\n")
	mask := verifyMask(typ)
	for i := range tx {
		s.tracef(DebugBytes, "# %02x %02x\n", tx[i], rx[i])
		if mask[i] != 0 {
			continue
		}
		if tx[i] != rx[i] {
			s.tracef(DebugBytes, "\n")
			return false
		}
	}
	s.tracef(DebugBytes, "\n")
	return true
}

// AssignAddresses runs the address assignment handshake and records the
// number of dispensers in the chain. It must follow a bus reset.
func (s *Session) AssignAddresses() (int, error) {
	ch, err := s.transfer(1)
	for err == nil && (ch == 0 || ch == SyncByte) {
		ch, err = s.transfer(0)
	}
	if err != nil {
		return 0, err
	}
	s.count = int(ch) - 1
	glog.V(2).Infof("address assignment terminated by %#02x", ch)
	return s.count, nil
}

// Reset resets the bus and enumerates the dispensers. Enumeration is
// repeated with a fresh bus reset while the count exceeds MaxDispensers.
func (s *Session) Reset(ctx context.Context) (int, error) {
	if s.Link == nil {
		return 0, ErrNoLink
	}
	max := s.MaxDispensers
	if max <= 0 {
		max = DefaultMaxDispensers
	}
	for attempt := 1; ; attempt++ {
		s.count = 0
		if err := s.Link.Reset(ctx); err != nil {
			return 0, err
		}
		for i := 0; i < PacketSize; i++ {
			if _, err := s.transfer(0); err != nil {
				return 0, err
			}
		}
		n, err := s.AssignAddresses()
		if err != nil {
			return 0, err
		}
		if err = fx.Sleep(ctx, s.SettleDelay); err != nil {
			s.count = 0
			return 0, err
		}
		if n <= max {
			glog.Infof("bus reset: %d dispensers", n)
			return n, nil
		}
		s.count = 0
		glog.Warningf("bus reset: implausible dispenser count %d, attempt %d", n, attempt)
		if s.MaxResetAttempts > 0 && attempt >= s.MaxResetAttempts {
			return 0, &EnumerationError{Count: n, Max: max, Attempts: attempt}
		}
	}
}

// Probe clocks out the bytes and returns what was received in exchange.
// It is meant for inspecting a misbehaving chain.
func (s *Session) Probe(out []byte) ([]byte, error) {
	in := make([]byte, 0, len(out))
	for _, b := range out {
		rx, err := s.transfer(b)
		if err != nil {
			return in, err
		}
		in = append(in, rx)
	}
	return in, nil
}

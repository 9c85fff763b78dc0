// Package sim simulates a daisy chain of dispensers.
package sim

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/dispense.go/pkg/bus"
)

// Dispenser is one simulated device in the chain.
type Dispenser struct {
	// Addr is assigned during enumeration, 0 before.
	Addr byte
	On   bool
	// Status is reported on CHECK, non-zero means a fault.
	Status byte
	// State is reported on GETSTATE.
	State byte
	// Broken devices corrupt the echo of frames addressed to them.
	Broken bool

	// Dispensed records durations of DISPENSE requests.
	Dispensed []uint16
	// Received records the types of all frames addressed to the device.
	Received []bus.Type

	pending byte
}

// Chain is a simulated chain implementing bus.Link.
// Each device adds one byte of delay to the ring, and forwards what it
// receives, so the master sees its own frames echoed.
type Chain struct {
	Dispensers []*Dispenser
	// CorruptResets is the number of upcoming bus resets after which
	// enumeration terminates with garbage.
	CorruptResets int

	lock        sync.Mutex
	enumerating bool
	corrupt     bool
	pipe        []byte
	in          []byte
}

// New creates a Chain with n healthy dispensers.
func New(n int) *Chain {
	c := &Chain{enumerating: true}
	for i := 0; i < n; i++ {
		c.Dispensers = append(c.Dispensers, &Dispenser{})
	}
	c.pipe = make([]byte, n)
	return c
}

// Dispenser finds the device by the address assigned during enumeration.
func (c *Chain) Dispenser(addr byte) *Dispenser {
	if addr == 0 {
		return nil
	}
	for _, d := range c.Dispensers {
		if d.Addr == addr {
			return d
		}
	}
	return nil
}

// Reset implements bus.Link.
func (c *Chain) Reset(context.Context) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.enumerating, c.in = true, nil
	c.pipe = make([]byte, len(c.Dispensers))
	for _, d := range c.Dispensers {
		d.Addr, d.pending = 0, 0
	}
	if c.corrupt = c.CorruptResets > 0; c.corrupt {
		c.CorruptResets--
	}
	return nil
}

// Transfer implements bus.Link.
func (c *Chain) Transfer(b byte) (byte, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.enumerating {
		return c.enumerate(b), nil
	}
	return c.shift(c.forward(b)), nil
}

func (c *Chain) shift(b byte) byte {
	c.pipe = append(c.pipe, b)
	out := c.pipe[0]
	c.pipe = c.pipe[1:]
	return out
}

// enumerate passes the ordinal down the chain, each device takes the value
// it receives as address and forwards the value plus one.
func (c *Chain) enumerate(b byte) byte {
	v := b
	if v != 0 {
		for n, d := range c.Dispensers {
			d.Addr = b + byte(n)
		}
		v = b + byte(len(c.Dispensers))
		if c.corrupt {
			v = 0xfe
		}
	}
	out := c.shift(v)
	if out != 0 && out != bus.SyncByte {
		c.enumerating = false
		glog.V(3).Infof("sim: enumeration done, %d dispensers", len(c.Dispensers))
	}
	return out
}

// forward tracks frames sent by the master and returns the byte the last
// device forwards to the master in its place.
func (c *Chain) forward(b byte) byte {
	if len(c.in) == 0 && b != bus.SyncByte {
		return b
	}
	if len(c.in) == 1 && b != bus.SyncByte {
		c.in = nil
		return b
	}
	c.in = append(c.in, b)
	out := b
	if len(c.in) > 3 {
		if d := c.Dispenser(c.in[2]); d != nil {
			switch {
			case d.Broken && len(c.in) == 4:
				out = b ^ 0x80
			case bus.Type(c.in[3]) == bus.TypeResponse && len(c.in) == 5:
				out = d.pending
			case bus.Type(c.in[3]) == bus.TypeResponse && len(c.in) == 6:
				out = 0
			}
		}
	}
	if len(c.in) == bus.PacketSize {
		var f bus.Frame
		copy(f[:], c.in)
		c.in = nil
		c.handle(f)
	}
	return out
}

func (c *Chain) handle(f bus.Frame) {
	pkt := bus.ParsePacket(f)
	d := c.Dispenser(pkt.Addr)
	if d == nil {
		return
	}
	d.Received = append(d.Received, pkt.Type)
	switch pkt.Type {
	case bus.TypeStart:
		d.On = true
	case bus.TypeStop:
		d.On = false
	case bus.TypeDispense:
		d.Dispensed = append(d.Dispensed, binary.LittleEndian.Uint16(f[4:]))
	case bus.TypeCheck:
		d.pending = d.Status
	case bus.TypeGetState:
		d.pending = d.State
	}
}

// Inspect returns a copy of the device state, safe to use while the chain
// is driven from another goroutine.
func (c *Chain) Inspect(addr byte) (Dispenser, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	d := c.Dispenser(addr)
	if d == nil {
		return Dispenser{}, false
	}
	cp := *d
	cp.Dispensed = append([]uint16(nil), d.Dispensed...)
	cp.Received = append([]bus.Type(nil), d.Received...)
	return cp, true
}

package bus

import (
	"encoding/binary"
	"fmt"
)

// Type is the packet type code.
type Type byte

// Packet types understood by dispenser firmware.
const (
	TypeStart    Type = 1
	TypeStop     Type = 2
	TypeDispense Type = 3
	TypeCheck    Type = 4
	TypeGetState Type = 5
	TypeResponse Type = 6
)

var typeNames = map[Type]string{
	TypeStart:    "START",
	TypeStop:     "STOP",
	TypeDispense: "DISPENSE",
	TypeCheck:    "CHECK",
	TypeGetState: "GETSTATE",
	TypeResponse: "RESPONSE",
}

// String implements fmt.Stringer.
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TYPE(%d)", byte(t))
}

// Frame layout.
const (
	SyncByte byte = 0xff

	// PacketSize is the size of every frame on the wire, requests and replies.
	PacketSize = 6

	offsetAddr    = 2
	offsetType    = 3
	offsetPayload = 4
	payloadSize   = PacketSize - offsetPayload
)

// Filler bytes placed in the payload of requests carrying no data.
const (
	Filler0 byte = 0xa0
	Filler1 byte = 0xa1
)

// BroadcastAddr addresses the master/all devices.
const BroadcastAddr byte = 0

// Frame is the raw wire representation of a packet.
type Frame [PacketSize]byte

// Payload is the variant carried in the last two bytes of a packet.
// Which variant applies is determined by the packet type.
type Payload interface {
	encode() [payloadSize]byte
}

// Filler is the placeholder payload of requests without data.
type Filler struct{}

func (Filler) encode() [payloadSize]byte { return [payloadSize]byte{Filler0, Filler1} }

// Duration is the payload of a DISPENSE request, in device ticks.
type Duration uint16

func (d Duration) encode() (b [payloadSize]byte) {
	binary.LittleEndian.PutUint16(b[:], uint16(d))
	return
}

// Status is the payload returned by a device in a RESPONSE.
type Status struct {
	Code     byte
	Reserved byte
}

func (s Status) encode() [payloadSize]byte { return [payloadSize]byte{s.Code, s.Reserved} }

// Raw is a payload which doesn't match the variant the type implies.
type Raw [payloadSize]byte

func (r Raw) encode() [payloadSize]byte { return r }

// Packet is a decoded frame.
type Packet struct {
	Header  [2]byte
	Addr    byte
	Type    Type
	Payload Payload
}

// NewRequest builds a request carrying the filler payload.
func NewRequest(addr byte, typ Type) *Packet {
	return &Packet{
		Header:  [2]byte{SyncByte, SyncByte},
		Addr:    addr,
		Type:    typ,
		Payload: Filler{},
	}
}

// NewDispense builds a DISPENSE request carrying the duration.
func NewDispense(addr byte, dur uint16) *Packet {
	p := NewRequest(addr, TypeDispense)
	p.Payload = Duration(dur)
	return p
}

// Frame encodes the packet.
func (p *Packet) Frame() (f Frame) {
	f[0], f[1] = p.Header[0], p.Header[1]
	f[offsetAddr] = p.Addr
	f[offsetType] = byte(p.Type)
	payload := p.Payload
	if payload == nil {
		payload = Filler{}
	}
	pl := payload.encode()
	copy(f[offsetPayload:], pl[:])
	return
}

// Bytes returns encoded bytes for sending.
func (p *Packet) Bytes() []byte {
	f := p.Frame()
	return f[:]
}

// Status returns the status code when the payload is a Status.
func (p *Packet) Status() (byte, bool) {
	if s, ok := p.Payload.(Status); ok {
		return s.Code, true
	}
	return 0, false
}

// Duration returns the duration when the payload is a Duration.
func (p *Packet) Duration() (uint16, bool) {
	if d, ok := p.Payload.(Duration); ok {
		return uint16(d), true
	}
	return 0, false
}

// String implements fmt.Stringer.
func (p *Packet) String() string {
	return fmt.Sprintf("%s@%d % x", p.Type, p.Addr, p.Bytes())
}

// ParsePacket decodes a frame, selecting the payload variant from the type.
func ParsePacket(f Frame) *Packet {
	p := &Packet{
		Header: [2]byte{f[0], f[1]},
		Addr:   f[offsetAddr],
		Type:   Type(f[offsetType]),
	}
	var raw Raw
	copy(raw[:], f[offsetPayload:])
	switch p.Type {
	case TypeDispense:
		p.Payload = Duration(binary.LittleEndian.Uint16(raw[:]))
	case TypeResponse:
		p.Payload = Status{Code: raw[0], Reserved: raw[1]}
	default:
		if raw == (Raw{Filler0, Filler1}) {
			p.Payload = Filler{}
		} else {
			p.Payload = raw
		}
	}
	return p
}

// verifyMask lists the offsets excluded from echo verification for a type.
// A RESPONSE fetches what the device writes over the payload, so exactly
// the payload bytes are exempt.
func verifyMask(typ Type) (mask Frame) {
	if typ == TypeResponse {
		for i := offsetPayload; i < offsetPayload+payloadSize; i++ {
			mask[i] = 1
		}
	}
	return
}

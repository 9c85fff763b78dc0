package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacket(t *testing.T) {
	testCases := []struct {
		name   string
		packet *Packet
		expect []byte
	}{
		{"start", NewRequest(1, TypeStart), []byte{0xff, 0xff, 1, 1, 0xa0, 0xa1}},
		{"stop", NewRequest(2, TypeStop), []byte{0xff, 0xff, 2, 2, 0xa0, 0xa1}},
		{"check", NewRequest(3, TypeCheck), []byte{0xff, 0xff, 3, 4, 0xa0, 0xa1}},
		{"get state", NewRequest(4, TypeGetState), []byte{0xff, 0xff, 4, 5, 0xa0, 0xa1}},
		{"response", NewRequest(5, TypeResponse), []byte{0xff, 0xff, 5, 6, 0xa0, 0xa1}},
		{"dispense", NewDispense(6, 500), []byte{0xff, 0xff, 6, 3, 0xf4, 0x01}},
		{"broadcast", NewRequest(BroadcastAddr, TypeStop), []byte{0xff, 0xff, 0, 2, 0xa0, 0xa1}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expect, tc.packet.Bytes())
			require.Len(t, tc.expect, PacketSize)
		})
	}
}

func TestParsePacketPayloadVariant(t *testing.T) {
	pkt := ParsePacket(Frame{0xff, 0xff, 2, byte(TypeResponse), 5, 0})
	code, ok := pkt.Status()
	require.True(t, ok)
	assert.Equal(t, byte(5), code)
	_, ok = pkt.Duration()
	assert.False(t, ok)

	pkt = ParsePacket(Frame{0xff, 0xff, 2, byte(TypeDispense), 0xe8, 0x03})
	dur, ok := pkt.Duration()
	require.True(t, ok)
	assert.Equal(t, uint16(1000), dur)
	_, ok = pkt.Status()
	assert.False(t, ok)

	pkt = ParsePacket(Frame{0xff, 0xff, 2, byte(TypeStart), 0xa0, 0xa1})
	assert.Equal(t, Filler{}, pkt.Payload)

	pkt = ParsePacket(Frame{0xff, 0xff, 2, byte(TypeStart), 0x12, 0x34})
	assert.Equal(t, Raw{0x12, 0x34}, pkt.Payload)
	assert.Equal(t, []byte{0xff, 0xff, 2, 1, 0x12, 0x34}, pkt.Bytes())
}

func TestVerifyMaskCoversPayloadOnly(t *testing.T) {
	for typ := TypeStart; typ <= TypeResponse; typ++ {
		mask := verifyMask(typ)
		for i := 0; i < offsetPayload; i++ {
			assert.Zero(t, mask[i], "%s offset %d", typ, i)
		}
		for i := offsetPayload; i < PacketSize; i++ {
			if typ == TypeResponse {
				assert.NotZero(t, mask[i], "%s offset %d", typ, i)
			} else {
				assert.Zero(t, mask[i], "%s offset %d", typ, i)
			}
		}
	}
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "DISPENSE", TypeDispense.String())
	assert.Equal(t, "TYPE(99)", Type(99).String())
}

package bus

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptLink replies with scripted bytes, then zeros.
type scriptLink struct {
	script []byte
	sent   []byte
	resets int
	err    error
}

func (l *scriptLink) Transfer(b byte) (byte, error) {
	if l.err != nil {
		return 0, l.err
	}
	l.sent = append(l.sent, b)
	if len(l.script) == 0 {
		return 0, nil
	}
	rx := l.script[0]
	l.script = l.script[1:]
	return rx, nil
}

func (l *scriptLink) Reset(context.Context) error {
	l.resets++
	return nil
}

func echoScript(prefix []byte, f Frame) []byte {
	return append(append([]byte{}, prefix...), f[:]...)
}

func TestExchangeEcho(t *testing.T) {
	for _, req := range []*Packet{
		NewRequest(1, TypeStart),
		NewRequest(2, TypeStop),
		NewDispense(3, 0xffff),
		NewRequest(4, TypeCheck),
		NewRequest(5, TypeGetState),
	} {
		t.Run(req.Type.String(), func(t *testing.T) {
			link := &scriptLink{script: echoScript([]byte{0}, req.Frame())}
			reply, err := NewSession(link).Exchange(req)
			require.NoError(t, err)
			require.Equal(t, req.Bytes(), reply.Bytes())
			require.Equal(t, append(req.Bytes(), 0), link.sent)
		})
	}
}

func TestExchangeMismatch(t *testing.T) {
	req := NewRequest(2, TypeCheck)
	for off := 0; off < PacketSize; off++ {
		f := req.Frame()
		f[off] ^= 0x01
		if off == 0 {
			// a corrupted first sync byte is skipped while seeking
			f[0] = 0
		}
		link := &scriptLink{script: echoScript([]byte{0}, f)}
		_, err := NewSession(link).Exchange(req)
		assert.Equal(t, ErrTransmission, err, "offset %d", off)
	}
}

func TestExchangeResponsePayloadExempt(t *testing.T) {
	req := NewRequest(3, TypeResponse)
	for _, payload := range [][2]byte{{0, 0}, {5, 0}, {0xff, 0xff}, {0xa0, 0xa1}, {0x7f, 0x33}} {
		f := req.Frame()
		f[4], f[5] = payload[0], payload[1]
		link := &scriptLink{script: echoScript([]byte{0}, f)}
		reply, err := NewSession(link).Exchange(req)
		require.NoError(t, err)
		code, ok := reply.Status()
		require.True(t, ok)
		assert.Equal(t, payload[0], code)
	}

	f := req.Frame()
	f[2] = 4
	link := &scriptLink{script: echoScript([]byte{0}, f)}
	_, err := NewSession(link).Exchange(req)
	assert.Equal(t, ErrTransmission, err)
}

func TestExchangeResync(t *testing.T) {
	req := NewDispense(7, 1234)
	for k := 0; k < PacketSize; k++ {
		prefix := []byte{0xff}
		for i := 0; i < k; i++ {
			prefix = append(prefix, 0x55+byte(i))
		}
		link := &scriptLink{script: echoScript(prefix, req.Frame())}
		reply, err := NewSession(link).Exchange(req)
		require.NoError(t, err, "padding %d", k)
		require.Equal(t, req.Bytes(), reply.Bytes(), "padding %d", k)
		require.Len(t, link.sent, 1+k+PacketSize, "padding %d", k)
		for _, b := range link.sent[PacketSize:] {
			require.Zero(t, b)
		}
	}
}

func TestExchangeLinkError(t *testing.T) {
	ioErr := errors.New("broken wire")
	_, err := NewSession(&scriptLink{err: ioErr}).Exchange(NewRequest(1, TypeStart))
	require.Equal(t, ioErr, err)

	_, err = NewSession(nil).Exchange(NewRequest(1, TypeStart))
	require.Equal(t, ErrNoLink, err)
}

func TestAssignAddresses(t *testing.T) {
	link := &scriptLink{script: []byte{0, 0xff, 0, 0, 4}}
	s := NewSession(link)
	n, err := s.AssignAddresses()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, s.Count())
	assert.Equal(t, []byte{1, 0, 0, 0, 0}, link.sent)

	link = &scriptLink{script: []byte{1}}
	n, err = NewSession(link).AssignAddresses()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTrace(t *testing.T) {
	req := NewRequest(1, TypeCheck)
	var buf bytes.Buffer
	s := NewSession(&scriptLink{script: echoScript([]byte{0}, req.Frame())})
	s.Trace = &buf
	_, err := s.Exchange(req)
	require.NoError(t, err)
	assert.Empty(t, buf.String())

	s.Link = &scriptLink{script: []byte{0, 0xff, 0xff, 9}}
	s.SetDebug(DebugExchange)
	_, err = s.Exchange(req)
	require.Equal(t, ErrTransmission, err)
	assert.Equal(t, "# transfer packet 4\n# data transmission error!\n", buf.String())

	buf.Reset()
	s.Link = &scriptLink{script: echoScript([]byte{0x42}, req.Frame())}
	s.SetDebug(DebugBytes)
	_, err = s.Exchange(req)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "# ff 42\n")
	assert.Contains(t, buf.String(), "verify:\n")
}

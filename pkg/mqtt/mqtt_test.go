package mqtt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/dispense.go/pkg/bus"
	"github.com/robotalks/dispense.go/pkg/console"
	"github.com/robotalks/dispense.go/pkg/msgs"
	"github.com/robotalks/dispense.go/pkg/sim"
)

func TestMatchTopic(t *testing.T) {
	testCases := []struct {
		topic, pattern string
		match          bool
	}{
		{"a/b/cmd", "a/b/cmd", true},
		{"a/b/cmd/1", "a/b/cmd", false},
		{"a/b/cmd/1", "a/b/cmd/+", true},
		{"a/b/cmd", "a/b/cmd/+", false},
		{"a/b/cmd/1/2", "a/#", true},
		{"x/b/meta", "+/+/meta", true},
		{"x/meta", "+/+/meta", false},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.match, MatchTopic(tc.topic, tc.pattern), "%s ~ %s", tc.topic, tc.pattern)
	}
}

func TestClientOptionsFromURL(t *testing.T) {
	opts, prefix, err := ClientOptionsFromURL("mqtt://u:p@broker:1883/plant?client-id=m1")
	require.NoError(t, err)
	assert.Equal(t, "plant/", prefix)
	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "tcp://broker:1883", opts.Servers[0].String())
	assert.Equal(t, "u", opts.Username)
	assert.Equal(t, "p", opts.Password)
	assert.Equal(t, "m1", opts.ClientID)

	opts, prefix, err = ClientOptionsFromURL("mqtt://broker")
	require.NoError(t, err)
	assert.Empty(t, prefix)
	assert.Contains(t, opts.ClientID, "dispense-")
}

func TestQueueDispatch(t *testing.T) {
	opts, prefix, err := ClientOptionsFromURL("mqtt://localhost/p")
	require.NoError(t, err)
	q := NewQueue(opts, prefix)
	var got []string
	sub := q.Sub("m/cmd/+", func(topic string, payload []byte) {
		got = append(got, topic+"="+string(payload))
	})
	q.dispatchTopic("m/cmd/7", []byte("count"))
	q.dispatchTopic("m/reply", []byte("x"))
	require.NoError(t, sub.Close())
	q.dispatchTopic("m/cmd/8", []byte("check"))
	assert.Equal(t, []string{"m/cmd/7=count"}, got)
}

type published struct {
	topic   string
	payload []byte
	retain  bool
}

func newTestBridge(t *testing.T, n int) (*Bridge, *sim.Chain, *[]published) {
	chain := sim.New(n)
	s := bus.NewSession(chain)
	s.SettleDelay = 0
	_, err := s.Reset(context.Background())
	require.NoError(t, err)
	var pubs []published
	b := &Bridge{
		Interp: console.New(s),
		Name:   "dispenser/m1",
		ctx:    context.Background(),
		now:    func() time.Time { return time.Unix(10, 0) },
		publish: func(topic string, payload []byte, retain bool) error {
			pubs = append(pubs, published{topic, payload, retain})
			return nil
		},
	}
	return b, chain, &pubs
}

func TestBridgeCommand(t *testing.T) {
	b, chain, pubs := newTestBridge(t, 2)
	b.handleCommand("dispenser/m1/cmd/42", []byte("disp 2 300\n"))
	require.Len(t, *pubs, 1)
	pub := (*pubs)[0]
	assert.Equal(t, "dispenser/m1/reply", pub.topic)
	assert.False(t, pub.retain)
	reply, err := msgs.DecodeCommandReply(pub.payload)
	require.NoError(t, err)
	assert.Equal(t, "0 ok", reply.Line)
	assert.Equal(t, "42", reply.RequestId)
	assert.Equal(t, []uint16{300}, chain.Dispenser(2).Dispensed)

	b.handleCommand("dispenser/m1/cmd", []byte("on 3"))
	reply, err = msgs.DecodeCommandReply((*pubs)[1].payload)
	require.NoError(t, err)
	assert.Equal(t, int32(console.CodeBadDispenserIndex), reply.Code)
	assert.Empty(t, reply.RequestId)
}

func TestBridgeStatus(t *testing.T) {
	b, chain, pubs := newTestBridge(t, 3)
	chain.Dispenser(3).Status = 8
	b.PublishStatus(b.Check())
	require.Len(t, *pubs, 1)
	assert.Equal(t, "dispenser/m1/status", (*pubs)[0].topic)
	assert.True(t, (*pubs)[0].retain)
	status, err := msgs.DecodeBusStatus((*pubs)[0].payload)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), status.Dispensers)
	assert.True(t, status.Ok)
	assert.Equal(t, uint32(3), status.FaultyAddr)
	assert.Equal(t, uint32(8), status.ErrorCode)
	assert.Equal(t, int64(10000), status.CheckedAt)

	chain.Dispenser(1).Broken = true
	status = b.Check()
	assert.False(t, status.Ok)
	assert.Zero(t, status.FaultyAddr)
}

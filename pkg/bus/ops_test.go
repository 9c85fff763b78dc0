package bus_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/dispense.go/pkg/bus"
	"github.com/robotalks/dispense.go/pkg/sim"
)

func newSession(t *testing.T, chain *sim.Chain) *bus.Session {
	s := bus.NewSession(chain)
	s.SettleDelay = 0
	n, err := s.Reset(context.Background())
	require.NoError(t, err)
	require.Equal(t, len(chain.Dispensers), n)
	return s
}

func TestEnumeration(t *testing.T) {
	for n := 0; n <= bus.DefaultMaxDispensers; n++ {
		chain := sim.New(n)
		s := newSession(t, chain)
		assert.Equal(t, n, s.Count())
		for i, d := range chain.Dispensers {
			assert.Equal(t, byte(i+1), d.Addr)
		}
	}
}

func TestResetRetriesImplausibleCount(t *testing.T) {
	chain := sim.New(3)
	chain.CorruptResets = 2
	s := newSession(t, chain)
	assert.Equal(t, 3, s.Count())
	assert.Zero(t, chain.CorruptResets)

	chain = sim.New(bus.DefaultMaxDispensers + 1)
	s = bus.NewSession(chain)
	s.SettleDelay, s.MaxResetAttempts = 0, 3
	_, err := s.Reset(context.Background())
	require.Error(t, err)
	enumErr, ok := err.(*bus.EnumerationError)
	require.True(t, ok)
	assert.Equal(t, bus.DefaultMaxDispensers+1, enumErr.Count)
	assert.Equal(t, 3, enumErr.Attempts)
	assert.Zero(t, s.Count())

	chain = sim.New(5)
	s = bus.NewSession(chain)
	s.SettleDelay, s.MaxDispensers = 0, 4
	s.MaxResetAttempts = 1
	_, err = s.Reset(context.Background())
	require.IsType(t, &bus.EnumerationError{}, err)
}

func TestResetCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := bus.NewSession(sim.New(1))
	_, err := s.Reset(ctx)
	require.Equal(t, context.Canceled, err)
}

func TestResetCanceledDuringSettle(t *testing.T) {
	for _, n := range []int{3, bus.DefaultMaxDispensers + 8} {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		s := bus.NewSession(sim.New(n))
		s.SettleDelay = time.Millisecond
		_, err := s.Reset(ctx)
		require.Equal(t, context.Canceled, err)
		assert.Zero(t, s.Count(), "dispensers=%d", n)
		_, _, err = s.Check()
		assert.NoError(t, err)
	}
}

func TestTurnOnOff(t *testing.T) {
	chain := sim.New(2)
	s := newSession(t, chain)
	require.NoError(t, s.TurnOn(2))
	assert.True(t, chain.Dispenser(2).On)
	assert.False(t, chain.Dispenser(1).On)
	require.NoError(t, s.TurnOff(2))
	assert.False(t, chain.Dispenser(2).On)
	assert.Equal(t, []bus.Type{bus.TypeStart, bus.TypeStop}, chain.Dispenser(2).Received)
}

func TestDispense(t *testing.T) {
	chain := sim.New(3)
	s := newSession(t, chain)
	require.NoError(t, s.Dispense(3, 500))
	require.NoError(t, s.Dispense(3, 0xffff))
	assert.Equal(t, []uint16{500, 0xffff}, chain.Dispenser(3).Dispensed)
	assert.Empty(t, chain.Dispenser(1).Dispensed)
}

func TestCheckAllHealthy(t *testing.T) {
	chain := sim.New(4)
	s := newSession(t, chain)
	addr, code, err := s.Check()
	require.NoError(t, err)
	assert.Zero(t, addr)
	assert.Zero(t, code)
	for _, d := range chain.Dispensers {
		assert.Equal(t, []bus.Type{bus.TypeCheck, bus.TypeResponse}, d.Received)
	}
}

func TestCheckAllHaltsOnFirstFault(t *testing.T) {
	chain := sim.New(3)
	s := newSession(t, chain)
	chain.Dispenser(2).Status = 5
	chain.Dispenser(3).Status = 9
	addr, code, err := s.CheckAll(3)
	require.NoError(t, err)
	assert.Equal(t, byte(2), addr)
	assert.Equal(t, byte(5), code)
	assert.Equal(t, []bus.Type{bus.TypeCheck, bus.TypeResponse}, chain.Dispenser(1).Received)
	assert.Empty(t, chain.Dispenser(3).Received)
}

func TestCheckAllTransmissionError(t *testing.T) {
	chain := sim.New(3)
	s := newSession(t, chain)
	chain.Dispenser(2).Broken = true
	chain.Dispenser(3).Status = 1
	_, _, err := s.CheckAll(3)
	require.Equal(t, bus.ErrTransmission, err)
	assert.Empty(t, chain.Dispenser(3).Received)
}

func TestCheckAllNone(t *testing.T) {
	s := newSession(t, sim.New(0))
	addr, code, err := s.CheckAll(0)
	require.NoError(t, err)
	assert.Zero(t, addr)
	assert.Zero(t, code)
}

func TestGetStateIdempotent(t *testing.T) {
	chain := sim.New(2)
	s := newSession(t, chain)
	chain.Dispenser(1).State = 3
	chain.Dispenser(2).State = 7
	for i := 0; i < 3; i++ {
		state, err := s.GetState(2)
		require.NoError(t, err)
		assert.Equal(t, byte(7), state)
	}
	state, err := s.GetState(1)
	require.NoError(t, err)
	assert.Equal(t, byte(3), state)
}

func TestBrokenDispenser(t *testing.T) {
	chain := sim.New(2)
	s := newSession(t, chain)
	chain.Dispenser(1).Broken = true
	assert.Equal(t, bus.ErrTransmission, s.TurnOn(1))
	assert.NoError(t, s.TurnOn(2))
	_, err := s.GetState(1)
	assert.Equal(t, bus.ErrTransmission, err)
}

func TestProbe(t *testing.T) {
	chain := sim.New(1)
	s := newSession(t, chain)
	in, err := s.Probe([]byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2}, in)
}

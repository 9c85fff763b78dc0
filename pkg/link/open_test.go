package link

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/dispense.go/pkg/sim"
)

func TestOpenSim(t *testing.T) {
	l, err := Open("sim://?dispensers=3&status=2:5&state=3:0x10")
	require.NoError(t, err)
	chain, ok := l.(*sim.Chain)
	require.True(t, ok)
	require.Len(t, chain.Dispensers, 3)
	assert.Equal(t, byte(5), chain.Dispensers[1].Status)
	assert.Equal(t, byte(0x10), chain.Dispensers[2].State)
}

func TestOpenErrors(t *testing.T) {
	for _, u := range []string{
		"ftp://host/bus",
		"sim://?dispensers=x",
		"sim://?dispensers=-1",
		"sim://?dispensers=2&status=3:1",
		"sim://?dispensers=2&status=1",
		"sim://?dispensers=2&state=1:300",
		"spidev:///dev/spidev0.0?speed=fast",
		"serial:///dev/ttyUSB0?baud=fast",
	} {
		_, err := Open(u)
		assert.Error(t, err, u)
	}
}

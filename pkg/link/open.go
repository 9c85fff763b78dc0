// Package link opens bus links by URL.
package link

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/robotalks/dispense.go/pkg/bus"
	"github.com/robotalks/dispense.go/pkg/link/serial"
	"github.com/robotalks/dispense.go/pkg/link/spidev"
	"github.com/robotalks/dispense.go/pkg/link/websocket"
	"github.com/robotalks/dispense.go/pkg/sim"
)

// DefaultURL is the link used when none is configured.
const DefaultURL = "spidev:///dev/spidev0.0"

// Open opens a link from URL:
//
//   spidev:///dev/spidev0.0?speed=250000
//   serial:///dev/ttyUSB0?baud=38400
//   ws://host:port/bus
//   sim://?dispensers=3&status=2:5&state=1:7
//
// The returned link may implement io.Closer.
func Open(linkURL string) (bus.Link, error) {
	u, err := url.Parse(linkURL)
	if err != nil {
		return nil, fmt.Errorf("invalid link URL: %v", err)
	}
	q := u.Query()
	switch u.Scheme {
	case "spidev":
		speed, err := intParam(q, "speed", int(spidev.DefaultMaxSpeed))
		if err != nil {
			return nil, err
		}
		return opened(spidev.Open(u.Path, int64(speed)))
	case "serial":
		baud, err := intParam(q, "baud", serial.DefaultBaudRate)
		if err != nil {
			return nil, err
		}
		return opened(serial.Open(u.Path, baud))
	case "ws", "wss":
		return opened(websocket.Dial(linkURL))
	case "sim":
		return opened(OpenSim(q))
	default:
		return nil, fmt.Errorf("unknown link URL scheme: %q", u.Scheme)
	}
}

// OpenSim creates a simulated chain from URL query parameters.
func OpenSim(q url.Values) (*sim.Chain, error) {
	n, err := intParam(q, "dispensers", 1)
	if err != nil {
		return nil, err
	}
	if n < 0 || n > 250 {
		return nil, fmt.Errorf("invalid dispensers: %d", n)
	}
	chain := sim.New(n)
	for _, param := range q["status"] {
		addr, val, err := addrValue(param, n)
		if err != nil {
			return nil, err
		}
		chain.Dispensers[addr-1].Status = val
	}
	for _, param := range q["state"] {
		addr, val, err := addrValue(param, n)
		if err != nil {
			return nil, err
		}
		chain.Dispensers[addr-1].State = val
	}
	return chain, nil
}

// opened avoids wrapping a nil link in a non-nil interface.
func opened(link interface{}, err error) (bus.Link, error) {
	if err != nil {
		return nil, err
	}
	return link.(bus.Link), nil
}

func intParam(q url.Values, name string, def int) (int, error) {
	str := q.Get(name)
	if str == "" {
		return def, nil
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", name, err)
	}
	return val, nil
}

// addrValue parses "ADDR:VALUE".
func addrValue(param string, n int) (int, byte, error) {
	items := strings.SplitN(param, ":", 2)
	if len(items) != 2 {
		return 0, 0, fmt.Errorf("invalid %q, ADDR:VALUE expected", param)
	}
	addr, err := strconv.Atoi(items[0])
	if err != nil || addr < 1 || addr > n {
		return 0, 0, fmt.Errorf("invalid address in %q", param)
	}
	val, err := strconv.ParseUint(items[1], 0, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid value in %q", param)
	}
	return addr, byte(val), nil
}

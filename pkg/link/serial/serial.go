// Package serial drives the bus through a USB-serial bridge.
package serial

import (
	"context"
	"time"

	"github.com/golang/glog"
	"go.bug.st/serial"

	fx "github.com/robotalks/dispense.go/pkg/framework"
	"github.com/robotalks/dispense.go/pkg/link/stream"
)

// Defaults of the bridge.
const (
	DefaultBaudRate    = 38400
	DefaultResetHold   = 100 * time.Millisecond
	DefaultSelectDelay = 5 * time.Millisecond
)

// Link is a stream link on a serial port. The bridge clocks one bus byte
// per received byte and sends back what it clocked in. DTR drives the
// slave select line: DTR asserted selects the chain.
type Link struct {
	*stream.Link
	Port        serial.Port
	ResetHold   time.Duration
	SelectDelay time.Duration
}

// Open opens the serial port.
func Open(name string, baud int) (*Link, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	l := &Link{
		Link:        stream.New(port),
		Port:        port,
		ResetHold:   DefaultResetHold,
		SelectDelay: DefaultSelectDelay,
	}
	l.Link.ResetFunc = l.reset
	return l, nil
}

func (l *Link) reset(ctx context.Context) error {
	glog.V(2).Info("serial: deselect chain")
	if err := l.Port.SetDTR(false); err != nil {
		return err
	}
	if err := fx.Sleep(ctx, l.ResetHold); err != nil {
		return err
	}
	if err := l.Port.ResetInputBuffer(); err != nil {
		return err
	}
	if err := l.Port.SetDTR(true); err != nil {
		return err
	}
	return fx.Sleep(ctx, l.SelectDelay)
}

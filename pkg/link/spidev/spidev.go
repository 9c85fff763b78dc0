// Package spidev drives the bus from a Linux spidev device.
package spidev

import (
	"context"
	"errors"
	"time"

	"github.com/golang/glog"
	"golang.org/x/exp/io/spi"

	fx "github.com/robotalks/dispense.go/pkg/framework"
)

// Defaults matching the dispenser firmware.
const (
	DefaultMaxSpeed    int64 = 250000
	DefaultResetHold         = 100 * time.Millisecond
	DefaultSelectDelay       = 5 * time.Millisecond
)

// ErrClosed indicates the device is not open.
var ErrClosed = errors.New("spidev closed")

// Link implements bus.Link on spidev. Chip select stays asserted between
// transfers; releasing the device deselects the chain, which resets it.
type Link struct {
	Dev         string
	Mode        spi.Mode
	MaxSpeed    int64
	ResetHold   time.Duration
	SelectDelay time.Duration

	device *spi.Device
}

// Open opens the spidev device.
func Open(dev string, maxSpeed int64) (*Link, error) {
	if maxSpeed <= 0 {
		maxSpeed = DefaultMaxSpeed
	}
	l := &Link{
		Dev:         dev,
		Mode:        spi.Mode0,
		MaxSpeed:    maxSpeed,
		ResetHold:   DefaultResetHold,
		SelectDelay: DefaultSelectDelay,
	}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Link) open() error {
	device, err := spi.Open(&spi.Devfs{Dev: l.Dev, Mode: l.Mode, MaxSpeed: l.MaxSpeed})
	if err != nil {
		return err
	}
	if err = device.SetCSChange(true); err != nil {
		device.Close()
		return err
	}
	l.device = device
	return nil
}

// Transfer implements bus.Link.
func (l *Link) Transfer(b byte) (byte, error) {
	if l.device == nil {
		return 0, ErrClosed
	}
	rx := make([]byte, 1)
	if err := l.device.Tx([]byte{b}, rx); err != nil {
		return 0, err
	}
	return rx[0], nil
}

// Reset implements bus.Link.
func (l *Link) Reset(ctx context.Context) error {
	glog.V(2).Infof("spidev: release %s", l.Dev)
	if l.device != nil {
		l.device.Close()
		l.device = nil
	}
	if err := fx.Sleep(ctx, l.ResetHold); err != nil {
		return err
	}
	if err := l.open(); err != nil {
		return err
	}
	return fx.Sleep(ctx, l.SelectDelay)
}

// Close implements io.Closer.
func (l *Link) Close() error {
	if l.device == nil {
		return nil
	}
	err := l.device.Close()
	l.device = nil
	return err
}

// Package websocket carries the bus over a websocket, e.g. to a simulator
// or to a bus bridge on another host.
package websocket

import (
	"context"
	"errors"
	"io"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/robotalks/dispense.go/pkg/bus"
)

// Opcodes. Every message is binary, the first byte is the opcode.
const (
	// OpTransfer is followed by bytes to transfer; the reply carries the
	// bytes received in exchange.
	OpTransfer byte = 'T'
	// OpReset resets the bus; the reply is the opcode alone.
	OpReset byte = 'R'
)

// ErrBadReply indicates an unexpected reply from the peer.
var ErrBadReply = errors.New("bad reply")

// Link implements bus.Link as a websocket client.
type Link websocket.Conn

// Dial connects to the bus server.
func Dial(url string) (*Link, error) {
	conn, err := websocket.Dial(url, "", "http://localhost/")
	if err != nil {
		return nil, err
	}
	return (*Link)(conn), nil
}

func (l *Link) roundTrip(msg []byte) ([]byte, error) {
	conn := (*websocket.Conn)(l)
	if err := websocket.Message.Send(conn, msg); err != nil {
		return nil, err
	}
	var reply []byte
	err := websocket.Message.Receive(conn, &reply)
	return reply, err
}

// Transfer implements bus.Link.
func (l *Link) Transfer(b byte) (byte, error) {
	reply, err := l.roundTrip([]byte{OpTransfer, b})
	if err != nil {
		return 0, err
	}
	if len(reply) != 1 {
		return 0, ErrBadReply
	}
	return reply[0], nil
}

// Reset implements bus.Link.
func (l *Link) Reset(context.Context) error {
	reply, err := l.roundTrip([]byte{OpReset})
	if err != nil {
		return err
	}
	if len(reply) != 1 || reply[0] != OpReset {
		return ErrBadReply
	}
	return nil
}

// Close implements io.Closer.
func (l *Link) Close() error {
	return (*websocket.Conn)(l).Close()
}

// Server serves a bus.Link to websocket clients. Clients are served one
// at a time as the bus has a single master.
func Server(link bus.Link) websocket.Handler {
	lock := make(chan struct{}, 1)
	return func(conn *websocket.Conn) {
		lock <- struct{}{}
		defer func() { <-lock }()
		defer conn.Close()
		if err := serve(conn, link); err != nil && err != io.EOF {
			glog.Warningf("websocket: %v", err)
		}
	}
}

func serve(conn *websocket.Conn, link bus.Link) error {
	for {
		var msg []byte
		if err := websocket.Message.Receive(conn, &msg); err != nil {
			return err
		}
		// unknown requests get an empty reply so the client fails with
		// ErrBadReply instead of waiting.
		reply := []byte{}
		switch {
		case len(msg) == 0:
			glog.Warning("websocket: empty request")
		case msg[0] == OpTransfer:
			reply = make([]byte, 0, len(msg)-1)
			for _, b := range msg[1:] {
				rx, err := link.Transfer(b)
				if err != nil {
					return err
				}
				reply = append(reply, rx)
			}
		case msg[0] == OpReset:
			if err := link.Reset(conn.Request().Context()); err != nil {
				return err
			}
			reply = []byte{OpReset}
		default:
			glog.Warningf("websocket: unknown opcode %#02x", msg[0])
		}
		if err := websocket.Message.Send(conn, reply); err != nil {
			return err
		}
	}
}

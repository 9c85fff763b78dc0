package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"

	"github.com/robotalks/dispense.go/pkg/bus"
	"github.com/robotalks/dispense.go/pkg/console"
	"github.com/robotalks/dispense.go/pkg/msgs"
)

// Meta describes the master, published retained on NAME/meta.
type Meta struct {
	Description string            `json:"description,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
}

// Bridge exposes the console over MQTT:
//
//   NAME/cmd, NAME/cmd/ID  command lines in, ID is echoed in the reply
//   NAME/reply             msgs.CommandReply
//   NAME/status            msgs.BusStatus, retained
//   NAME/meta              Meta in JSON, retained, cleared on exit
type Bridge struct {
	Queue  *Queue
	Interp *console.Interpreter
	// Name is the topic prefix of this master, usually TYPE/ID.
	Name string
	Meta Meta
	// CheckInterval is the period of health checks, 0 disables them.
	CheckInterval time.Duration

	ctx      context.Context
	metaJSON []byte
	publish  func(topic string, payload []byte, retain bool) error
	now      func() time.Time
}

// NewBridge creates a Bridge connecting to the broker.
func NewBridge(brokerURL, name string, interp *console.Interpreter) (*Bridge, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(topicPrefix+name+"/meta", nil, 1, true)
	b := &Bridge{
		Queue:  NewQueue(opts, topicPrefix),
		Interp: interp,
		Name:   name,
		ctx:    context.Background(),
		now:    time.Now,
	}
	b.publish = b.Queue.Publish
	b.Queue.OnConnect = func(*Queue) { b.publishMeta() }
	return b, nil
}

// Run implements Runnable.
func (b *Bridge) Run(ctx context.Context) error {
	b.ctx = ctx
	meta, err := json.Marshal(&b.Meta)
	if err != nil {
		return err
	}
	b.metaJSON = meta

	subs := []*Subscription{
		b.Queue.Sub(b.Name+"/cmd", b.handleCommand),
		b.Queue.Sub(b.Name+"/cmd/+", b.handleCommand),
	}
	token := b.Queue.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return err
	}
	defer b.Queue.Close()
	defer func() {
		for _, sub := range subs {
			sub.Close()
		}
		if err := b.publish(b.Name+"/meta", nil, true); err != nil {
			glog.Warningf("clear meta error: %v", err)
		}
	}()

	b.PublishStatus(b.Check())
	var tick <-chan time.Time
	if b.CheckInterval > 0 {
		ticker := time.NewTicker(b.CheckInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
			b.PublishStatus(b.Check())
		}
	}
}

func (b *Bridge) publishMeta() {
	if err := b.publish(b.Name+"/meta", b.metaJSON, true); err != nil {
		glog.Warningf("publish meta error: %v", err)
	}
}

// Check runs a health check of all dispensers.
func (b *Bridge) Check() *msgs.BusStatus {
	status := &msgs.BusStatus{CheckedAt: b.now().UnixNano() / int64(time.Millisecond)}
	b.Interp.Do(func(s *bus.Session) error {
		status.Dispensers = uint32(s.Count())
		addr, code, err := s.Check()
		if err != nil {
			glog.Warningf("health check: %v", err)
			return err
		}
		status.Ok = true
		status.FaultyAddr, status.ErrorCode = uint32(addr), uint32(code)
		return nil
	})
	return status
}

// PublishStatus publishes the status retained.
func (b *Bridge) PublishStatus(status *msgs.BusStatus) {
	b.publishMsg(b.Name+"/status", status, true)
}

func (b *Bridge) publishMsg(topic string, msg proto.Message, retain bool) {
	data, err := msgs.Encode(msg)
	if err != nil {
		glog.Errorf("encode %s error: %v", topic, err)
		return
	}
	if err = b.publish(topic, data, retain); err != nil {
		glog.Warningf("publish %s error: %v", topic, err)
	}
}

func (b *Bridge) handleCommand(topic string, payload []byte) {
	var requestID string
	if suffix := strings.TrimPrefix(topic, b.Name+"/cmd"); strings.HasPrefix(suffix, "/") {
		requestID = suffix[1:]
	}
	line := strings.TrimSpace(string(payload))
	reply := b.Interp.Exec(b.ctx, line)
	glog.V(1).Infof("mqtt command %q: %s", line, reply.Line())
	b.publishMsg(b.Name+"/reply", &msgs.CommandReply{
		Code:      int32(reply.Code),
		Message:   reply.Message,
		Line:      reply.Line(),
		RequestId: requestID,
	}, false)
}

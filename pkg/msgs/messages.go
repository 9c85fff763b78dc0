package msgs

import (
	"github.com/golang/protobuf/proto"
)

// BusStatus is the result of the latest bus reset or health check.
type BusStatus struct {
	// Dispensers is the number of enumerated dispensers.
	Dispensers uint32 `protobuf:"varint,1,opt,name=dispensers,proto3" json:"dispensers,omitempty"`
	// Ok is false when the check failed with a transmission error.
	Ok bool `protobuf:"varint,2,opt,name=ok,proto3" json:"ok,omitempty"`
	// FaultyAddr is the first dispenser reporting a fault, 0 if none.
	FaultyAddr uint32 `protobuf:"varint,3,opt,name=faulty_addr,json=faultyAddr,proto3" json:"faulty_addr,omitempty"`
	// ErrorCode is the status code reported by FaultyAddr.
	ErrorCode uint32 `protobuf:"varint,4,opt,name=error_code,json=errorCode,proto3" json:"error_code,omitempty"`
	// CheckedAt is the check time in unix milliseconds.
	CheckedAt int64 `protobuf:"varint,5,opt,name=checked_at,json=checkedAt,proto3" json:"checked_at,omitempty"`
}

// Reset implements proto.Message.
func (m *BusStatus) Reset() { *m = BusStatus{} }

// String implements proto.Message.
func (m *BusStatus) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*BusStatus) ProtoMessage() {}

// CommandReply is the reply to a command line received over MQTT.
type CommandReply struct {
	Code    int32  `protobuf:"varint,1,opt,name=code,proto3" json:"code,omitempty"`
	Message string `protobuf:"bytes,2,opt,name=message,proto3" json:"message,omitempty"`
	// Line is the reply as printed on the console.
	Line string `protobuf:"bytes,3,opt,name=line,proto3" json:"line,omitempty"`
	// RequestId echoes the id of the request, if any.
	RequestId string `protobuf:"bytes,4,opt,name=request_id,json=requestId,proto3" json:"request_id,omitempty"`
}

// Reset implements proto.Message.
func (m *CommandReply) Reset() { *m = CommandReply{} }

// String implements proto.Message.
func (m *CommandReply) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*CommandReply) ProtoMessage() {}

// Encode marshals a message.
func Encode(msg proto.Message) ([]byte, error) {
	return proto.Marshal(msg)
}

// DecodeBusStatus unmarshals a BusStatus.
func DecodeBusStatus(data []byte) (*BusStatus, error) {
	var msg BusStatus
	if err := proto.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DecodeCommandReply unmarshals a CommandReply.
func DecodeCommandReply(data []byte) (*CommandReply, error) {
	var msg CommandReply
	if err := proto.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

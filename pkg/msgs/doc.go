// Package msgs defines messages published by the master over MQTT.
package msgs

// Messages are protobuf encoded. Field numbers are part of the wire
// contract with consumers and must not be reused.
//
// Producer: dispenserd
// Consumer: host applications

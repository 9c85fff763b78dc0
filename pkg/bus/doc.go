// Package bus implements the master side of the dispenser bus.
package bus

// The dispenser bus is a byte-synchronous, half-duplex daisy chain driven by
// exactly one master. There are no chip-select lines per device and no
// checksum. Every transfer clocks one byte out and one byte in; replies are
// phase shifted by an unknown number of bytes, so the master recovers frame
// boundaries by looking for the 0xff sync marker and verifies the frame that
// comes back against the one it sent.
//
// Slaves number themselves during enumeration right after a bus reset; the
// master only learns how many there are.
//
// Producer: master (this package)
// Consumer: dispenser firmware

// Copyright 2024 The gpibctl Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package bus defines the abstract GPIB line-level Transceiver that package
// handshake and package role drive. GPIB is negative logic: asserted means
// the line is driven low.
package bus

// Signal identifies one of the GPIB handshake or management lines.
type Signal int

// The full set of lines package handshake and package role operate on.
const (
	DAV Signal = iota
	NRFD
	NDAC
	EOI
	ATN
	IFC
	SRQ
	REN
)

func (s Signal) String() string {
	switch s {
	case DAV:
		return "DAV"
	case NRFD:
		return "NRFD"
	case NDAC:
		return "NDAC"
	case EOI:
		return "EOI"
	case ATN:
		return "ATN"
	case IFC:
		return "IFC"
	case SRQ:
		return "SRQ"
	case REN:
		return "REN"
	default:
		return "?"
	}
}

// TransmitMode selects which handshake signals the adapter drives versus
// floats, per spec.md §4.B.
type TransmitMode int

const (
	// Idle drives nothing; all handshake lines are floated.
	Idle TransmitMode = iota
	// Recv drives NRFD/NDAC (the adapter is a listener).
	Recv
	// Send drives DAV/EOI (the adapter is a talker or controller-in-command).
	Send
)

func (m TransmitMode) String() string {
	switch m {
	case Idle:
		return "Idle"
	case Recv:
		return "Recv"
	case Send:
		return "Send"
	default:
		return "?"
	}
}

// OperatingMode selects the overall bus role for management-line direction:
// IFC/REN/ATN/SRQ are driven by the controller, merely observed by a
// device.
type OperatingMode int

const (
	// OpIdle releases every management line.
	OpIdle OperatingMode = iota
	// OpController drives IFC/REN, and ATN when not delegated to Send/Recv.
	OpController
	// OpDevice only observes ATN/IFC/REN and may assert SRQ.
	OpDevice
)

func (m OperatingMode) String() string {
	switch m {
	case OpIdle:
		return "Idle"
	case OpController:
		return "Controller"
	case OpDevice:
		return "Device"
	default:
		return "?"
	}
}

// Transceiver is the external collaborator that drives and reads individual
// GPIB lines and the 8-bit data port. Implementations are synchronous and
// non-failing at this layer — a stuck bus is detected by timeout one layer
// up, in package handshake, not here.
//
// The handshake engine and role state machine drive the handshake and data
// lines. Package dispatch also drives REN and IFC directly (controller
// assignment and ++ifc) and reads SRQ, and packages hostproto and monitor
// read line state.
type Transceiver interface {
	// AssertSignal drives s low (GPIB-asserted).
	AssertSignal(s Signal)
	// UnassertSignal drives s high.
	UnassertSignal(s Signal)
	// FloatSignal releases s to its passive pull-up (input).
	FloatSignal(s Signal)
	// ReadSignal returns the raw line level; asserted (low) is true.
	ReadSignal(s Signal) bool

	// DIOWrite drives the 8 data lines with byte b. GPIB data lines are
	// negative logic, so the wire value is ~b; implementations invert
	// internally.
	DIOWrite(b byte)
	// DIORead reads and inverts the 8 data lines.
	DIORead() byte
	// DIOFloat releases the data port to input.
	DIOFloat()
	// DIOOutput drives the data port as output.
	DIOOutput()

	// SetMode selects which handshake signals are driven, per TransmitMode.
	SetMode(m TransmitMode)
	// SetOperatingMode configures IFC/REN/ATN/SRQ direction for the given
	// overall role.
	SetOperatingMode(m OperatingMode)
}

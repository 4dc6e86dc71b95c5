// Copyright 2024 The gpibctl Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package role implements the controller/device bus role state machine of
// spec.md §4.D: the nine substates, and the transceiver reconfiguration
// that each transition drives.
package role

import "gpibctl/bus"

// State is one of the nine bus role substates.
type State int

const (
	// CINI is controller init: assert REN, IFC pulse-able, DIO float.
	CINI State = iota
	// CIDS is controller idle: ATN unasserted, DIO float, drivers for recv.
	CIDS
	// CCMS is controller sending bus commands: ATN asserted, drivers for send.
	CCMS
	// CTAS is controller talker: ATN unasserted, drivers for send.
	CTAS
	// CLAS is controller listener: ATN unasserted, drivers for recv.
	CLAS
	// DINI is device init: all signals released; listen for IFC/ATN.
	DINI
	// DIDS is device idle.
	DIDS
	// DLAS is device listener.
	DLAS
	// DTAS is device talker.
	DTAS
)

func (s State) String() string {
	switch s {
	case CINI:
		return "CINI"
	case CIDS:
		return "CIDS"
	case CCMS:
		return "CCMS"
	case CTAS:
		return "CTAS"
	case CLAS:
		return "CLAS"
	case DINI:
		return "DINI"
	case DIDS:
		return "DIDS"
	case DLAS:
		return "DLAS"
	case DTAS:
		return "DTAS"
	default:
		return "?"
	}
}

// IsController reports whether s belongs to the controller side.
func (s State) IsController() bool {
	return s == CINI || s == CIDS || s == CCMS || s == CTAS || s == CLAS
}

// Machine applies the transceiver configuration (direction, mode, ATN) for
// each role substate through SetControls. Between transitions package
// handshake drives the individual handshake and data lines itself.
type Machine struct {
	t       bus.Transceiver
	current State
}

// New returns a Machine with no assumed starting state; the first
// SetControls call always reconfigures the transceiver.
func New(t bus.Transceiver) *Machine {
	return &Machine{t: t, current: State(-1)}
}

// Current returns the last state set via SetControls.
func (m *Machine) Current() State {
	return m.current
}

// SetControls transitions to next, reconfiguring the transceiver's
// direction and driven lines. A request to the current state is a no-op —
// the transceiver configuration happens at most once per distinct state,
// per spec.md §8's idempotent-role-set invariant.
func (m *Machine) SetControls(next State) {
	if m.current == next {
		return
	}
	m.current = next
	switch next {
	case CINI:
		m.t.SetOperatingMode(bus.OpController)
		m.t.DIOFloat()
		m.t.SetMode(bus.Idle)
	case CIDS:
		m.t.UnassertSignal(bus.ATN)
		m.t.DIOFloat()
		m.t.SetMode(bus.Recv)
	case CCMS:
		m.t.AssertSignal(bus.ATN)
		m.t.DIOOutput()
		m.t.SetMode(bus.Send)
	case CTAS:
		m.t.UnassertSignal(bus.ATN)
		m.t.DIOOutput()
		m.t.SetMode(bus.Send)
	case CLAS:
		m.t.UnassertSignal(bus.ATN)
		m.t.DIOFloat()
		m.t.SetMode(bus.Recv)
	case DINI:
		m.t.SetOperatingMode(bus.OpDevice)
		m.t.DIOFloat()
		m.t.SetMode(bus.Idle)
	case DIDS:
		m.t.DIOFloat()
		m.t.SetMode(bus.Idle)
	case DLAS:
		m.t.DIOFloat()
		m.t.SetMode(bus.Recv)
	case DTAS:
		m.t.DIOOutput()
		m.t.SetMode(bus.Send)
	}
}

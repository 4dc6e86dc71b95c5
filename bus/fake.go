// Copyright 2024 The gpibctl Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bus

// Fake is an in-memory Transceiver used by package handshake, package role
// and package dispatch tests. It records every asserted/unasserted line and
// lets a test drive ReadSignal responses, standing in for a real bus
// partner.
type Fake struct {
	asserted [8]bool
	dio      byte
	Mode     TransmitMode
	OpMode   OperatingMode

	// Respond, if set, is consulted by ReadSignal instead of the recorded
	// asserted state — it lets a test simulate a listener/talker reacting
	// to the adapter's own drive.
	Respond func(s Signal) (bool, bool) // (value, override)

	// History records every assert/unassert call, oldest first, for
	// sequencing assertions (e.g. command-byte ATN-window checks).
	History []Event
}

// Event is one recorded line transition.
type Event struct {
	Signal Signal
	State  string // "assert", "unassert", "float"
}

func (f *Fake) AssertSignal(s Signal) {
	f.asserted[s] = true
	f.History = append(f.History, Event{s, "assert"})
}

func (f *Fake) UnassertSignal(s Signal) {
	f.asserted[s] = false
	f.History = append(f.History, Event{s, "unassert"})
}

func (f *Fake) FloatSignal(s Signal) {
	f.asserted[s] = false
	f.History = append(f.History, Event{s, "float"})
}

func (f *Fake) ReadSignal(s Signal) bool {
	if f.Respond != nil {
		if v, ok := f.Respond(s); ok {
			return v
		}
	}
	return f.asserted[s]
}

func (f *Fake) DIOWrite(b byte)                  { f.dio = b }
func (f *Fake) DIORead() byte                    { return f.dio }
func (f *Fake) DIOFloat()                        {}
func (f *Fake) DIOOutput()                       {}
func (f *Fake) SetMode(m TransmitMode)           { f.Mode = m }
func (f *Fake) SetOperatingMode(m OperatingMode) { f.OpMode = m }

// IsAsserted reports the last driven state of s, ignoring Respond.
func (f *Fake) IsAsserted(s Signal) bool {
	return f.asserted[s]
}

var _ Transceiver = (*Fake)(nil)

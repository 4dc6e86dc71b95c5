// Copyright 2024 The gpibctl Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package bus

import (
	"fmt"

	"periph.io/x/periph/conn/gpio"
)

// GPIOTransceiver is a Transceiver backed by real periph.io/x/periph GPIO
// pins, for running the core directly on a Linux SBC with the GPIB bus
// wired to its header — the same bit-bang-over-gpio.PinIO pattern the
// teacher uses to expose FTDI pins (see hostextra/d2xx's syncPin), applied
// here to real host GPIOs instead of an FTDI bit-bang port.
//
// Each management/handshake line is an open-drain output: AssertSignal
// drives it low, UnassertSignal drives it high, FloatSignal switches it
// back to input with a pull-up, matching the 75160/75161-class bus driver
// behavior spec.md §4.B describes.
type GPIOTransceiver struct {
	lines [8]gpio.PinIO // indexed by Signal
	dio   [8]gpio.PinIO // DIO1..DIO8, negative logic
}

// NewGPIOTransceiver builds a GPIOTransceiver from the 8 named handshake/
// management lines and the 8 data lines, in DIO1..DIO8 order. It does not
// change any pin's direction; callers should follow with SetOperatingMode
// and SetMode to establish a known starting state.
func NewGPIOTransceiver(lines map[Signal]gpio.PinIO, dio [8]gpio.PinIO) (*GPIOTransceiver, error) {
	t := &GPIOTransceiver{dio: dio}
	for _, s := range []Signal{DAV, NRFD, NDAC, EOI, ATN, IFC, SRQ, REN} {
		p, ok := lines[s]
		if !ok || p == nil {
			return nil, fmt.Errorf("bus: missing GPIO pin for signal %s", s)
		}
		t.lines[s] = p
	}
	return t, nil
}

func (t *GPIOTransceiver) pin(s Signal) gpio.PinIO {
	return t.lines[s]
}

// AssertSignal implements Transceiver.
func (t *GPIOTransceiver) AssertSignal(s Signal) {
	_ = t.pin(s).Out(gpio.Low)
}

// UnassertSignal implements Transceiver.
func (t *GPIOTransceiver) UnassertSignal(s Signal) {
	_ = t.pin(s).Out(gpio.High)
}

// FloatSignal implements Transceiver.
func (t *GPIOTransceiver) FloatSignal(s Signal) {
	_ = t.pin(s).In(gpio.PullUp, gpio.NoEdge)
}

// ReadSignal implements Transceiver.
func (t *GPIOTransceiver) ReadSignal(s Signal) bool {
	return t.pin(s).Read() == gpio.Low
}

// DIOWrite implements Transceiver.
func (t *GPIOTransceiver) DIOWrite(b byte) {
	inv := ^b
	for i := 0; i < 8; i++ {
		lvl := gpio.Low
		if inv&(1<<uint(i)) != 0 {
			lvl = gpio.High
		}
		_ = t.dio[i].Out(lvl)
	}
}

// DIORead implements Transceiver.
func (t *GPIOTransceiver) DIORead() byte {
	var raw byte
	for i := 0; i < 8; i++ {
		if t.dio[i].Read() == gpio.High {
			raw |= 1 << uint(i)
		}
	}
	return ^raw
}

// DIOFloat implements Transceiver.
func (t *GPIOTransceiver) DIOFloat() {
	for i := 0; i < 8; i++ {
		_ = t.dio[i].In(gpio.PullUp, gpio.NoEdge)
	}
}

// DIOOutput implements Transceiver.
func (t *GPIOTransceiver) DIOOutput() {
	for i := 0; i < 8; i++ {
		_ = t.dio[i].Out(gpio.High)
	}
}

// SetMode implements Transceiver.
func (t *GPIOTransceiver) SetMode(m TransmitMode) {
	switch m {
	case Idle:
		t.FloatSignal(NRFD)
		t.FloatSignal(NDAC)
		t.UnassertSignal(DAV)
		t.FloatSignal(DAV)
	case Recv:
		t.UnassertSignal(NRFD)
		t.UnassertSignal(NDAC)
		t.FloatSignal(DAV)
		t.FloatSignal(EOI)
	case Send:
		t.FloatSignal(NRFD)
		t.FloatSignal(NDAC)
		t.UnassertSignal(DAV)
		t.UnassertSignal(EOI)
	}
}

// SetOperatingMode implements Transceiver.
func (t *GPIOTransceiver) SetOperatingMode(m OperatingMode) {
	switch m {
	case OpIdle:
		t.FloatSignal(IFC)
		t.FloatSignal(REN)
		t.FloatSignal(ATN)
		t.FloatSignal(SRQ)
	case OpController:
		t.UnassertSignal(IFC)
		t.UnassertSignal(REN)
		t.UnassertSignal(ATN)
		t.FloatSignal(SRQ)
	case OpDevice:
		t.FloatSignal(IFC)
		t.FloatSignal(REN)
		t.FloatSignal(ATN)
		t.UnassertSignal(SRQ)
	}
}

var _ Transceiver = (*GPIOTransceiver)(nil)

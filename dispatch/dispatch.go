// Copyright 2024 The gpibctl Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dispatch

import (
	"fmt"
	"io"
	"time"

	"gpibctl/bus"
	"gpibctl/config"
	"gpibctl/handshake"
	"gpibctl/role"
)

// FirmwareVersion is printed by ++ver, matching firmware.c's boot greeting
// in original_source.
const FirmwareVersion = "gpibctl firmware, rev 1.0"

// Dispatcher wires the command table and chunk_data to the adapter's
// configuration, handshake engine, role machine, and persistence store. Its
// handlers are the only code that sets configuration fields from host
// commands; the volatile device-mode flags in config.Config are also written
// by package handshake (on timeout) and package hostproto (ATN decoding).
type Dispatcher struct {
	Cfg    *config.Config
	Engine *handshake.Engine
	Role   *role.Machine
	Store  config.Store
	// Out is the host output stream; command responses and bus-read data
	// are written here.
	Out io.Writer
	// Cancel is polled by long read loops between bytes (spec.md §5
	// cooperative cancellation); nil means never cancel.
	Cancel func() bool
	// Reboot resets the CPU, optionally into the bootloader. It is an
	// external collaborator (spec.md §1); nil is a safe no-op, for hosted
	// test runs that have no real CPU to reset.
	Reboot func(dfu bool)
	// Sleep is used for the ~3s farewell delay before ++rst/++dfu; it
	// defaults to time.Sleep but is overridable so tests don't block.
	Sleep func(d time.Duration)
}

// New returns a Dispatcher; Sleep defaults to time.Sleep.
func New(cfg *config.Config, eng *handshake.Engine, r *role.Machine, store config.Store, out io.Writer) *Dispatcher {
	return &Dispatcher{Cfg: cfg, Engine: eng, Role: r, Store: store, Out: out, Sleep: time.Sleep}
}

// Dispatch looks up name and invokes its handler with arg, the argument
// text (empty for a query). Unknown commands are a silent no-op unless
// Debug is set, per spec.md §6 "errors are silent except when debug is
// true".
func (d *Dispatcher) Dispatch(name, arg string) {
	e, ok := lookup(name)
	if !ok {
		if d.Cfg.Debug {
			d.println("Unrecognized command.")
		}
		return
	}
	e.fn(d, arg)
}

func (d *Dispatcher) println(s string) {
	if d.Out == nil {
		return
	}
	_, _ = io.WriteString(d.Out, s+"\n")
}

func (d *Dispatcher) printlnInt(n int) {
	d.println(fmt.Sprintf("%d", n))
}

func (d *Dispatcher) printlnBool(b bool) {
	if b {
		d.printlnInt(1)
	} else {
		d.printlnInt(0)
	}
}

// reportBusErr silently swallows err unless Debug is set, per spec.md §7:
// "bus timeouts emit a diagnostic only in debug builds."
func (d *Dispatcher) reportBusErr(op string, err error) {
	if err == nil {
		return
	}
	if d.Cfg.Debug {
		d.println(op + ": timeout")
	}
}

// ChunkData dispatches a data-line payload to the bus, per spec.md §4.E:
// address the partner, write the payload with EOS/EOI framing, and
// (controller mode, autoread) stream back a response.
func (d *Dispatcher) ChunkData(payload []byte) {
	if d.Cfg.ControllerMode {
		if err := d.Engine.AddressPartnerListenSelfTalk(); err != nil {
			d.reportBusErr("write", err)
			return
		}
	}
	eos := d.Cfg.EOSString()
	if d.Cfg.EOS != config.EOSNUL {
		if len(payload) > 0 {
			if err := d.Engine.WriteData(payload, false); err != nil {
				d.reportBusErr("write", err)
				return
			}
		}
		if len(eos) > 0 {
			if err := d.Engine.WriteData(eos, d.Cfg.EOIUse); err != nil {
				d.reportBusErr("write", err)
				return
			}
		}
	} else if len(payload) > 0 {
		if err := d.Engine.WriteData(payload, d.Cfg.EOIUse); err != nil {
			d.reportBusErr("write", err)
			return
		}
	}
	d.Role.SetControls(role.CIDS)

	if d.Cfg.ControllerMode && d.Cfg.Autoread {
		if err := d.Engine.Read(handshake.ReadEOI, 0, d.Cfg.EOTEnable, d.Cfg.EOTChar, d.Out, d.Cancel); err != nil {
			d.reportBusErr("read", err)
		}
	}
}

// controllerAssign runs the controller-assignment sequence of spec.md
// §4.E: assert REN, pulse IFC for 200ms, send DCL.
func (d *Dispatcher) controllerAssign() {
	d.Role.SetControls(role.CINI)
	d.Engine.T.AssertSignal(bus.REN)
	d.pulseIFC()
	_ = d.Engine.WriteCmd(handshake.CmdDCL)
	d.Role.SetControls(role.CIDS)
}

func (d *Dispatcher) pulseIFC() {
	d.Engine.T.AssertSignal(bus.IFC)
	sleep := d.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	sleep(200 * time.Millisecond)
	d.Engine.T.UnassertSignal(bus.IFC)
}

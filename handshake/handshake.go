// Copyright 2024 The gpibctl Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package handshake implements the GPIB three-wire byte-level handshake
// (spec.md §4.C): gpib_write/gpib_read_byte, the command-byte write helper,
// the high-level streaming read, and serial poll. Every spin loop here is
// bounded by the configured per-byte timeout and kicks the watchdog each
// iteration, per spec.md §5.
package handshake

import (
	"errors"
	"io"

	"gpibctl/bus"
	"gpibctl/config"
	"gpibctl/role"
	"gpibctl/timebase"
)

// ErrTimeout is returned when a spin loop exceeds the configured per-byte
// timeout. It is the only error kind this package produces, per spec.md §7.
var ErrTimeout = errors.New("handshake: timeout")

// GPIB bus command byte values, per spec.md §4.C.
const (
	CmdGTL = 0x01 // Go To Local
	CmdSDC = 0x04 // Selected Device Clear
	CmdGET = 0x08 // Group Execute Trigger
	CmdLLO = 0x11 // Local Lockout
	CmdDCL = 0x14 // Device Clear
	CmdSPE = 0x18 // Serial Poll Enable
	CmdSPD = 0x19 // Serial Poll Disable
	CmdLAD = 0x20 // Listen Address base
	CmdUNL = 0x3F // Unlisten
	CmdTAD = 0x40 // Talk Address base
	CmdUNT = 0x5F // Untalk
)

// ReadMode selects the termination rule for the high-level Read loop.
type ReadMode int

const (
	// ReadEOI stops after the byte whose EOI was asserted.
	ReadEOI ReadMode = iota
	// ReadEOS stops after (and does not emit) the first byte equal to the
	// configured EOS character.
	ReadEOS
	// ReadTimeoutDriven stops on the first per-byte timeout; not an error.
	ReadTimeoutDriven
)

// Engine is the byte-level handshake engine. It holds no transceiver state
// of its own; the role Machine it is built with owns the lines.
type Engine struct {
	T     bus.Transceiver
	Role  *role.Machine
	Clock timebase.Clock
	Cfg   *config.Config
}

// New builds an Engine over the given collaborators.
func New(t bus.Transceiver, r *role.Machine, clk timebase.Clock, cfg *config.Config) *Engine {
	return &Engine{T: t, Role: r, Clock: clk, Cfg: cfg}
}

func (e *Engine) timeoutMS() uint32 {
	return e.Cfg.TimeoutMS
}

// waitFor spins until pred() is true or the per-byte timeout elapses,
// kicking the watchdog every iteration.
func (e *Engine) waitFor(pred func() bool) error {
	t0 := e.Clock.NowMS()
	delta := e.timeoutMS()
	for !pred() {
		e.Clock.RestartWDT()
		if timebase.Elapsed(e.Clock.NowMS(), t0, delta) {
			return ErrTimeout
		}
	}
	return nil
}

// Write performs the byte-level GPIB send protocol of spec.md §4.C for each
// byte of data. The caller must have already transitioned Role to TAS or
// CMS and put the transceiver in Send mode (role.SetControls does both).
//
// On timeout the data lines are floated, device_talk/device_srq are
// cleared directly (spec.md §4.C), and ErrTimeout is returned.
func (e *Engine) Write(data []byte, useEOI bool) error {
	if len(data) == 0 {
		panic("handshake: Write called with zero-length data")
	}
	for i, b := range data {
		// 1. Wait until listeners are ready for a new byte.
		if err := e.waitFor(func() bool { return !e.T.ReadSignal(bus.NRFD) }); err != nil {
			e.T.DIOFloat()
			e.clearTalkFlags()
			return err
		}
		// 2. Wait until listeners have not yet accepted the previous byte
		// (true initially as well).
		if err := e.waitFor(func() bool { return e.T.ReadSignal(bus.NDAC) }); err != nil {
			e.T.DIOFloat()
			e.clearTalkFlags()
			return err
		}
		// 3. Place data on DIO.
		e.T.DIOWrite(b)
		// 4. Assert EOI on the last byte if requested.
		if i == len(data)-1 && useEOI {
			e.T.AssertSignal(bus.EOI)
		}
		// 5. Wait until listeners have committed to reading.
		if err := e.waitFor(func() bool { return e.T.ReadSignal(bus.NRFD) }); err != nil {
			e.T.DIOFloat()
			e.clearTalkFlags()
			return err
		}
		// 6. Assert DAV: data valid.
		e.T.AssertSignal(bus.DAV)
		// 7. Wait until all listeners have accepted.
		if err := e.waitFor(func() bool { return !e.T.ReadSignal(bus.NDAC) }); err != nil {
			e.T.UnassertSignal(bus.DAV)
			e.T.DIOFloat()
			e.clearTalkFlags()
			return err
		}
		// 8. Unassert DAV.
		e.T.UnassertSignal(bus.DAV)
	}
	if useEOI {
		e.T.UnassertSignal(bus.EOI)
	}
	return nil
}

// clearTalkFlags clears device_talk/device_srq on a send timeout, per
// spec.md §4.C.
func (e *Engine) clearTalkFlags() {
	e.Cfg.DeviceTalk = false
	e.Cfg.DeviceSRQ = false
}

// clearListenFlag clears device_listen on a receive timeout, per spec.md
// §4.C.
func (e *Engine) clearListenFlag() {
	e.Cfg.DeviceListen = false
}

// WriteCmd raises ATN by transitioning through role.CCMS, writes bytes with
// no EOI, and returns to role.CIDS — this is gpib_cmd/gpib_cmd_m from
// spec.md §4.C. ATN is therefore never a direct parameter of the byte
// loop: it is entirely a function of which role state Write is called in.
func (e *Engine) WriteCmd(bytes ...byte) error {
	e.Role.SetControls(role.CCMS)
	err := e.Write(bytes, false)
	e.Role.SetControls(role.CIDS)
	return err
}

// ReadByte performs the byte-level GPIB receive protocol of spec.md §4.C.
// The caller must have already transitioned Role to LAS or DLAS and put the
// transceiver in Recv mode. On timeout device_listen is cleared directly
// before ErrTimeout is returned.
func (e *Engine) ReadByte() (b byte, eoi bool, err error) {
	e.T.AssertSignal(bus.NDAC)
	e.T.UnassertSignal(bus.NRFD)
	if err = e.waitFor(func() bool { return e.T.ReadSignal(bus.DAV) }); err != nil {
		e.clearListenFlag()
		return 0, false, err
	}
	e.T.AssertSignal(bus.NRFD)
	b = e.T.DIORead()
	eoi = e.T.ReadSignal(bus.EOI)
	e.T.UnassertSignal(bus.NDAC)
	if err = e.waitFor(func() bool { return !e.T.ReadSignal(bus.DAV) }); err != nil {
		e.clearListenFlag()
		return b, eoi, err
	}
	e.T.AssertSignal(bus.NDAC)
	return b, eoi, nil
}

// AddressSelfListenPartnerTalk sends UNT, UNL, self+LAD, partner+TAD with
// ATN asserted, preparing the bus for a controller-mode read.
func (e *Engine) AddressSelfListenPartnerTalk() error {
	return e.WriteCmd(
		CmdUNT,
		CmdUNL,
		byte(CmdLAD+e.Cfg.MyAddress),
		byte(CmdTAD+e.Cfg.PartnerAddress),
	)
}

// AddressPartnerListenSelfTalk sends UNT, UNL, partner+LAD, self+TAD with
// ATN asserted, preparing the bus for a controller-mode write.
func (e *Engine) AddressPartnerListenSelfTalk() error {
	return e.WriteCmd(
		CmdUNT,
		CmdUNL,
		byte(CmdLAD+e.Cfg.PartnerAddress),
		byte(CmdTAD+e.Cfg.MyAddress),
	)
}

// Read performs the high-level streaming bus read of spec.md §4.C: if in
// controller mode it first addresses itself as listener and the partner as
// talker, then reads bytes until mode's termination rule fires, streaming
// each to w. cancel is polled between bytes for cooperative cancellation
// (spec.md §5): if it returns true the loop aborts, leaving the bus in
// LAS/IDS, and returns nil.
func (e *Engine) Read(mode ReadMode, eosChar byte, eotEnable bool, eotChar byte, w io.Writer, cancel func() bool) error {
	if e.Cfg.ControllerMode {
		if err := e.AddressSelfListenPartnerTalk(); err != nil {
			return err
		}
		e.Role.SetControls(role.CLAS)
	}
	for {
		if cancel != nil && cancel() {
			e.Role.SetControls(role.CIDS)
			return nil
		}
		b, eoi, err := e.ReadByte()
		if err != nil {
			if mode == ReadTimeoutDriven && errors.Is(err, ErrTimeout) {
				break
			}
			if e.Cfg.ControllerMode {
				e.Role.SetControls(role.CIDS)
			}
			return err
		}
		switch mode {
		case ReadEOS:
			if b == eosChar {
				goto done
			}
			if _, werr := w.Write([]byte{b}); werr != nil {
				return werr
			}
		default:
			if _, werr := w.Write([]byte{b}); werr != nil {
				return werr
			}
			if mode == ReadEOI && eoi {
				goto done
			}
		}
	}
done:
	if e.Cfg.ControllerMode {
		e.Role.SetControls(role.CIDS)
	}
	if eotEnable {
		_, _ = w.Write([]byte{eotChar})
	}
	return nil
}

// SerialPoll sends SPE, addresses the partner as talker, reads one status
// byte, then sends SPD and restores the idle role.
func (e *Engine) SerialPoll() (byte, error) {
	if err := e.WriteCmd(CmdSPE, CmdUNT, byte(CmdTAD+e.Cfg.PartnerAddress)); err != nil {
		return 0, err
	}
	e.Role.SetControls(role.CLAS)
	b, _, err := e.ReadByte()
	e.Role.SetControls(role.CIDS)
	if err != nil {
		return 0, err
	}
	if werr := e.WriteCmd(CmdSPD); werr != nil {
		return b, werr
	}
	return b, nil
}

// WriteData switches the role to CTAS and sends a data chunk (package
// dispatch's chunk_data), applying EOI on the last byte per useEOI.
func (e *Engine) WriteData(data []byte, useEOI bool) error {
	e.Role.SetControls(role.CTAS)
	return e.Write(data, useEOI)
}

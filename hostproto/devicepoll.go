// Copyright 2024 The gpibctl Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hostproto

import (
	"io"

	"gpibctl/bus"
	"gpibctl/config"
	"gpibctl/handshake"
	"gpibctl/role"
)

// DevicePoll drives the device-mode ATN decoder of spec.md §4.F: it reacts
// to bus traffic addressed to this adapter while it is not controller-in-
// charge. It is run from the main loop once per iteration, never from an
// interrupt handler.
type DevicePoll struct {
	T      bus.Transceiver
	Role   *role.Machine
	Engine *handshake.Engine
	Cfg    *config.Config
	// Out receives bytes captured while device_listen is set.
	Out io.Writer
}

// NewDevicePoll returns a DevicePoll over the given collaborators.
func NewDevicePoll(t bus.Transceiver, r *role.Machine, eng *handshake.Engine, cfg *config.Config, out io.Writer) *DevicePoll {
	return &DevicePoll{T: t, Role: r, Engine: eng, Cfg: cfg, Out: out}
}

// Poll runs one iteration. It is a no-op unless ControllerMode is false.
func (p *DevicePoll) Poll() {
	if p.Cfg.ControllerMode {
		return
	}
	if p.T.ReadSignal(bus.IFC) {
		p.Cfg.ResetVolatile()
		return
	}
	if p.T.ReadSignal(bus.ATN) {
		p.handleCommandByte()
		return
	}
	if p.Cfg.DeviceListen {
		p.captureOneByte()
		return
	}
	if p.Cfg.DeviceTalk {
		if p.Cfg.DeviceSRQ {
			p.Role.SetControls(role.DTAS)
			_ = p.Engine.Write([]byte{p.Cfg.StatusByte}, true)
			p.Role.SetControls(role.DIDS)
			p.Cfg.DeviceSRQ = false
		}
	}
}

func (p *DevicePoll) handleCommandByte() {
	p.Role.SetControls(role.DLAS)
	b, _, err := p.Engine.ReadByte()
	p.Role.SetControls(role.DIDS)
	if err != nil {
		return
	}

	myTalk := byte(handshake.CmdTAD + p.Cfg.MyAddress)
	myListen := byte(handshake.CmdLAD + p.Cfg.MyAddress)

	switch {
	case b == myTalk:
		p.Cfg.DeviceTalk = true
		p.Cfg.DeviceListen = false
	case b >= handshake.CmdTAD && b <= handshake.CmdTAD+30:
		p.Cfg.DeviceTalk = false
		p.Cfg.DeviceListen = false
	case b == myListen:
		p.Cfg.DeviceListen = true
		p.Cfg.DeviceTalk = false
	case b == handshake.CmdUNL:
		p.Cfg.DeviceListen = false
	case b == handshake.CmdUNT:
		p.Cfg.DeviceTalk = false
	case b == handshake.CmdSPE:
		// serial poll enable: status_byte is sent on the next talk cycle.
	case b == handshake.CmdSPD:
		// serial poll disable: nothing to clear beyond the talk cycle above.
	case b == handshake.CmdDCL, b == handshake.CmdSDC:
		p.Cfg.DeviceTalk = false
		p.Cfg.DeviceListen = false
		p.Cfg.StatusByte = 0
	case b == handshake.CmdLLO, b == handshake.CmdGTL, b == handshake.CmdGET:
		// local lockout / go-to-local / group-execute-trigger: acknowledged,
		// no device-side flag changes beyond what the real instrument would do.
	}
}

func (p *DevicePoll) captureOneByte() {
	p.Role.SetControls(role.DLAS)
	b, _, err := p.Engine.ReadByte()
	p.Role.SetControls(role.DIDS)
	if err != nil {
		return
	}
	if p.Out != nil {
		_, _ = p.Out.Write([]byte{b})
	}
}

// Copyright 2024 The gpibctl Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dispatch

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"gpibctl/bus"
	"gpibctl/config"
	"gpibctl/handshake"
	"gpibctl/role"
)

// Every handler below follows the query/set contract of spec.md §4.E: an
// empty arg prints the current value, a non-empty arg parses and sets it.
// Bus-facing commands that only make sense in one role are a silent no-op
// in the other, whether or not ++debug is set.

func cmdAddr(d *Dispatcher, arg string) {
	if arg == "" {
		d.printlnInt(d.Cfg.PartnerAddress)
		return
	}
	d.Cfg.PartnerAddress = clampAddr(atoiOrZero(arg))
}

func cmdAuto(d *Dispatcher, arg string) {
	if arg == "" {
		d.printlnBool(d.Cfg.Autoread)
		return
	}
	d.Cfg.Autoread = atoiOrZero(arg) != 0
}

func cmdClr(d *Dispatcher, _ string) {
	if !d.Cfg.ControllerMode {
		return
	}
	if err := d.Engine.AddressPartnerListenSelfTalk(); err != nil {
		d.reportBusErr("clr", err)
		return
	}
	d.Role.SetControls(role.CCMS)
	d.reportBusErr("clr", d.Engine.Write([]byte{handshake.CmdSDC}, false))
	d.Role.SetControls(role.CIDS)
}

func cmdDebug(d *Dispatcher, arg string) {
	if arg == "" {
		d.printlnBool(d.Cfg.Debug)
		if d.Cfg.Debug {
			d.println("tx overflow: " + strconv.Itoa(int(d.Cfg.TxOverflowCount)))
			if d.Cfg.LastFault != "" {
				d.println("last fault: " + d.Cfg.LastFault)
			}
		}
		return
	}
	d.Cfg.Debug = atoiOrZero(arg) != 0
}

func cmdDFU(d *Dispatcher, _ string) {
	d.farewellAndReboot(true)
}

func cmdRst(d *Dispatcher, _ string) {
	d.farewellAndReboot(false)
}

func (d *Dispatcher) farewellAndReboot(dfu bool) {
	d.println("Adapter rebooting.")
	sleep := d.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	sleep(3 * time.Second)
	if d.Reboot != nil {
		d.Reboot(dfu)
	}
}

func cmdEOI(d *Dispatcher, arg string) {
	if arg == "" {
		d.printlnBool(d.Cfg.EOIUse)
		return
	}
	d.Cfg.EOIUse = atoiOrZero(arg) != 0
}

func cmdEOS(d *Dispatcher, arg string) {
	if arg == "" {
		d.printlnInt(int(d.Cfg.EOS))
		return
	}
	n := atoiOrZero(arg)
	if n < 0 {
		n = 0
	}
	if n > int(config.EOSCustom) {
		n = int(config.EOSCustom)
	}
	d.Cfg.EOS = config.EOSCode(n)
}

func cmdEOTChar(d *Dispatcher, arg string) {
	if arg == "" {
		d.printlnInt(int(d.Cfg.EOTChar))
		return
	}
	d.Cfg.EOTChar = byte(atoiOrZero(arg))
}

func cmdEOTEnable(d *Dispatcher, arg string) {
	if arg == "" {
		d.printlnBool(d.Cfg.EOTEnable)
		return
	}
	d.Cfg.EOTEnable = atoiOrZero(arg) != 0
}

func cmdHelp(d *Dispatcher, _ string) {
	for _, e := range All() {
		d.println(e.Name + "\t" + e.Help)
	}
}

func cmdIFC(d *Dispatcher, _ string) {
	if !d.Cfg.ControllerMode {
		return
	}
	d.pulseIFC()
}

func cmdLLO(d *Dispatcher, _ string) {
	if !d.Cfg.ControllerMode {
		return
	}
	d.reportBusErr("llo", d.Engine.WriteCmd(handshake.CmdLLO))
}

func cmdLOC(d *Dispatcher, _ string) {
	if !d.Cfg.ControllerMode {
		return
	}
	if err := d.Engine.AddressPartnerListenSelfTalk(); err != nil {
		d.reportBusErr("loc", err)
		return
	}
	d.Role.SetControls(role.CCMS)
	d.reportBusErr("loc", d.Engine.Write([]byte{handshake.CmdGTL}, false))
	d.Role.SetControls(role.CIDS)
}

func cmdLON(d *Dispatcher, arg string) {
	if arg == "" {
		d.printlnBool(d.Cfg.ListenOnly)
		return
	}
	if d.Cfg.ControllerMode {
		// Listen-only device mode makes no sense while we are
		// controller-in-charge; rejected silently (spec.md §9 Open
		// Question 3).
		return
	}
	d.Cfg.ListenOnly = atoiOrZero(arg) != 0
}

func cmdMode(d *Dispatcher, arg string) {
	if arg == "" {
		if d.Cfg.ControllerMode {
			d.printlnInt(1)
		} else {
			d.printlnInt(0)
		}
		return
	}
	wantController := atoiOrZero(arg) != 0
	if wantController == d.Cfg.ControllerMode {
		return
	}
	d.Cfg.ControllerMode = wantController
	d.Cfg.ResetVolatile()
	if wantController {
		d.controllerAssign()
	} else {
		d.Role.SetControls(role.DINI)
		d.Role.SetControls(role.DIDS)
	}
}

func cmdRead(d *Dispatcher, arg string) {
	if !d.Cfg.ControllerMode {
		return
	}
	mode := handshake.ReadEOI
	var eosChar byte
	switch {
	case arg == "":
		mode = handshake.ReadEOI
	case strings.EqualFold(arg, "eoi"):
		mode = handshake.ReadEOI
	default:
		if b, err := hex.DecodeString(strings.TrimPrefix(arg, "#")); err == nil && len(b) == 1 {
			mode = handshake.ReadEOS
			eosChar = b[0]
		} else if n := atoiOrZero(arg); n >= 0 && n <= 0xFF {
			mode = handshake.ReadEOS
			eosChar = byte(n)
		}
	}
	err := d.Engine.Read(mode, eosChar, d.Cfg.EOTEnable, d.Cfg.EOTChar, d.Out, d.Cancel)
	d.reportBusErr("read", err)
}

func cmdReadTimeout(d *Dispatcher, arg string) {
	if arg == "" {
		d.printlnInt(int(d.Cfg.TimeoutMS))
		return
	}
	d.Cfg.TimeoutMS = config.ClampTimeout(atoiOrZero(arg))
}

func cmdSaveCfg(d *Dispatcher, arg string) {
	if arg != "" && atoiOrZero(arg) == 0 {
		return
	}
	if d.Store == nil {
		return
	}
	if err := d.Store.Save(d.Cfg); err != nil && d.Cfg.Debug {
		d.println("savecfg: " + err.Error())
	}
}

func cmdSpoll(d *Dispatcher, _ string) {
	if !d.Cfg.ControllerMode {
		return
	}
	status, err := d.Engine.SerialPoll()
	if err != nil {
		d.reportBusErr("spoll", err)
		return
	}
	d.printlnInt(int(status))
}

func cmdSrq(d *Dispatcher, _ string) {
	if !d.Cfg.ControllerMode {
		return
	}
	d.printlnBool(d.Engine.T.ReadSignal(bus.SRQ))
}

func cmdStatus(d *Dispatcher, arg string) {
	if arg == "" {
		d.printlnInt(int(d.Cfg.StatusByte))
		return
	}
	d.Cfg.StatusByte = byte(atoiOrZero(arg))
}

func cmdStrip(d *Dispatcher, arg string) {
	if arg == "" {
		d.printlnBool(d.Cfg.Strip)
		return
	}
	d.Cfg.Strip = atoiOrZero(arg) != 0
}

func cmdTrg(d *Dispatcher, _ string) {
	if !d.Cfg.ControllerMode {
		return
	}
	if err := d.Engine.AddressPartnerListenSelfTalk(); err != nil {
		d.reportBusErr("trg", err)
		return
	}
	d.Role.SetControls(role.CCMS)
	d.reportBusErr("trg", d.Engine.Write([]byte{handshake.CmdGET}, false))
	d.Role.SetControls(role.CIDS)
}

func cmdVer(d *Dispatcher, _ string) {
	d.println(FirmwareVersion)
}

func clampAddr(n int) int {
	if n < 0 {
		return 0
	}
	if n > 30 {
		return 30
	}
	return n
}

// Copyright 2024 The gpibctl Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package handshake

import (
	"bytes"
	"errors"
	"testing"

	"gpibctl/bus"
	"gpibctl/config"
	"gpibctl/role"
	"gpibctl/timebase"
)

// idealListener returns a bus.Fake.Respond function simulating a
// cooperating listener: NRFD alternates released/asserted and NDAC
// alternates asserted/unasserted on successive reads, matching the two
// NRFD waits (ready, then committed) and the two NDAC waits
// (accept-pending, then accepted) Write performs per byte.
func idealListener() func(bus.Signal) (bool, bool) {
	nrfdCalls, ndacCalls := 0, 0
	return func(s bus.Signal) (bool, bool) {
		switch s {
		case bus.NRFD:
			nrfdCalls++
			return nrfdCalls%2 == 0, true
		case bus.NDAC:
			ndacCalls++
			return ndacCalls%2 == 1, true
		default:
			return false, false
		}
	}
}

func newTestEngine(t *testing.T) (*Engine, *bus.Fake, *config.Config) {
	t.Helper()
	fake := &bus.Fake{}
	cfg := &config.Config{TimeoutMS: 50}
	r := role.New(fake)
	clk := &timebase.Fake{}
	return New(fake, r, clk, cfg), fake, cfg
}

func TestWriteAssertsEOIOnlyOnLastByte(t *testing.T) {
	eng, fake, _ := newTestEngine(t)
	fake.Respond = idealListener()

	if err := eng.Write([]byte{0x41, 0x42, 0x43}, true); err != nil {
		t.Fatalf("Write: %v", err)
	}
	asserts, unasserts := 0, 0
	for _, ev := range fake.History {
		if ev.Signal != bus.EOI {
			continue
		}
		switch ev.State {
		case "assert":
			asserts++
		case "unassert":
			unasserts++
		}
	}
	if asserts != 1 || unasserts != 1 {
		t.Fatalf("EOI asserted %d times, unasserted %d times, want exactly one of each", asserts, unasserts)
	}
	if fake.IsAsserted(bus.EOI) {
		t.Fatal("EOI left asserted after Write returned")
	}
}

func TestWriteNeverAssertsEOIWhenNotRequested(t *testing.T) {
	eng, fake, _ := newTestEngine(t)
	fake.Respond = idealListener()

	if err := eng.Write([]byte{0x41}, false); err != nil {
		t.Fatalf("Write: %v", err)
	}
	for _, ev := range fake.History {
		if ev.Signal == bus.EOI {
			t.Fatalf("EOI touched (%s) when useEOI was false", ev.State)
		}
	}
}

func TestWriteTimesOutWhenListenerNeverReady(t *testing.T) {
	fake := &bus.Fake{}
	cfg := &config.Config{TimeoutMS: 5}
	r := role.New(fake)
	clk := &timebase.Fake{}
	eng := New(fake, r, clk, cfg)

	fake.Respond = func(s bus.Signal) (bool, bool) {
		clk.Advance(1)
		return true, true // NRFD stays asserted: listener is never ready.
	}
	err := eng.Write([]byte{0x41}, false)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if clk.Kicks() == 0 {
		t.Fatal("watchdog was never kicked while waiting")
	}
	if fake.IsAsserted(bus.DAV) {
		t.Fatal("DAV left asserted after a timed-out write")
	}
}

func TestWriteTimeoutClearsTalkFlags(t *testing.T) {
	fake := &bus.Fake{}
	cfg := &config.Config{TimeoutMS: 5, DeviceTalk: true, DeviceSRQ: true}
	r := role.New(fake)
	clk := &timebase.Fake{}
	eng := New(fake, r, clk, cfg)

	fake.Respond = func(s bus.Signal) (bool, bool) {
		clk.Advance(1)
		return true, true
	}
	if err := eng.Write([]byte{0x41}, false); !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if cfg.DeviceTalk || cfg.DeviceSRQ {
		t.Fatalf("device_talk=%v device_srq=%v after send timeout, want both cleared", cfg.DeviceTalk, cfg.DeviceSRQ)
	}
}

func TestReadByteTimeoutClearsListenFlag(t *testing.T) {
	fake := &bus.Fake{}
	cfg := &config.Config{TimeoutMS: 5, DeviceListen: true}
	r := role.New(fake)
	clk := &timebase.Fake{}
	eng := New(fake, r, clk, cfg)

	fake.Respond = func(s bus.Signal) (bool, bool) {
		clk.Advance(1)
		return false, true // DAV never asserted: no byte ever arrives.
	}
	if _, _, err := eng.ReadByte(); !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if cfg.DeviceListen {
		t.Fatal("device_listen left set after a receive timeout")
	}
}

func TestWriteCmdRaisesATNOnlyForTheCommandWindow(t *testing.T) {
	eng, fake, _ := newTestEngine(t)
	fake.Respond = idealListener()

	if err := eng.WriteCmd(CmdUNT, CmdUNL); err != nil {
		t.Fatalf("WriteCmd: %v", err)
	}

	var atnAssertIdx, atnUnassertIdx, firstDAVIdx, lastDAVIdx = -1, -1, -1, -1
	for i, ev := range fake.History {
		switch {
		case ev.Signal == bus.ATN && ev.State == "assert" && atnAssertIdx == -1:
			atnAssertIdx = i
		case ev.Signal == bus.ATN && ev.State == "unassert":
			atnUnassertIdx = i
		case ev.Signal == bus.DAV && ev.State == "assert":
			if firstDAVIdx == -1 {
				firstDAVIdx = i
			}
			lastDAVIdx = i
		}
	}
	if atnAssertIdx == -1 || atnUnassertIdx == -1 {
		t.Fatalf("ATN not both asserted and unasserted: history %+v", fake.History)
	}
	if firstDAVIdx == -1 {
		t.Fatal("command bytes never asserted DAV")
	}
	if !(atnAssertIdx < firstDAVIdx && lastDAVIdx < atnUnassertIdx) {
		t.Fatalf("ATN window did not bracket the DAV transitions: assert=%d first DAV=%d last DAV=%d unassert=%d",
			atnAssertIdx, firstDAVIdx, lastDAVIdx, atnUnassertIdx)
	}
	if fake.IsAsserted(bus.ATN) {
		t.Fatal("ATN left asserted after WriteCmd returned")
	}
}

func TestReadByteReportsEOI(t *testing.T) {
	eng, fake, _ := newTestEngine(t)
	davCalls := 0
	fake.Respond = func(s bus.Signal) (bool, bool) {
		switch s {
		case bus.DAV:
			davCalls++
			return davCalls == 1, true // first query sees it asserted, second sees it released
		case bus.EOI:
			return true, true
		default:
			return false, false
		}
	}
	fake.DIOWrite(0x58)

	b, eoi, err := eng.ReadByte()
	if err != nil {
		t.Fatalf("ReadByte: %v", err)
	}
	if b != 0x58 {
		t.Fatalf("byte = %#x, want 0x58", b)
	}
	if !eoi {
		t.Fatal("eoi = false, want true")
	}
}

func TestReadStopsOnEOIInReadEOIMode(t *testing.T) {
	fake := &bus.Fake{}
	cfg := &config.Config{TimeoutMS: 50, ControllerMode: false}
	r := role.New(fake)
	clk := &timebase.Fake{}
	eng := New(fake, r, clk, cfg)

	data := []byte{0x31, 0x32, 0x33}
	idx := -1
	davCalls := 0
	fake.Respond = func(s bus.Signal) (bool, bool) {
		switch s {
		case bus.DAV:
			davCalls++
			if davCalls%2 == 1 {
				idx++
				fake.DIOWrite(data[idx])
				return true, true
			}
			return false, true
		case bus.EOI:
			return idx == len(data)-1, true
		default:
			return false, false
		}
	}

	var out bytes.Buffer
	if err := eng.Read(ReadEOI, 0, false, 0, &out, nil); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if out.String() != string(data) {
		t.Fatalf("output = %q, want %q", out.String(), data)
	}
}

func TestReadCancelLeavesRoleIdle(t *testing.T) {
	eng, fake, cfg := newTestEngine(t)
	cfg.ControllerMode = false
	called := false
	cancel := func() bool { called = true; return true }

	if err := eng.Read(ReadTimeoutDriven, 0, false, 0, &bytes.Buffer{}, cancel); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !called {
		t.Fatal("cancel was never polled")
	}
	if fake.IsAsserted(bus.DAV) || fake.IsAsserted(bus.NDAC) {
		t.Fatal("bus lines left driven after an immediate cancel")
	}
}

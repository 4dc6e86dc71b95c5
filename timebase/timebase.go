// Copyright 2024 The gpibctl Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package timebase provides the wrap-safe monotonic clocks and watchdog
// kick hook that every spin loop in package handshake relies on.
package timebase

import (
	"sync/atomic"
	"time"
)

// Clock is the abstract time/watchdog collaborator consumed by the rest of
// the core. It is implemented by System for real use and by a fake in
// tests so that timeout behavior can be exercised deterministically.
type Clock interface {
	// NowMS returns a millisecond counter that wraps at 1<<32; monotone
	// within the wrap window.
	NowMS() uint32
	// NowUS returns a microsecond counter that wraps at 1<<16; only used for
	// short delays (IFC pulse width and the like).
	NowUS() uint16
	// RestartWDT clears the watchdog. Called from every spin-loop
	// iteration in package handshake.
	RestartWDT()
}

// Elapsed reports whether at least delta milliseconds have passed since t0,
// using wrap-safe unsigned subtraction as spec.md §9 requires.
func Elapsed(now, t0, delta uint32) bool {
	return now-t0 >= delta
}

// System is a Clock backed by the Go runtime's monotonic clock and an
// injectable watchdog kick function.
//
// The zero value is usable; Kick defaults to a no-op.
type System struct {
	start time.Time
	// Kick is invoked by RestartWDT. Set it to the board's real watchdog
	// kick function; left nil it is a no-op, which is fine for hosted
	// (non-bare-metal) runs of this core.
	Kick func()
}

// NewSystem returns a System clock anchored to the current time.
func NewSystem(kick func()) *System {
	return &System{start: time.Now(), Kick: kick}
}

// NowMS implements Clock.
func (s *System) NowMS() uint32 {
	return uint32(time.Since(s.start).Milliseconds())
}

// NowUS implements Clock.
func (s *System) NowUS() uint16 {
	return uint16(time.Since(s.start).Microseconds())
}

// RestartWDT implements Clock.
func (s *System) RestartWDT() {
	if s.Kick != nil {
		s.Kick()
	}
}

// Fake is a Clock for tests: NowMS is an explicit counter advanced by the
// test, RestartWDT counts kicks so tests can assert the handshake engine
// kicks the watchdog on every spin iteration.
type Fake struct {
	ms    uint32
	kicks int64
}

// Set sets the fake clock's current millisecond value.
func (f *Fake) Set(ms uint32) {
	atomic.StoreUint32(&f.ms, ms)
}

// Advance moves the fake clock forward by delta milliseconds and returns the
// new value.
func (f *Fake) Advance(delta uint32) uint32 {
	return atomic.AddUint32(&f.ms, delta)
}

// NowMS implements Clock.
func (f *Fake) NowMS() uint32 {
	return atomic.LoadUint32(&f.ms)
}

// NowUS implements Clock.
func (f *Fake) NowUS() uint16 {
	return uint16(atomic.LoadUint32(&f.ms) * 1000)
}

// RestartWDT implements Clock.
func (f *Fake) RestartWDT() {
	atomic.AddInt64(&f.kicks, 1)
}

// Kicks returns the number of times RestartWDT has been called.
func (f *Fake) Kicks() int64 {
	return atomic.LoadInt64(&f.kicks)
}

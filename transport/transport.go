// Copyright 2024 The gpibctl Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package transport implements the HostIO external collaborator of
// spec.md §1 and the single-producer-single-consumer byte rings of
// spec.md §5: interrupt handlers (here, a transport's own read goroutine)
// only push to and pop from these FIFOs, never call into package handshake
// or package dispatch directly.
package transport

import (
	"errors"
	"sync/atomic"
)

// ErrFIFOOverflow is returned by Ring.Push when the ring is full. The serial
// and USB host channels log it and drop the byte that did not fit; the
// in-progress host line is not marked invalid, and there is no transmit
// ring, so config.Config.TxOverflowCount is never incremented.
var ErrFIFOOverflow = errors.New("transport: fifo overflow")

// Ring is a fixed-capacity single-producer-single-consumer byte FIFO, the
// hosted stand-in for spec.md §5's interrupt-fed host buffers. head and
// tail are monotonic counters, each written by only one side (tail by
// Push's caller, head by Pop's caller) and read with atomic loads by the
// other, per spec.md §9's "atomic head/tail indices" — avoiding a shared
// fullness counter that both producer and consumer would otherwise
// mutate. A Ring is safe for one concurrent producer and one concurrent
// consumer; it is not safe for multiple producers or multiple consumers.
type Ring struct {
	buf        []byte
	head, tail uint32
}

// NewRing returns a Ring with the given capacity.
func NewRing(capacity int) *Ring {
	return &Ring{buf: make([]byte, capacity)}
}

// Push appends b, returning ErrFIFOOverflow if the ring is full. Push must
// only be called from the producer side.
func (r *Ring) Push(b byte) error {
	tail := atomic.LoadUint32(&r.tail)
	head := atomic.LoadUint32(&r.head)
	if tail-head >= uint32(len(r.buf)) {
		return ErrFIFOOverflow
	}
	r.buf[tail%uint32(len(r.buf))] = b
	atomic.StoreUint32(&r.tail, tail+1)
	return nil
}

// Pop removes and returns the oldest byte; ok is false if the ring is
// empty. Pop must only be called from the consumer side.
func (r *Ring) Pop() (b byte, ok bool) {
	head := atomic.LoadUint32(&r.head)
	tail := atomic.LoadUint32(&r.tail)
	if tail-head == 0 {
		return 0, false
	}
	b = r.buf[head%uint32(len(r.buf))]
	atomic.StoreUint32(&r.head, head+1)
	return b, true
}

// Len reports the number of buffered bytes. Safe to call from either side.
func (r *Ring) Len() int {
	return int(atomic.LoadUint32(&r.tail) - atomic.LoadUint32(&r.head))
}

// HostIO is the abstract host channel of spec.md §1: byte in and byte out;
// millisecond time comes from timebase.Clock, not from HostIO. Concrete
// implementations wrap a real transport
// (USB bulk endpoint, UART) with a background reader goroutine feeding an
// inbound Ring, matching the "interrupt handlers only push/pop" ordering
// rule of spec.md §5.
type HostIO interface {
	// ReadByte pops one byte from the inbound ring; ok is false if none is
	// available. This never blocks — package core's main loop polls it once
	// per iteration, per spec.md §5.
	ReadByte() (b byte, ok bool)
	// HasInput reports whether a byte is available without consuming it, for
	// the cooperative-cancellation check a long bus read performs between
	// bytes (spec.md §5 "Cancellation").
	HasInput() bool
	// Write sends bytes to the host, used for command responses and
	// streamed bus reads.
	Write(p []byte) (n int, err error)
	// Close releases the underlying transport.
	Close() error
}

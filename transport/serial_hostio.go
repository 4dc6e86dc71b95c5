// Copyright 2024 The gpibctl Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package transport

import (
	"log"
	"time"

	serial "github.com/daedaluz/goserial"
)

// SerialHostIO is a HostIO backed by a real serial device (virtual COM
// port or UART) opened through github.com/daedaluz/goserial, the way the
// teacher's hostextra/d2xx package wraps a raw file descriptor behind a
// small Go type rather than reaching for cgo.
type SerialHostIO struct {
	port   *serial.Port
	in     *Ring
	stopCh chan struct{}
}

// OpenSerial opens path (e.g. "/dev/ttyACM0") and starts the background
// reader goroutine that feeds the inbound Ring; inCapacity should match
// config.HostInBufSize.
func OpenSerial(path string, inCapacity int) (*SerialHostIO, error) {
	opts := serial.NewOptions().SetReadTimeout(100 * time.Millisecond)
	port, err := serial.Open(path, opts)
	if err != nil {
		return nil, err
	}
	if err := port.MakeRaw(); err != nil {
		_ = port.Close()
		return nil, err
	}
	s := &SerialHostIO{
		port:   port,
		in:     NewRing(inCapacity),
		stopCh: make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

func (s *SerialHostIO) readLoop() {
	var buf [64]byte
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}
		n, err := s.port.Read(buf[:])
		if err != nil {
			continue
		}
		for i := 0; i < n; i++ {
			if pushErr := s.in.Push(buf[i]); pushErr != nil {
				log.Println("gpibctl: serial host fifo overflow, dropping byte")
			}
		}
	}
}

// ReadByte implements HostIO.
func (s *SerialHostIO) ReadByte() (byte, bool) {
	return s.in.Pop()
}

// HasInput implements HostIO.
func (s *SerialHostIO) HasInput() bool {
	return s.in.Len() > 0
}

// Write implements HostIO.
func (s *SerialHostIO) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

// Close implements HostIO.
func (s *SerialHostIO) Close() error {
	close(s.stopCh)
	return s.port.Close()
}

var _ HostIO = (*SerialHostIO)(nil)

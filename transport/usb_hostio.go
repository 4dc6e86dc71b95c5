// Copyright 2024 The gpibctl Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package transport

import (
	"fmt"
	"log"

	"github.com/google/gousb"
)

// USBHostIO is a HostIO backed by a raw USB bulk in/out endpoint pair,
// opened directly with github.com/google/gousb the way the teacher's
// experimental/host/usbbus package scans the bus with ctx.OpenDevices and
// claims each matching device's default interface — applied here to a
// single adapter's bulk data endpoints instead of a generic multi-device
// bus scan.
type USBHostIO struct {
	ctx    *gousb.Context
	dev    *gousb.Device
	done   func()
	in     *gousb.InEndpoint
	out    *gousb.OutEndpoint
	inRing *Ring
	stopCh chan struct{}
}

// OpenUSB opens the first device matching vendor/product ID and claims its
// default interface's endpoint 0 in/out pair.
func OpenUSB(vendor, product gousb.ID, inCapacity int) (*USBHostIO, error) {
	ctx := gousb.NewContext()
	devs, err := ctx.OpenDevices(func(d *gousb.DeviceDesc) bool {
		return d.Vendor == vendor && d.Product == product
	})
	if err != nil {
		ctx.Close()
		return nil, err
	}
	if len(devs) == 0 {
		ctx.Close()
		return nil, fmt.Errorf("transport: no USB device matching %v:%v", vendor, product)
	}
	dev := devs[0]
	for _, extra := range devs[1:] {
		_ = extra.Close()
	}

	iface, done, err := dev.DefaultInterface()
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, err
	}
	in, err := iface.InEndpoint(0)
	if err != nil {
		done()
		dev.Close()
		ctx.Close()
		return nil, err
	}
	out, err := iface.OutEndpoint(0)
	if err != nil {
		done()
		dev.Close()
		ctx.Close()
		return nil, err
	}
	u := &USBHostIO{
		ctx: ctx, dev: dev, done: done,
		in: in, out: out,
		inRing: NewRing(inCapacity),
		stopCh: make(chan struct{}),
	}
	go u.readLoop()
	return u, nil
}

func (u *USBHostIO) readLoop() {
	buf := make([]byte, 64)
	for {
		select {
		case <-u.stopCh:
			return
		default:
		}
		n, err := u.in.Read(buf)
		if err != nil {
			continue
		}
		for i := 0; i < n; i++ {
			if pushErr := u.inRing.Push(buf[i]); pushErr != nil {
				log.Println("gpibctl: usb host fifo overflow, dropping byte")
			}
		}
	}
}

// ReadByte implements HostIO.
func (u *USBHostIO) ReadByte() (byte, bool) {
	return u.inRing.Pop()
}

// HasInput implements HostIO.
func (u *USBHostIO) HasInput() bool {
	return u.inRing.Len() > 0
}

// Write implements HostIO.
func (u *USBHostIO) Write(p []byte) (int, error) {
	return u.out.Write(p)
}

// Close implements HostIO.
func (u *USBHostIO) Close() error {
	close(u.stopCh)
	u.done()
	err := u.dev.Close()
	u.ctx.Close()
	return err
}

var _ HostIO = (*USBHostIO)(nil)

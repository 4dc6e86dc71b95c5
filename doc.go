// Copyright 2024 The gpibctl Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package gpibctl is for documentation only.
//
// gpibctl is a Prologix-compatible GPIB-USB adapter core: a line-oriented
// host protocol (package hostproto) dispatches commands and data (package
// dispatch) through a GPIB three-wire handshake engine (package handshake)
// governed by a controller/device role state machine (package role), all
// driven by an abstract bus Transceiver (package bus) and host I/O channel
// (package transport).
//
// Wiring
//
// cmd/gpibctl assembles a concrete instance: a bus.Transceiver backed by
// real GPIO pins via periph.io/x/periph, and a transport.HostIO backed by a
// USB CDC virtual COM port (github.com/daedaluz/goserial). Package transport
// also provides a raw USB bulk endpoint HostIO (github.com/google/gousb),
// which cmd/gpibctl does not offer as an option.
//
// Configuration
//
// Persisted adapter configuration (package config) is a 10-byte image at a
// fixed layout, readable and writable through the ++ command set (package
// dispatch) and saved on explicit ++savecfg.
package gpibctl

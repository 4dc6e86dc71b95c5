// Copyright 2024 The gpibctl Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package core wires the six components together and runs the single-
// threaded cooperative main loop of spec.md §5: kick the watchdog, run the
// device-mode poll when not controller, read at most one host byte, feed
// the parser, dispatch a completed line. There is no separate listen-only
// capture path; Config.ListenOnly does not change what the loop runs.
package core

import (
	"gpibctl/bus"
	"gpibctl/config"
	"gpibctl/dispatch"
	"gpibctl/handshake"
	"gpibctl/hostproto"
	"gpibctl/role"
	"gpibctl/timebase"
	"gpibctl/transport"
)

// Core owns one instance of every component and drives the main loop.
type Core struct {
	Cfg    *config.Config
	Clock  timebase.Clock
	Role   *role.Machine
	Engine *handshake.Engine
	Poll   *hostproto.DevicePoll
	Parser *hostproto.Parser
	Disp   *dispatch.Dispatcher
	IO     transport.HostIO
}

// New builds a Core over t (the transceiver), cfg, a persistence store,
// and a host transport. It restores cfg's persisted subset from store
// before returning.
func New(t bus.Transceiver, cfg *config.Config, store config.Store, io transport.HostIO, clk timebase.Clock) *Core {
	if clk == nil {
		clk = timebase.NewSystem(nil)
	}
	if err := store.Load(cfg); err != nil {
		*cfg = *config.Default()
	}

	r := role.New(t)
	eng := handshake.New(t, r, clk, cfg)
	disp := dispatch.New(cfg, eng, r, store, io)
	disp.Cancel = io.HasInput

	c := &Core{
		Cfg:    cfg,
		Clock:  clk,
		Role:   r,
		Engine: eng,
		Poll:   hostproto.NewDevicePoll(t, r, eng, cfg, io),
		Parser: hostproto.NewParser(),
		Disp:   disp,
		IO:     io,
	}
	if cfg.ControllerMode {
		r.SetControls(role.CINI)
		r.SetControls(role.CIDS)
	} else {
		r.SetControls(role.DINI)
		r.SetControls(role.DIDS)
	}
	return c
}

// RunOnce executes one iteration of the main loop: watchdog kick, then
// the device-mode poll (skipped in controller mode), then at most one host
// byte fed to the parser and on to dispatch. ListenOnly is not consulted.
func (c *Core) RunOnce() {
	c.Clock.RestartWDT()

	if !c.Cfg.ControllerMode {
		c.Poll.Poll()
	}

	b, ok := c.IO.ReadByte()
	if !ok {
		return
	}
	line, ok := c.Parser.Feed(b)
	if !ok {
		return
	}
	if !line.Valid {
		return
	}
	if line.IsCommand {
		c.Disp.Dispatch(line.Name, line.Arg)
		return
	}
	c.Disp.ChunkData(line.Data)
}

// Run drives RunOnce in a loop until stop returns true. stop is polled once
// per iteration; a nil stop runs forever.
func (c *Core) Run(stop func() bool) {
	for {
		if stop != nil && stop() {
			return
		}
		c.RunOnce()
	}
}

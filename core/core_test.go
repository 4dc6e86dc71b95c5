// Copyright 2024 The gpibctl Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package core

import (
	"bytes"
	"testing"

	"gpibctl/bus"
	"gpibctl/config"
	"gpibctl/timebase"
	"gpibctl/transport"
)

// fakeHostIO is an in-memory transport.HostIO driven entirely by test code.
type fakeHostIO struct {
	in  *transport.Ring
	out bytes.Buffer
}

func newFakeHostIO(capacity int) *fakeHostIO {
	return &fakeHostIO{in: transport.NewRing(capacity)}
}

func (f *fakeHostIO) feed(s string) {
	for i := 0; i < len(s); i++ {
		_ = f.in.Push(s[i])
	}
}

func (f *fakeHostIO) ReadByte() (byte, bool) { return f.in.Pop() }
func (f *fakeHostIO) HasInput() bool         { return f.in.Len() > 0 }
func (f *fakeHostIO) Write(p []byte) (int, error) {
	return f.out.Write(p)
}
func (f *fakeHostIO) Close() error { return nil }

var _ transport.HostIO = (*fakeHostIO)(nil)

type noopStore struct{}

func (noopStore) Load(cfg *config.Config) error { *cfg = *config.Default(); return nil }
func (noopStore) Save(cfg *config.Config) error { return nil }

func TestRunOnceDispatchesACompleteCommandLine(t *testing.T) {
	fake := &bus.Fake{}
	cfg := config.Default()
	io := newFakeHostIO(config.HostInBufSize)
	c := New(fake, cfg, noopStore{}, io, &timebase.Fake{})

	io.feed("++addr\n")
	for i := 0; i < len("++addr\n"); i++ {
		c.RunOnce()
	}
	if got := io.out.String(); got != "1\n" {
		t.Fatalf("output = %q, want \"1\\n\" (default partner address)", got)
	}
}

func TestRunOnceIgnoresEmptyInput(t *testing.T) {
	fake := &bus.Fake{}
	cfg := config.Default()
	io := newFakeHostIO(config.HostInBufSize)
	c := New(fake, cfg, noopStore{}, io, &timebase.Fake{})
	c.RunOnce() // no input queued; must not panic or block
	if io.out.Len() != 0 {
		t.Fatalf("output = %q, want empty", io.out.String())
	}
}

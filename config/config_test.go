// Copyright 2024 The gpibctl Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package config

import (
	"path/filepath"
	"testing"
)

func TestClampTimeout(t *testing.T) {
	cases := []struct {
		in   int
		want uint32
	}{
		{0, 1},
		{-5, 1},
		{1000, 1000},
		{99999, MaxTimeout},
		{MaxTimeout, MaxTimeout},
	}
	for _, c := range cases {
		if got := ClampTimeout(c.in); got != c.want {
			t.Errorf("ClampTimeout(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestEOSStringMatchesCode(t *testing.T) {
	cfg := Default()
	cfg.EOS = EOSCRLF
	if s := cfg.EOSString(); string(s) != "\r\n" {
		t.Errorf("CRLF EOSString = %q", s)
	}
	cfg.EOS = EOSNUL
	if s := cfg.EOSString(); len(s) != 0 {
		t.Errorf("NUL EOSString = %q, want empty", s)
	}
	cfg.EOS = EOSCustom
	cfg.EOSCustomByte = 'X'
	if s := cfg.EOSString(); string(s) != "X" {
		t.Errorf("Custom EOSString = %q, want X", s)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.PartnerAddress = 7
	cfg.EOTChar = '\n'
	cfg.EOS = EOSLF
	b := Encode(cfg)
	if b[0] != Magic {
		t.Fatalf("encoded magic = %#x, want %#x", b[0], Magic)
	}
	var got Config
	if !Decode(b, &got) {
		t.Fatal("Decode() = false, want true for valid magic")
	}
	if got.PartnerAddress != 7 || got.EOTChar != '\n' || got.EOS != EOSLF {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	var b [PersistedSize]byte
	var cfg Config
	if Decode(b, &cfg) {
		t.Fatal("Decode() = true for zeroed (bad-magic) image, want false")
	}
}

func TestFileStoreMissingFallsBackToDefaults(t *testing.T) {
	fs := &FileStore{Path: filepath.Join(t.TempDir(), "cfg.bin")}
	var cfg Config
	if err := fs.Load(&cfg); err != nil {
		t.Fatalf("Load() on missing file: %v", err)
	}
	if cfg.PartnerAddress != Default().PartnerAddress {
		t.Fatalf("Load() on missing file did not fall back to defaults: %+v", cfg)
	}
}

func TestFileStoreSaveLoadRoundTrip(t *testing.T) {
	fs := &FileStore{Path: filepath.Join(t.TempDir(), "cfg.bin")}
	cfg := Default()
	cfg.PartnerAddress = 12
	cfg.ControllerMode = false
	if err := fs.Save(cfg); err != nil {
		t.Fatalf("Save(): %v", err)
	}
	var loaded Config
	if err := fs.Load(&loaded); err != nil {
		t.Fatalf("Load(): %v", err)
	}
	if loaded.PartnerAddress != 12 || loaded.ControllerMode != false {
		t.Fatalf("Load() after Save() mismatch: %+v", loaded)
	}
}

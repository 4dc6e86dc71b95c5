// Copyright 2024 The gpibctl Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hostproto

import (
	"bytes"
	"testing"

	"gpibctl/config"
)

func feedAll(p *Parser, bs []byte) []Line {
	var lines []Line
	for _, b := range bs {
		if l, ok := p.Feed(b); ok {
			lines = append(lines, l)
		}
	}
	return lines
}

func TestRoundTripEscapedDataLine(t *testing.T) {
	payload := []byte{0x00, '\n', '\r', 0x1B, 'x'}
	var wire []byte
	for _, b := range payload {
		wire = append(wire, escByte, b)
	}
	wire = append(wire, '\n', 1) // terminator + VALID guard (ignored by Feed)

	p := NewParser()
	lines := feedAll(p, wire[:len(wire)-1]) // guard byte isn't a parser input
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	if !lines[0].Valid || lines[0].IsCommand {
		t.Fatalf("line = %+v, want valid data line", lines[0])
	}
	if !bytes.Equal(lines[0].Data, payload) {
		t.Fatalf("round trip = %q, want %q", lines[0].Data, payload)
	}
}

func TestCommandLineSplitsTokenAndArg(t *testing.T) {
	p := NewParser()
	lines := feedAll(p, []byte("++addr 12\n"))
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	l := lines[0]
	if !l.IsCommand || l.Name != "++addr" || l.Arg != "12" {
		t.Fatalf("line = %+v, want {++addr, 12}", l)
	}
}

func TestCommandLineQueryHasEmptyArg(t *testing.T) {
	p := NewParser()
	lines := feedAll(p, []byte("++addr\n"))
	if len(lines) != 1 || lines[0].Arg != "" {
		t.Fatalf("lines = %+v, want one line with empty arg", lines)
	}
}

func TestEscapedNewlineInDataLineIsNotATerminator(t *testing.T) {
	p := NewParser()
	lines := feedAll(p, []byte{'x', escByte, '\n', 'y', '\n'})
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	if !bytes.Equal(lines[0].Data, []byte{'x', '\n', 'y'}) {
		t.Fatalf("data = %q, want \"x\\ny\"", lines[0].Data)
	}
}

func TestOverflowEntersResyncAndRecovers(t *testing.T) {
	p := NewParser()
	long := bytes.Repeat([]byte{'a'}, config.HostInBufSize+10)
	long = append(long, '\n')
	lines := feedAll(p, long)
	invalidCount := 0
	for _, l := range lines {
		if !l.Valid {
			invalidCount++
		}
	}
	if invalidCount == 0 {
		t.Fatal("overflow did not produce an invalid line")
	}
	for _, l := range lines {
		if l.Valid {
			t.Fatalf("overflowed line was dispatched: %+v", l)
		}
	}
	// Parser must be back to idle: a following normal line parses cleanly.
	recovered := feedAll(p, []byte("hi\n"))
	if len(recovered) != 1 || !recovered[0].Valid || !bytes.Equal(recovered[0].Data, []byte("hi")) {
		t.Fatalf("recovered line = %+v, want valid \"hi\"", recovered)
	}
}

func TestCRLFPairCollapsesToOneLine(t *testing.T) {
	p := NewParser()
	lines := feedAll(p, []byte("abc\r\n"))
	if len(lines) != 1 {
		t.Fatalf("got %d lines for CRLF pair, want 1", len(lines))
	}
}

// Copyright 2024 The gpibctl Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package hostproto implements the byte-at-a-time host line parser and the
// device-mode ATN poll of spec.md §4.F. The parser reassembles escaped,
// length-bounded lines fed one byte at a time by the transport's read loop
// and classifies each as a command or a data chunk; the poll reacts to bus
// traffic addressed to this adapter while it is not controller.
package hostproto

import "gpibctl/config"

const escByte = 0x1B

// Line is one reassembled, terminated host line. Valid is false for a line
// that overflowed the buffer (spec.md §4.F "Overflow"); callers must not
// dispatch an invalid Line.
type Line struct {
	Valid     bool
	IsCommand bool
	// Name and Arg are populated for command lines: Name is the token
	// including its leading "+"/"++", Arg is the remainder after the first
	// unescaped space separator (empty if there was none).
	Name string
	Arg  string
	// Data holds the raw bytes of a data line.
	Data []byte
}

// Parser reassembles host bytes into Lines. It holds a fixed-size buffer
// sized to config.HostInBufSize, matching spec.md §3's "no dynamic
// allocation" buffer sizing, and carries no state across process restarts.
type Parser struct {
	buf        [config.HostInBufSize]byte
	inLen      int
	cmdLen     int
	started    bool
	inCmd      bool
	hasArgs    bool
	escapeNext bool
	resync     bool
	skipNextLF bool
}

// NewParser returns a Parser ready to receive the first byte of a line.
func NewParser() *Parser {
	return &Parser{}
}

// Feed processes one byte from the host transport. ok is true exactly when
// a line has just completed (terminator seen, or the line overflowed the
// buffer); in the overflow case line.Valid is false and must be discarded
// rather than dispatched.
func (p *Parser) Feed(b byte) (line Line, ok bool) {
	if p.resync {
		if b == '\n' || b == '\r' {
			p.resync = false
			p.skipNextLF = false
		}
		return Line{}, false
	}

	if p.skipNextLF {
		p.skipNextLF = false
		if b == '\n' {
			return Line{}, false
		}
	}

	if p.escapeNext {
		p.escapeNext = false
		return p.store(b)
	}
	if b == escByte {
		p.escapeNext = true
		return Line{}, false
	}

	if p.started && (b == '\n' || b == '\r') {
		line, ok = p.terminate()
		if b == '\r' {
			p.skipNextLF = true
		}
		return line, ok
	}
	if p.started && p.inCmd && !p.hasArgs && b == ' ' {
		p.cmdLen = p.inLen
		p.hasArgs = true
		return Line{}, false
	}
	return p.store(b)
}

func (p *Parser) store(b byte) (Line, bool) {
	if !p.started {
		p.started = true
		p.inCmd = b == '+'
	}
	if p.inLen >= len(p.buf) {
		p.resync = true
		p.skipNextLF = false
		p.resetLine()
		return Line{Valid: false}, true
	}
	p.buf[p.inLen] = b
	p.inLen++
	return Line{}, false
}

func (p *Parser) terminate() (Line, bool) {
	line := Line{Valid: true, IsCommand: p.inCmd}
	if p.inCmd {
		if p.hasArgs {
			line.Name = string(p.buf[:p.cmdLen])
			line.Arg = string(p.buf[p.cmdLen:p.inLen])
		} else {
			line.Name = string(p.buf[:p.inLen])
		}
	} else {
		line.Data = append([]byte(nil), p.buf[:p.inLen]...)
	}
	p.resetLine()
	return line, true
}

func (p *Parser) resetLine() {
	p.inLen = 0
	p.cmdLen = 0
	p.started = false
	p.inCmd = false
	p.hasArgs = false
	p.escapeNext = false
}

// Copyright 2024 The gpibctl Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package monitor renders the live state of the eight GPIB handshake and
// management lines to a terminal, for interactive debugging of the bus
// role and handshake engine. It is not part of the firmware's core data
// path; it is an optional diagnostic consumer wired onto bus.Transceiver
// reads, in the spirit of the teacher's devices/screen package that
// renders LED-strip pixel state to the console instead of real hardware.
package monitor

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/maruel/ansi256"

	"gpibctl/bus"
)

var lineOrder = []bus.Signal{bus.DAV, bus.NRFD, bus.NDAC, bus.EOI, bus.ATN, bus.IFC, bus.SRQ, bus.REN}

var (
	assertedColor   = color.NRGBA{R: 220, G: 40, B: 40, A: 255}
	unassertedColor = color.NRGBA{R: 30, G: 160, B: 60, A: 255}
)

// Console renders bus.Transceiver line state as a row of colored blocks,
// one per signal, redrawn in place on every Refresh call.
type Console struct {
	w     io.Writer
	color bool
	buf   bytes.Buffer
}

// New returns a Console writing to stdout. Color output is suppressed
// automatically when stdout is not a terminal (e.g. piped to a log file),
// matching common CLI practice for ANSI-emitting tools.
func New() *Console {
	return &Console{
		w:     colorable.NewColorableStdout(),
		color: isatty.IsTerminal(os.Stdout.Fd()),
	}
}

// Refresh reads every line from t and redraws the console row.
func (c *Console) Refresh(t bus.Transceiver) {
	c.buf.Reset()
	c.buf.WriteString("\r")
	for _, s := range lineOrder {
		asserted := t.ReadSignal(s)
		label := fmt.Sprintf(" %s", s)
		if !c.color {
			if asserted {
				label = fmt.Sprintf("[%s]", s)
			} else {
				label = fmt.Sprintf(" %s ", s)
			}
			c.buf.WriteString(label)
			continue
		}
		col := unassertedColor
		if asserted {
			col = assertedColor
		}
		c.buf.WriteString(ansi256.Default.Block(col))
		c.buf.WriteString(label)
		c.buf.WriteString("\033[0m")
	}
	_, _ = c.buf.WriteTo(c.w)
}

// Close resets terminal attributes left by the last Refresh.
func (c *Console) Close() error {
	_, err := c.w.Write([]byte("\n\033[0m"))
	return err
}

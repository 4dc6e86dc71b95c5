// Copyright 2024 The gpibctl Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package dispatch implements the Prologix command set and the data
// dispatch path of spec.md §4.E: command lookup through a fixed table, the
// handler contract (query on empty argument, set otherwise), and
// chunk_data's bus framing of outgoing payloads.
package dispatch

import (
	"sort"
	"strconv"
)

// handlerFunc is the signature every command-table entry implements. arg is
// the 0-terminated argument text with the leading separator already
// stripped; an empty arg means "query".
type handlerFunc func(d *Dispatcher, arg string)

// entry is one row of the command table: {name, handler, help}, per
// spec.md §4.E.
type entry struct {
	name string
	fn   handlerFunc
	help string
}

// table is the fixed command set, kept sorted by name so lookup can binary
// search it. spec.md §4.E calls for "a perfect hash over two selected
// character positions plus length", but also explicitly permits
// substituting "a sorted binary search or an explicit switch" as long as
// lookup stays constant-time-ish and case-sensitive and ++help can walk
// every entry; we take that option here — see DESIGN.md for why a literal
// two-coordinate hash (as in original_source's gperf-generated
// cmd_hashtable.c) wasn't worth hand-reproducing for a fixed 25-row table.
var table []entry

// table is filled in init rather than in its declaration because cmdHelp
// walks it through All, which the compiler rejects as an initialization
// cycle.
func init() {
	table = buildTable()
}

func buildTable() []entry {
	t := []entry{
		{"++addr", cmdAddr, "query/set the partner's primary address (0-30)"},
		{"++auto", cmdAuto, "query/set autoread after a controller-mode write"},
		{"++clr", cmdClr, "send SDC (selected device clear) to the addressed partner"},
		{"++debug", cmdDebug, "query/set diagnostic output; query also reports fault counters"},
		{"++dfu", cmdDFU, "reboot into the bootloader"},
		{"++eoi", cmdEOI, "query/set whether EOI is asserted on the last byte of a write"},
		{"++eos", cmdEOS, "query/set the end-of-string code (0=CRLF 1=LF 2=CR 3=NUL)"},
		{"++eot_char", cmdEOTChar, "query/set the byte appended to bus reads"},
		{"++eot_enable", cmdEOTEnable, "query/set whether eot_char is appended to bus reads"},
		{"++help", cmdHelp, "list every command"},
		{"++ifc", cmdIFC, "pulse IFC for 200ms (controller mode only)"},
		{"++llo", cmdLLO, "send LLO (local lockout) to the bus"},
		{"++loc", cmdLOC, "send GTL (go to local) to the addressed partner"},
		{"++lon", cmdLON, "query/set listen-only device mode"},
		{"++mode", cmdMode, "query/set controller (1) or device (0) role"},
		{"++read", cmdRead, "read from the bus and stream it to the host"},
		{"++read_tmo_ms", cmdReadTimeout, "query/set the per-byte handshake timeout in ms"},
		{"++rst", cmdRst, "reboot the adapter"},
		{"++savecfg", cmdSaveCfg, "1 persists the current configuration, 0 is a no-op"},
		{"++spoll", cmdSpoll, "serial-poll the addressed partner"},
		{"++srq", cmdSrq, "query the SRQ line state"},
		{"++status", cmdStatus, "query/set the device-mode serial-poll status byte"},
		{"++strip", cmdStrip, "query/set the strip formatting flag (reserved)"},
		{"++trg", cmdTrg, "send GET (group execute trigger) to the addressed partner"},
		{"++ver", cmdVer, "print the firmware version"},
	}
	sort.Slice(t, func(i, j int) bool { return t[i].name < t[j].name })
	return t
}

// lookup finds the command entry for name, case-sensitively, returning
// (nil, false) if not found.
func lookup(name string) (*entry, bool) {
	i := sort.Search(len(table), func(i int) bool { return table[i].name >= name })
	if i < len(table) && table[i].name == name {
		return &table[i], true
	}
	return nil, false
}

// All returns every command entry, for ++help's walk-all iterator.
func All() []struct{ Name, Help string } {
	out := make([]struct{ Name, Help string }, len(table))
	for i, e := range table {
		out[i] = struct{ Name, Help string }{e.name, e.help}
	}
	return out
}

// atoiOrZero parses s as a decimal integer, yielding 0 on failure, per
// spec.md §7's documented atoi behavior.
func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

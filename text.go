// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package textbuf

import (
	"fmt"

	"gate.computer/textbuf/internal/pan"
	"gate.computer/textbuf/object"
)

// Sink consumes a finalized text section in offset order.  Callbacks for
// records located at an offset are invoked before the bytes at that offset.
type Sink interface {
	PutBytes([]byte)
	PutReloc(object.Reloc)
	PutTrap(object.TrapSite)
	PutCallSite(object.CallSite)
	End()
}

// Text is an immutable finalized text section.  All emitted content,
// including embedded constant data, is a single opaque section; segregation
// is the consumer's concern.
type Text struct {
	bytes     []byte
	relocs    []object.Reloc
	traps     []object.TrapSite
	callSites []object.CallSite
	srcRanges []object.SourceRange
}

func (t *Text) Len() int {
	return len(t.bytes)
}

// Bytes returns the machine code.  It must not be modified.
func (t *Text) Bytes() []byte {
	return t.bytes
}

// Relocs returns records in non-decreasing offset order.
func (t *Text) Relocs() []object.Reloc {
	return t.relocs
}

// Traps returns records in non-decreasing offset order.
func (t *Text) Traps() []object.TrapSite {
	return t.traps
}

// CallSites returns records in non-decreasing offset order.
func (t *Text) CallSites() []object.CallSite {
	return t.callSites
}

// SourceRanges returns sorted, non-overlapping ranges.
func (t *Text) SourceRanges() []object.SourceRange {
	return t.srcRanges
}

// Emit streams the section to the sink: byte runs interleaved with record
// callbacks in offset order, then the end marker.
func (t *Text) Emit(sink Sink) {
	var pos uint32
	var ir, it, ic int

	flush := func(until uint32) {
		if until > pos {
			sink.PutBytes(t.bytes[pos:until])
			pos = until
		}
	}

	for ir < len(t.relocs) || it < len(t.traps) || ic < len(t.callSites) {
		next := uint32(len(t.bytes))
		if ir < len(t.relocs) && t.relocs[ir].Addr < next {
			next = t.relocs[ir].Addr
		}
		if it < len(t.traps) && t.traps[it].Addr < next {
			next = t.traps[it].Addr
		}
		if ic < len(t.callSites) && t.callSites[ic].RetAddr < next {
			next = t.callSites[ic].RetAddr
		}

		flush(next)

		emitted := false
		for ir < len(t.relocs) && t.relocs[ir].Addr == next {
			sink.PutReloc(t.relocs[ir])
			ir++
			emitted = true
		}
		for it < len(t.traps) && t.traps[it].Addr == next {
			sink.PutTrap(t.traps[it])
			it++
			emitted = true
		}
		for ic < len(t.callSites) && t.callSites[ic].RetAddr == next {
			sink.PutCallSite(t.callSites[ic])
			ic++
			emitted = true
		}

		if !emitted {
			// A record beyond the text end: metadata was attached to
			// branch bytes which were later elided.
			pan.Panic(fmt.Errorf("metadata record at offset %d is beyond the %d-byte text", next, len(t.bytes)))
		}
	}

	flush(uint32(len(t.bytes)))
	sink.End()
}

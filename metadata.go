// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package textbuf

import (
	"gate.computer/textbuf/internal/pan"
	"gate.computer/textbuf/object"
	"golang.org/x/xerrors"
)

// Metadata records are plain appends at the current position.  The branch
// optimizer never retracts them, so they must not be attached to branch
// instruction bytes which could still be elided.

// AddReloc records a relocated symbol reference at the current position.
func (b *Buffer) AddReloc(kind object.RelocKind, name string, addend int64) {
	b.relocs = append(b.relocs, object.Reloc{
		Addr:   uint32(b.Pos()),
		Kind:   kind,
		Name:   name,
		Addend: addend,
	})
}

// AddTrap records that the instruction at the current position can trap.
func (b *Buffer) AddTrap(id object.TrapID) {
	b.traps = append(b.traps, object.TrapSite{
		Addr: uint32(b.Pos()),
		ID:   id,
	})
}

// AddCallSite records a function call returning to the current position.
func (b *Buffer) AddCallSite(stackOffset int32) {
	b.callSites = append(b.callSites, object.CallSite{
		RetAddr:     uint32(b.Pos()),
		StackOffset: stackOffset,
	})
}

// StartSourceOffset opens a source location range at the current position.
// Ranges cannot nest.
func (b *Buffer) StartSourceOffset(source uint32) {
	if b.srcOpen {
		pan.Panic(xerrors.New("source location range is already open"))
	}

	b.srcOpen = true
	b.srcStart = b.Pos()
	b.srcSource = source
}

// EndSourceOffset closes the open source location range, recording it
// unless it is empty.
func (b *Buffer) EndSourceOffset() {
	if !b.srcOpen {
		pan.Panic(xerrors.New("no source location range is open"))
	}
	b.srcOpen = false

	if end := b.Pos(); end > b.srcStart {
		b.srcRanges = append(b.srcRanges, object.SourceRange{
			Start:  uint32(b.srcStart),
			End:    uint32(end),
			Source: b.srcSource,
		})
	}
}

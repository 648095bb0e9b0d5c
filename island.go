// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package textbuf

import (
	"fmt"

	"gate.computer/textbuf/internal/pan"
	"gate.computer/textbuf/internal/trace"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

// constant is a data blob (jump table, literal pool entry) waiting for the
// next island.
type constant struct {
	label Label
	align int32
	data  []byte
}

// DeferConstant schedules data for emission at the next island, no more
// than maxDist bytes away.  The label must be unbound; it is bound to the
// constant's aligned offset when the island is emitted.
func (b *Buffer) DeferConstant(l Label, align int32, data []byte, maxDist int32) {
	if b.labelOffsets[l] != unboundOffset {
		pan.Panic(fmt.Errorf("deferred constant label %d is already bound", l))
	}

	b.consts = append(b.consts, constant{l, align, data})

	if d := int64(b.Pos()) + int64(maxDist); d < b.deadline {
		b.deadline = d
	}
	b.islandMax += int32(len(data)) + align - 1
}

// IslandNeeded tells whether an island must be emitted before appending
// distance more bytes of code.  Callers must ask before emitting any
// instruction which could push a pending reference out of range, with a
// distance no smaller than the largest instruction they might emit before
// asking again.
func (b *Buffer) IslandNeeded(distance int32) bool {
	return int64(b.Pos())+int64(distance)+int64(b.islandMax) > b.deadline
}

// EmitIsland appends all pending constants, then patches every pending
// reference that can be patched, emitting veneers for those which are
// unresolved or out of range.  References which are unresolved and have no
// veneer encoding are retried at the next island.  The branch window does
// not survive an island.
func (b *Buffer) EmitIsland() {
	trace.Logger().Debug("island",
		zap.Int32("offset", b.Pos()),
		zap.Int("constants", len(b.consts)),
		zap.Int("fixups", len(b.fixups)))

	b.branches = b.branches[:0]

	consts := b.consts
	pending := b.fixups
	b.consts = nil
	b.fixups = nil
	b.deadline = noDeadline
	b.islandMax = 0

	for _, c := range consts {
		b.Align(c.align)
		if b.labelOffsets[c.label] != unboundOffset {
			pan.Panic(fmt.Errorf("deferred constant label %d was bound before its island", c.label))
		}
		b.bindLabel(c.label)
		b.PutBytes(c.data)
	}

	for _, f := range pending {
		b.applyFixup(f)
	}
}

func (b *Buffer) applyFixup(f fixup) {
	target := b.LabelOffset(f.label)

	if target != unboundOffset && inRange(f.kind, f.offset, target) {
		f.kind.Patch(b.buf, f.offset, target)
		return
	}

	if !f.kind.SupportsVeneer() {
		if target != unboundOffset {
			// Backend configuration bug: the encoding cannot reach and
			// there is no way to extend it.
			pan.Panic(xerrors.Errorf("label %d at offset %d is out of range of its use at offset %d", f.label, target, f.offset))
		}

		b.enqueueFixup(f) // Retry at the next island.
		return
	}

	b.Align(f.kind.Align())
	veneerOffset := b.Pos()
	space := b.Extend(int(f.kind.VeneerSize()))
	fixupOffset, kind := f.kind.GenerateVeneer(space, veneerOffset)
	f.kind.Patch(b.buf, f.offset, veneerOffset)

	trace.Logger().Debug("veneer emitted",
		zap.Int32("label", int32(f.label)),
		zap.Int32("offset", veneerOffset))

	if target != unboundOffset {
		if !inRange(kind, fixupOffset, target) {
			pan.Panic(xerrors.Errorf("veneer at offset %d cannot reach label %d at offset %d", veneerOffset, f.label, target))
		}
		kind.Patch(b.buf, fixupOffset, target)
	} else {
		b.enqueueFixup(fixup{f.label, fixupOffset, kind})
	}
}

func inRange(kind LabelUse, offset, target int32) bool {
	delta := int64(target) - int64(offset)
	return delta <= int64(kind.MaxPosRange()) && -delta <= int64(kind.MaxNegRange())
}

// Finish drains all pending constants and references and freezes the text.
// Every label must have been bound, except labels of deferred constants
// (which get bound by the drain).  The buffer must not be used afterwards.
func (b *Buffer) Finish() *Text {
	if b.finished {
		pan.Panic(xerrors.New("buffer finished twice"))
	}
	if b.srcOpen {
		pan.Panic(xerrors.New("source location range is still open at finish"))
	}

	deferred := make(map[Label]struct{}, len(b.consts))
	for _, c := range b.consts {
		deferred[c.label] = struct{}{}
	}
	for l, offset := range b.labelOffsets {
		if offset == unboundOffset {
			if _, ok := deferred[Label(l)]; !ok {
				pan.Panic(xerrors.Errorf("label %d is unbound at finish", l))
			}
		}
	}

	for len(b.consts) > 0 || len(b.fixups) > 0 {
		n := len(b.consts) + len(b.fixups)
		b.EmitIsland()

		if len(b.consts)+len(b.fixups) >= n {
			// Veneer encodings must have strictly greater range than the
			// encodings that spawn them, or the drain cannot converge.
			pan.Panic(xerrors.New("island emission is not making progress"))
		}
	}

	b.finished = true
	b.branches = nil

	trace.Logger().Debug("text finished",
		zap.Int32("length", b.Pos()),
		zap.Int("relocs", len(b.relocs)),
		zap.Int("traps", len(b.traps)),
		zap.Int("callsites", len(b.callSites)))

	return &Text{
		bytes:     b.buf,
		relocs:    b.relocs,
		traps:     b.traps,
		callSites: b.callSites,
		srcRanges: b.srcRanges,
	}
}

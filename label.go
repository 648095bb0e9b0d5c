// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package textbuf

import (
	"fmt"

	"gate.computer/textbuf/internal/pan"
	"gate.computer/textbuf/internal/trace"
	"go.uber.org/zap"
)

// Label refers to an offset in the text which may not be known yet.
type Label int32

const (
	unboundOffset = int32(-1)
	noAlias       = Label(-1)
)

// LabelUse describes an architecture-specific encoding of a label
// reference.
type LabelUse interface {
	// Align is the required alignment of a veneer, in bytes.
	Align() int32

	// PatchSize is the number of bytes occupied by the encoded reference.
	PatchSize() int32

	// MaxPosRange is the maximum distance of a target beyond the reference
	// offset which the encoding can address.
	MaxPosRange() int32

	// MaxNegRange is the maximum distance of a target before the reference
	// offset which the encoding can address.
	MaxNegRange() int32

	// SupportsVeneer tells whether GenerateVeneer may be called.
	SupportsVeneer() bool

	// VeneerSize is the number of bytes a veneer occupies, before
	// alignment.
	VeneerSize() int32

	// Patch rewrites the encoded reference at useOffset to address
	// targetOffset.
	Patch(text []byte, useOffset, targetOffset int32)

	// GenerateVeneer fills in a long-range trampoline.  The space slice is
	// VeneerSize bytes at veneerOffset within the text.  It returns the
	// absolute offset of the veneer's own label reference and its encoding,
	// which must have strictly greater range than this one.
	GenerateVeneer(space []byte, veneerOffset int32) (fixupOffset int32, kind LabelUse)
}

// fixup is a pending patch of a label reference which has already been
// emitted.
type fixup struct {
	label  Label
	offset int32
	kind   LabelUse
}

// GetLabel allocates a label with unknown offset.
func (b *Buffer) GetLabel() Label {
	l := Label(len(b.labelOffsets))
	b.labelOffsets = append(b.labelOffsets, unboundOffset)
	b.labelAliases = append(b.labelAliases, noAlias)
	return l
}

// ReserveLabelsForBlocks allocates the first count labels for the code
// generator's basic blocks, so that block index and label coincide.  It may
// be called only once, before any other label allocation.
func (b *Buffer) ReserveLabelsForBlocks(count int) {
	if b.reserved || len(b.labelOffsets) != 0 {
		pan.Panic(fmt.Errorf("%d block labels reserved after label allocation", count))
	}
	b.reserved = true

	for i := 0; i < count; i++ {
		b.GetLabel()
	}
}

// BindLabel resolves a label to the current position.  A label can be bound
// only once.
func (b *Buffer) BindLabel(l Label) {
	if b.labelOffsets[l] != unboundOffset {
		pan.Panic(fmt.Errorf("label %d bound twice", l))
	}

	b.bindLabel(l)
	trace.Logger().Debug("label bound",
		zap.Int32("label", int32(l)),
		zap.Int32("offset", b.labelOffsets[l]))

	b.optimizeBranches()
}

func (b *Buffer) bindLabel(l Label) {
	b.labelOffsets[l] = b.Pos()
	b.bound = append(b.bound, l)
}

// LabelOffset returns the offset which the label currently resolves to, or
// -1 if it is not known yet.  A redirected label resolves to the target of
// its redirection; redirections are never chained.
func (b *Buffer) LabelOffset(l Label) int32 {
	if a := b.labelAliases[l]; a != noAlias {
		return b.labelOffsets[a]
	}
	return b.labelOffsets[l]
}

// UseLabelAtOffset registers a label reference which has just been emitted.
// The encoded bytes at [offset, offset+PatchSize) must already exist,
// prefilled with a placeholder.  They will be patched during an island
// flush or final drain.
func (b *Buffer) UseLabelAtOffset(offset int32, l Label, kind LabelUse) {
	if offset < 0 || offset+kind.PatchSize() > b.Pos() {
		pan.Panic(fmt.Errorf("label use at offset %d is outside of emitted code", offset))
	}

	b.enqueueFixup(fixup{l, offset, kind})
	trace.Logger().Debug("label use",
		zap.Int32("label", int32(l)),
		zap.Int32("offset", offset))
}

func (b *Buffer) enqueueFixup(f fixup) {
	b.fixups = append(b.fixups, f)

	if d := int64(f.offset) + int64(f.kind.MaxPosRange()); d < b.deadline {
		b.deadline = d
	}
	if f.kind.SupportsVeneer() {
		b.islandMax += f.kind.VeneerSize() + f.kind.Align() - 1
	}
}

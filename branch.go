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

// branch is an entry of the trailing branch window: a contiguous run of
// branch instructions at the end of the text, with no other code emitted
// after them.
type branch struct {
	start    int32
	end      int32
	target   Label
	fixup    int    // Index of the branch's reference in the fixup queue.
	inverted []byte // Encoding of the opposite condition; nil if unconditional.
}

func (br *branch) conditional() bool {
	return br.inverted != nil
}

// AddUncondBranch tells the buffer that the bytes at [start, end) are an
// unconditional branch to target.  It must be called immediately after the
// UseLabelAtOffset call for the branch's own reference.  Branch
// instructions must not carry relocation, trap, call site or source
// location records: those are never retracted, but the branch may be.
func (b *Buffer) AddUncondBranch(start, end int32, target Label) {
	b.addBranch(branch{start: start, end: end, target: target})
}

// AddCondBranch is AddUncondBranch for a conditional branch.  The inverted
// slice holds the encoding of the same branch with the opposite condition;
// it must have the same length and its label reference must be at the same
// position.
func (b *Buffer) AddCondBranch(start, end int32, target Label, inverted []byte) {
	if int32(len(inverted)) != end-start {
		pan.Panic(fmt.Errorf("inverted branch encoding is %d bytes, branch is %d", len(inverted), end-start))
	}

	b.addBranch(branch{start: start, end: end, target: target, inverted: inverted})
}

func (b *Buffer) addBranch(br branch) {
	if br.start < 0 || br.start >= br.end || br.end != b.Pos() {
		pan.Panic(fmt.Errorf("branch bounds [%d,%d) don't line up with emitted code", br.start, br.end))
	}

	br.fixup = len(b.fixups) - 1
	if br.fixup < 0 || b.fixups[br.fixup].offset < br.start || b.fixups[br.fixup].offset >= br.end {
		pan.Panic(fmt.Errorf("branch at [%d,%d) was not preceded by its label use", br.start, br.end))
	}

	if n := len(b.branches); n > 0 && b.branches[n-1].end != br.start {
		b.branches = b.branches[:0] // Code was emitted since the last entry.
	}

	b.branches = append(b.branches, br)
}

// optimizeBranches rewrites the trailing branch window after a label bind.
func (b *Buffer) optimizeBranches() {
	if n := len(b.branches); n > 0 && b.branches[n-1].end != b.Pos() {
		b.branches = b.branches[:0]
	}

	for len(b.branches) > 0 {
		i := len(b.branches) - 1
		br := b.branches[i]
		off := b.Pos()

		if br.conditional() {
			// A conditional branch to the next instruction is a no-op.
			if b.LabelOffset(br.target) == off {
				b.truncateLastBranch()
				continue
			}
			break
		}

		// Labels bound at an unconditional branch refer to its target
		// directly.  This is what makes the elisions below safe: once no
		// label enters the branch, only a fallthrough can.
		b.redirectLabels(br.start, br.target)

		if i > 0 && b.branches[i-1].end == br.start {
			prev := b.branches[i-1]

			if !prev.conditional() {
				// Unreachable: preceded by an unconditional branch, and
				// entry labels were just redirected away.
				b.truncateLastBranch()
				continue
			}

			if b.LabelOffset(prev.target) == off {
				// The conditional jumps around this branch to its
				// fallthrough.  Invert it and let it do the jumping.
				target := br.target
				b.truncateLastBranch()
				b.invertLastBranch(target)
				continue
			}
		}

		// A branch to the next instruction is a no-op.
		if b.LabelOffset(br.target) == off {
			b.truncateLastBranch()
			continue
		}
		break
	}
}

// redirectLabels makes labels bound at the given offset resolve to target.
// Redirections are collapsed on creation so chains never form.
func (b *Buffer) redirectLabels(offset int32, target Label) {
	if a := b.labelAliases[target]; a != noAlias {
		target = a
	}

	for i := len(b.bound) - 1; i >= 0; i-- {
		l := b.bound[i]
		if b.labelOffsets[l] < offset {
			break
		}
		if b.labelOffsets[l] == offset && l != target {
			b.labelAliases[l] = target
			trace.Logger().Debug("label redirected",
				zap.Int32("label", int32(l)),
				zap.Int32("target", int32(target)))
		}
	}
}

// truncateLastBranch removes the newest branch from the text, along with
// its fixup and any newer fixups.  Labels bound past the new end are
// clamped down to it.
func (b *Buffer) truncateLastBranch() {
	i := len(b.branches) - 1
	br := b.branches[i]

	trace.Logger().Debug("branch elided",
		zap.Int32("start", br.start),
		zap.Int32("end", br.end),
		zap.Int32("target", int32(br.target)))

	b.buf = b.buf[:br.start]
	b.fixups = b.fixups[:br.fixup]
	b.branches = b.branches[:i]

	for j := len(b.bound) - 1; j >= 0; j-- {
		l := b.bound[j]
		if b.labelOffsets[l] <= br.start {
			break
		}
		b.labelOffsets[l] = br.start
	}
}

// invertLastBranch replaces the newest branch (which must be conditional)
// with its opposite-condition encoding and points it at a new target.
func (b *Buffer) invertLastBranch(target Label) {
	br := &b.branches[len(b.branches)-1]

	old := make([]byte, br.end-br.start)
	copy(old, b.buf[br.start:br.end])
	copy(b.buf[br.start:br.end], br.inverted)
	br.inverted = old

	br.target = target
	b.fixups[br.fixup].label = target
}

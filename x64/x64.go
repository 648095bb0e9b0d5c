// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package x64 provides label use encodings for x86-64 branch displacements,
// and helpers for emitting the corresponding instructions.
package x64

import (
	"encoding/binary"
	"fmt"
	"math"

	"gate.computer/textbuf"
	"gate.computer/textbuf/internal/pan"
)

var (
	// Rel8 is an 8-bit displacement relative to the end of the reference
	// (short JMP and Jcc).  Its veneer is a 32-bit JMP.
	Rel8 textbuf.LabelUse = rel8{}

	// Rel32 is a 32-bit displacement relative to the end of the reference
	// (near JMP, Jcc and CALL).  It has no veneer.
	Rel32 textbuf.LabelUse = rel32{}
)

type rel8 struct{}

func (rel8) Align() int32         { return 1 }
func (rel8) PatchSize() int32     { return 1 }
func (rel8) MaxPosRange() int32   { return 128 } // target - offset = disp + 1
func (rel8) MaxNegRange() int32   { return 127 }
func (rel8) SupportsVeneer() bool { return true }
func (rel8) VeneerSize() int32    { return 5 }

func (rel8) Patch(text []byte, useOffset, targetOffset int32) {
	disp := targetOffset - (useOffset + 1)
	if disp < -0x80 || disp >= 0x80 {
		pan.Panic(fmt.Errorf("rel8 displacement out of range: %d", disp))
	}
	text[useOffset] = uint8(disp)
}

func (rel8) GenerateVeneer(space []byte, veneerOffset int32) (int32, textbuf.LabelUse) {
	space[0] = 0xe9 // JMP rel32
	space[1] = 0
	space[2] = 0
	space[3] = 0
	space[4] = 0
	return veneerOffset + 1, Rel32
}

type rel32 struct{}

func (rel32) Align() int32         { return 1 }
func (rel32) PatchSize() int32     { return 4 }
func (rel32) MaxPosRange() int32   { return math.MaxInt32 - 4 }
func (rel32) MaxNegRange() int32   { return math.MaxInt32 }
func (rel32) SupportsVeneer() bool { return false }
func (rel32) VeneerSize() int32    { return 0 }

func (rel32) Patch(text []byte, useOffset, targetOffset int32) {
	disp := targetOffset - (useOffset + 4)
	binary.LittleEndian.PutUint32(text[useOffset:], uint32(disp))
}

func (rel32) GenerateVeneer([]byte, int32) (int32, textbuf.LabelUse) {
	pan.Panic(fmt.Errorf("rel32 label use has no veneer"))
	return 0, nil
}

// CC is an x86 condition code.
type CC uint8

const (
	O CC = iota
	NO
	B
	AE
	E
	NE
	BE
	A
	S
	NS
	P
	NP
	L
	GE
	LE
	G
)

// Invert returns the opposite condition.
func (cc CC) Invert() CC {
	return cc ^ 1
}

// PutJmp emits a short unconditional jump to target and registers it with
// the buffer.
func PutJmp(b *textbuf.Buffer, target textbuf.Label) {
	start := b.Pos()
	b.PutByte(0xeb)
	b.PutByte(0)
	b.UseLabelAtOffset(start+1, target, Rel8)
	b.AddUncondBranch(start, b.Pos(), target)
}

// PutJcc emits a short conditional jump to target and registers it with the
// buffer, supplying the opposite-condition encoding.
func PutJcc(b *textbuf.Buffer, cc CC, target textbuf.Label) {
	start := b.Pos()
	b.PutByte(0x70 | uint8(cc))
	b.PutByte(0)
	b.UseLabelAtOffset(start+1, target, Rel8)
	b.AddCondBranch(start, b.Pos(), target, []byte{0x70 | uint8(cc.Invert()), 0})
}

// PutJmp32 emits a near unconditional jump to target and registers it with
// the buffer.
func PutJmp32(b *textbuf.Buffer, target textbuf.Label) {
	start := b.Pos()
	b.PutByte(0xe9)
	b.PutUint32(0)
	b.UseLabelAtOffset(start+1, target, Rel32)
	b.AddUncondBranch(start, b.Pos(), target)
}

// PutCall emits a near call to target.  A call is not a branch: it falls
// through, and the caller should record a call site at the return address.
func PutCall(b *textbuf.Buffer, target textbuf.Label) {
	start := b.Pos()
	b.PutByte(0xe8)
	b.PutUint32(0)
	b.UseLabelAtOffset(start+1, target, Rel32)
}

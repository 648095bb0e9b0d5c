// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package textbuf_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"gate.computer/textbuf"
	"gate.computer/textbuf/x64"
)

// testUse patches a 32-bit absolute target, with configurable reach and no
// veneer.
type testUse struct {
	pos, neg int32
}

func (u testUse) Align() int32         { return 1 }
func (u testUse) PatchSize() int32     { return 4 }
func (u testUse) MaxPosRange() int32   { return u.pos }
func (u testUse) MaxNegRange() int32   { return u.neg }
func (u testUse) SupportsVeneer() bool { return false }
func (u testUse) VeneerSize() int32    { return 0 }

func (u testUse) Patch(text []byte, useOffset, targetOffset int32) {
	binary.LittleEndian.PutUint32(text[useOffset:], uint32(targetOffset))
}

func (u testUse) GenerateVeneer([]byte, int32) (int32, textbuf.LabelUse) {
	panic("no veneer")
}

func TestForwardVeneer(t *testing.T) {
	b := textbuf.New()
	l := b.GetLabel()

	x64.PutJcc(b, x64.E, l) // Reaches at most offset 129.

	islands := 0
	for i := 0; i < 200; i++ {
		if b.IslandNeeded(1) {
			b.EmitIsland()
			islands++
		}
		b.PutByte(0x90)
	}
	b.BindLabel(l)

	text := b.Finish()

	if islands != 1 {
		t.Fatalf("%d islands emitted", islands)
	}
	if text.Len() != 2+200+5 {
		t.Fatalf("total length %d, want branch + filler + veneer = %d", text.Len(), 2+200+5)
	}

	code := text.Bytes()
	if code[0] != 0x74 {
		t.Errorf("conditional branch opcode %#x", code[0])
	}
	if code[1] != 122 {
		t.Errorf("branch displacement %d does not reach the veneer", int8(code[1]))
	}
	if code[124] != 0xe9 {
		t.Errorf("veneer opcode %#x", code[124])
	}
	if disp := int32(binary.LittleEndian.Uint32(code[125:])); disp != 78 {
		t.Errorf("veneer displacement %d", disp)
	}
}

func TestBackwardBranchInRange(t *testing.T) {
	b := textbuf.New()
	l := b.GetLabel()
	b.BindLabel(l)

	for i := 0; i < 100; i++ {
		b.PutByte(0x90)
	}
	x64.PutJmp(b, l)

	text := b.Finish()
	if text.Len() != 102 {
		t.Fatalf("total length %d: a reachable backward branch needs no veneer", text.Len())
	}
	if disp := int8(text.Bytes()[101]); disp != -102 {
		t.Errorf("backward displacement %d", disp)
	}
}

func TestBackwardVeneer(t *testing.T) {
	b := textbuf.New()
	l := b.GetLabel()
	b.BindLabel(l)

	for i := 0; i < 200; i++ {
		b.PutByte(0x90)
	}
	x64.PutJmp(b, l)

	text := b.Finish()
	if text.Len() != 202+5 {
		t.Fatalf("total length %d, want branch + veneer = %d", text.Len(), 202+5)
	}

	code := text.Bytes()
	if disp := int8(code[201]); disp != 0 {
		t.Errorf("short branch displacement %d does not reach the veneer", disp)
	}
	if code[202] != 0xe9 {
		t.Errorf("veneer opcode %#x", code[202])
	}
	if disp := int32(binary.LittleEndian.Uint32(code[203:])); disp != -207 {
		t.Errorf("veneer displacement %d", disp)
	}
}

func TestIslandNeeded(t *testing.T) {
	b := textbuf.New()
	l := b.GetLabel()

	x64.PutJcc(b, x64.E, l)
	if b.IslandNeeded(0) {
		t.Error("island needed right after branch")
	}

	for b.Pos() < 124 {
		b.PutByte(0x90)
	}
	if b.IslandNeeded(0) {
		t.Error("island needed while the veneer still fits in range")
	}
	if !b.IslandNeeded(1) {
		t.Error("island not needed at the deadline")
	}

	b.EmitIsland()
	if b.IslandNeeded(1 << 20) {
		t.Error("island needed after flush")
	}

	b.BindLabel(l)
	b.Finish()
}

func TestDeferConstant(t *testing.T) {
	b := textbuf.New()
	l := b.GetLabel()

	b.PutByte(0x90)
	b.DeferConstant(l, 4, []byte{1, 2, 3, 4, 5, 6, 7, 8}, 1000)
	b.PutByte(0x90)
	b.EmitIsland()

	if off := b.LabelOffset(l); off != 4 {
		t.Errorf("constant label bound at %d", off)
	}

	text := b.Finish()
	want := []byte{0x90, 0x90, 0, 0, 1, 2, 3, 4, 5, 6, 7, 8}
	if !bytes.Equal(text.Bytes(), want) {
		t.Errorf("got % x, want % x", text.Bytes(), want)
	}
}

func TestDeferConstantUntilFinish(t *testing.T) {
	// The final drain binds constant labels; they don't count as unbound.
	b := textbuf.New()
	l := b.GetLabel()

	b.PutByte(0x90)
	b.DeferConstant(l, 2, []byte{0xca, 0xfe}, 1 << 20)

	text := b.Finish()
	want := []byte{0x90, 0, 0xca, 0xfe}
	if !bytes.Equal(text.Bytes(), want) {
		t.Errorf("got % x, want % x", text.Bytes(), want)
	}
	if off := b.LabelOffset(l); off != 2 {
		t.Errorf("constant label bound at %d", off)
	}
}

func TestConstantLabelBoundBeforeIsland(t *testing.T) {
	// A constant's label belongs to the island; binding it in the
	// meantime must not rebind silently.
	b := textbuf.New()
	l := b.GetLabel()

	b.PutByte(0x90)
	b.DeferConstant(l, 1, []byte{1}, 100)
	b.BindLabel(l)

	expectPanic(t, func() {
		b.EmitIsland()
	})
}

func TestDeferConstantBoundLabel(t *testing.T) {
	b := textbuf.New()
	l := b.GetLabel()
	b.BindLabel(l)

	expectPanic(t, func() {
		b.DeferConstant(l, 1, []byte{0}, 100)
	})
}

func TestOutOfRangeWithoutVeneer(t *testing.T) {
	b := textbuf.New()
	l := b.GetLabel()

	b.PutUint32(0)
	b.UseLabelAtOffset(0, l, testUse{pos: 8, neg: 8})

	for i := 0; i < 100; i++ {
		b.PutByte(0x90)
	}
	b.BindLabel(l)

	expectPanic(t, func() {
		b.Finish()
	})
}

func TestRetryAtNextIsland(t *testing.T) {
	// An unresolved reference without veneer support survives islands
	// unchanged and is patched once the label is bound.
	b := textbuf.New()
	l := b.GetLabel()

	b.PutUint32(0)
	b.UseLabelAtOffset(0, l, testUse{pos: 1 << 20, neg: 1 << 20})

	b.EmitIsland()
	b.PutByte(0x90)
	b.BindLabel(l)

	text := b.Finish()
	if target := binary.LittleEndian.Uint32(text.Bytes()); target != 5 {
		t.Errorf("patched target %d", target)
	}
}

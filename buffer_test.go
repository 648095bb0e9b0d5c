// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package textbuf_test

import (
	"bytes"
	"testing"

	"gate.computer/textbuf"
)

func TestRoundTrip(t *testing.T) {
	// Without branch annotations the output is the literal concatenation
	// of everything emitted.
	b := textbuf.New()
	l := b.GetLabel()

	b.PutByte(0x55)
	b.PutUint16(0x3412)
	b.BindLabel(l)
	b.PutUint32(0xefbeadde)
	b.PutUint64(0x0807060504030201)
	copy(b.Extend(3), []byte{0xaa, 0xbb, 0xcc})
	b.PutBytes([]byte{0xdd, 0xee})

	if off := b.LabelOffset(l); off != 3 {
		t.Errorf("label bound at %d", off)
	}

	want := []byte{
		0x55, 0x12, 0x34,
		0xde, 0xad, 0xbe, 0xef,
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
		0xaa, 0xbb, 0xcc,
		0xdd, 0xee,
	}

	text := b.Finish()
	if !bytes.Equal(text.Bytes(), want) {
		t.Errorf("got % x, want % x", text.Bytes(), want)
	}
	if text.Len() != len(want) {
		t.Errorf("length %d", text.Len())
	}
}

func TestAlign(t *testing.T) {
	b := textbuf.New()

	b.PutByte(0xff)
	b.Align(4)
	if b.Pos() != 4 {
		t.Fatalf("position %d after aligning to 4", b.Pos())
	}
	b.Align(4) // Already aligned.
	b.Align(1)
	if b.Pos() != 4 {
		t.Fatalf("position %d after no-op alignments", b.Pos())
	}
	b.Align(8)

	want := []byte{0xff, 0, 0, 0, 0, 0, 0, 0}
	if text := b.Finish(); !bytes.Equal(text.Bytes(), want) {
		t.Errorf("got % x, want % x", text.Bytes(), want)
	}
}

func TestAlignNotPowerOfTwo(t *testing.T) {
	b := textbuf.New()

	expectPanic(t, func() {
		b.Align(3)
	})
}

func TestReserveLabelsForBlocks(t *testing.T) {
	b := textbuf.New()

	b.ReserveLabelsForBlocks(3)
	if l := b.GetLabel(); l != 3 {
		t.Errorf("first ad-hoc label is %d", l)
	}

	expectPanic(t, func() {
		b.ReserveLabelsForBlocks(1)
	})
}

func TestReserveAfterAllocation(t *testing.T) {
	b := textbuf.New()
	b.GetLabel()

	expectPanic(t, func() {
		b.ReserveLabelsForBlocks(1)
	})
}

func TestBindLabelTwice(t *testing.T) {
	b := textbuf.New()
	l := b.GetLabel()
	b.BindLabel(l)

	expectPanic(t, func() {
		b.BindLabel(l)
	})
}

func TestUseOutsideEmittedCode(t *testing.T) {
	b := textbuf.New()
	l := b.GetLabel()

	expectPanic(t, func() {
		b.UseLabelAtOffset(0, l, testUse{pos: 100, neg: 100})
	})
}

func TestFinishUnboundLabel(t *testing.T) {
	b := textbuf.New()
	b.GetLabel()

	expectPanic(t, func() {
		b.Finish()
	})
}

func TestFinishTwice(t *testing.T) {
	b := textbuf.New()
	b.Finish()

	expectPanic(t, func() {
		b.Finish()
	})
}

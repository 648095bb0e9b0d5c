// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package textbuf

import (
	"encoding/binary"
	"math"

	"gate.computer/textbuf/internal/pan"
	"gate.computer/textbuf/object"
	"golang.org/x/xerrors"
)

const noDeadline = int64(math.MaxInt64)

// Buffer accumulates the text of one function.  The zero value is not
// usable; call New.
type Buffer struct {
	buf []byte

	labelOffsets []int32 // Indexed by label; -1 until bound.
	labelAliases []Label // Indexed by label; -1 unless redirected.
	bound        []Label // In bind order, so offsets are non-decreasing.
	reserved     bool

	fixups   []fixup
	branches []branch
	consts   []constant

	deadline  int64 // Offset by which an island must be emitted.
	islandMax int32 // Worst-case size of that island.

	relocs    []object.Reloc
	traps     []object.TrapSite
	callSites []object.CallSite
	srcRanges []object.SourceRange

	srcOpen   bool
	srcStart  int32
	srcSource uint32

	finished bool
}

func New() *Buffer {
	return &Buffer{deadline: noDeadline}
}

// Pos returns the current length of the text.
func (b *Buffer) Pos() int32 {
	return int32(len(b.buf))
}

// Extend makes room for addLen more bytes and returns the uninitialized
// region.  The caller must fill it before the next buffer operation.
func (b *Buffer) Extend(addLen int) []byte {
	offset := len(b.buf)

	if size := offset + addLen; size <= cap(b.buf) {
		if size < offset { // Check for overflow
			pan.Panic(xerrors.New("buffer size out of range"))
		}

		b.buf = b.buf[:size]
	} else {
		b.grow(addLen)
	}

	return b.buf[offset:]
}

func (b *Buffer) grow(addLen int) {
	newLen := len(b.buf) + addLen

	newCap := cap(b.buf)*2 + addLen
	if newCap < cap(b.buf) { // Handle overflow
		newCap = newLen
	}

	newBuf := make([]byte, newLen, newCap)
	copy(newBuf, b.buf)
	b.buf = newBuf
}

func (b *Buffer) PutByte(value byte) {
	b.Extend(1)[0] = value
}

func (b *Buffer) PutBytes(values []byte) {
	copy(b.Extend(len(values)), values)
}

// PutUint16 emits an integer in little-endian byte order.
func (b *Buffer) PutUint16(i uint16) {
	binary.LittleEndian.PutUint16(b.Extend(2), i)
}

// PutUint32 emits an integer in little-endian byte order.
func (b *Buffer) PutUint32(i uint32) {
	binary.LittleEndian.PutUint32(b.Extend(4), i)
}

// PutUint64 emits an integer in little-endian byte order.
func (b *Buffer) PutUint64(i uint64) {
	binary.LittleEndian.PutUint64(b.Extend(8), i)
}

// Align pads the text with zero bytes until its length is a multiple of
// alignment, which must be a power of two.
func (b *Buffer) Align(alignment int32) {
	if alignment&(alignment-1) != 0 {
		pan.Panic(xerrors.Errorf("alignment is not a power of two: %d", alignment))
	}

	if n := int(-b.Pos() & (alignment - 1)); n > 0 {
		pad := b.Extend(n)
		for i := range pad {
			pad[i] = 0 // Extend may expose bytes of truncated branches.
		}
	}
}

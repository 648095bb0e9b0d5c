// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package object contains the metadata records of a finalized text section.
package object

import (
	"fmt"
	"sort"
)

// RelocKind identifies the encoding of a relocated reference.
type RelocKind uint8

const (
	RelocAbs4 = RelocKind(iota)
	RelocAbs8
	RelocPCRel4
)

func (kind RelocKind) String() string {
	switch kind {
	case RelocAbs4:
		return "abs4"

	case RelocAbs8:
		return "abs8"

	case RelocPCRel4:
		return "pcrel4"

	default:
		return fmt.Sprintf("unknown relocation kind %d", uint8(kind))
	}
}

// Reloc represents an offset within the text section where a reference to an
// external symbol must be filled in by a loader.
type Reloc struct {
	Addr   uint32 // Offset of the reference within the text
	Kind   RelocKind
	Name   string // Symbol name
	Addend int64
}

// TrapID enumerates trap causes.
type TrapID int

const (
	Unreachable = TrapID(iota)
	IntegerDivideByZero
	IntegerOverflow
	MemoryAccessOutOfBounds
	IndirectCallIndexOutOfBounds
	IndirectCallSignatureMismatch
	CallStackExhausted

	NumTraps
)

func (id TrapID) String() string {
	switch id {
	case Unreachable:
		return "unreachable"

	case IntegerDivideByZero:
		return "integer divide by zero"

	case IntegerOverflow:
		return "integer overflow"

	case MemoryAccessOutOfBounds:
		return "memory access out of bounds"

	case IndirectCallIndexOutOfBounds:
		return "indirect call index out of bounds"

	case IndirectCallSignatureMismatch:
		return "indirect call signature mismatch"

	case CallStackExhausted:
		return "call stack exhausted"

	default:
		return fmt.Sprintf("unknown trap %d", int(id))
	}
}

func (id TrapID) Error() string {
	return "trap: " + id.String()
}

// TrapSite represents an offset within the text section of an instruction
// which can cause a trap.
type TrapSite struct {
	Addr uint32 // Offset of the trapping instruction
	ID   TrapID
}

// CallSite represents an offset within the text section where a function
// call is made.
//
// The struct size or layout will not change between minor versions.
type CallSite struct {
	RetAddr     uint32 // The address immediately after the call instruction
	StackOffset int32  // Calling function's stack usage at time of call
}

func FindCallSite(a []CallSite, retAddr uint32) (i int, found bool) {
	i = sort.Search(len(a), func(i int) bool {
		return a[i].RetAddr >= retAddr
	})
	found = i < len(a) && a[i].RetAddr == retAddr
	return
}

// SourceRange maps a half-open range of text offsets back to a position in
// the source representation that the code was generated from.
type SourceRange struct {
	Start  uint32 // Text offset; inclusive.
	End    uint32 // Text offset; exclusive.
	Source uint32 // Source position (format decided by the code generator).
}

// FindSourceRange locates the range containing the given text offset among
// sorted, non-overlapping ranges.
func FindSourceRange(a []SourceRange, addr uint32) (i int, found bool) {
	i = sort.Search(len(a), func(i int) bool {
		return a[i].End > addr
	})
	found = i < len(a) && a[i].Start <= addr
	return
}

// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package textbuf implements the machine code emission buffer of a
// single-pass native code generator.  Instructions are appended as raw
// bytes; branch targets are symbolic labels which are resolved as code is
// emitted, patched in place at island flushes, or reached indirectly
// through long-range veneers when an encoding cannot span the distance.
// Redundant branches created by straightforward lowering are removed on the
// fly when labels are bound.
//
// A Buffer is exclusively owned by the compilation of one function body.
// Contract violations (binding a label twice, finishing with unbound
// labels, an out-of-range reference without veneer support) are code
// generator bugs and cause panics; see Recovered.
package textbuf

// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package textbuf

import (
	"gate.computer/textbuf/internal/pan"
)

// Recovered converts a panic value raised by this package into an error:
//
//	defer func() { err = textbuf.Recovered(recover()) }()
//
// It returns nil if x is nil, and panics again if the value did not
// originate in this package.  Emission is all-or-nothing per function; a
// recovered error means the buffer must be discarded.
func Recovered(x any) error {
	return pan.Error(x)
}

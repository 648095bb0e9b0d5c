// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pan is this module's panic zone.  Contract violations are raised
// through Panic so that an embedder driving a whole compilation can convert
// them back to an error at its outermost boundary.
package pan

import (
	"import.name/pan"
)

var z = new(pan.Zone)

var Check = z.Check
var Panic = z.Panic

func Error(x any) error {
	return z.Error(x)
}

func Must[T any](x T, err error) T {
	Check(err)
	return x
}

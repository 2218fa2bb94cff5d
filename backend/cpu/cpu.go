// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/born-ml/wengert/internal/backend/cpu"
	"github.com/born-ml/wengert/tensor"
)

// Backend represents the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new CPU backend.
//
// Example:
//
//	import (
//	    "github.com/born-ml/wengert/autodiff"
//	    "github.com/born-ml/wengert/backend/cpu"
//	)
//
//	func main() {
//	    g := autodiff.New(cpu.New())
//	}
func New() *Backend {
	return internalcpu.New()
}

// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import "github.com/born-ml/wengert/internal/tensor"

// Backend defines the kernels a device must provide for graphs to compute on
// it. Kernels allocate fresh results and report failures by panicking with an
// error; graphs turn those panics into returned errors.
//
// Implementations:
//   - backend/cpu: Pure Go
//   - backend/webgpu: GPU compute via WebGPU (Windows)
//
// Backends may also implement Synchronizer, RankLimiter and DTypeSupporter.
//
// Example:
//
//	import (
//	    "github.com/born-ml/wengert/autodiff"
//	    "github.com/born-ml/wengert/backend/cpu"
//	)
//
//	g := autodiff.New(cpu.New())
type Backend = tensor.Backend

// Synchronizer is implemented by backends with asynchronous work.
type Synchronizer = tensor.Synchronizer

// RankLimiter is implemented by backends with a maximum tensor rank.
type RankLimiter = tensor.RankLimiter

// DTypeSupporter is implemented by backends restricted to some data types.
type DTypeSupporter = tensor.DTypeSupporter

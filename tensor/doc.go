// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the tensor values and device types computation
// graphs are built from.
//
// # Overview
//
// This package provides:
//   - RawTensor: dense row-major values in float32 or float64
//   - Shape, DataType, Device: core type definitions
//   - Backend: interface for device-specific kernels
//   - Error kinds shared by backends and graphs
//
// # Basic Usage
//
//	x, err := tensor.FromSlice([]float64{1, 2, 3, 4}, tensor.Shape{2, 2}, tensor.CPU)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(x) // float64[2 2]@CPU
//
// # Broadcasting
//
// Element-wise operations follow NumPy broadcasting rules:
//
//	tensor.BroadcastShapes(tensor.Shape{3, 1}, tensor.Shape{1, 4}) // (3, 4)
//
// # Errors
//
// Failures wrap one of the Err* kinds with context:
//
//	if errors.Is(err, tensor.ErrShapeMismatch) { ... }
package tensor

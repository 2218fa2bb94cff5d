// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the WebGPU backend for GPU-accelerated tensor operations.
//
// The backend runs WGSL compute shaders through wgpu-native and is currently
// available on Windows only. It computes in float32 and holds tensors of rank
// at most 4.
//
// Example:
//
//	import (
//	    "github.com/born-ml/wengert/autodiff"
//	    "github.com/born-ml/wengert/backend/cpu"
//	    "github.com/born-ml/wengert/backend/webgpu"
//	    "github.com/born-ml/wengert/tensor"
//	)
//
//	func main() {
//	    var b tensor.Backend = cpu.New()
//	    if webgpu.IsAvailable() {
//	        if gpu, err := webgpu.Open(); err == nil {
//	            b = gpu
//	        }
//	    }
//	    g := autodiff.New(b)
//	}
package webgpu

import (
	internalwebgpu "github.com/born-ml/wengert/internal/backend/webgpu"
	"github.com/born-ml/wengert/tensor"
)

// Open initializes a WebGPU device and returns a backend computing on it.
//
// Returns an error wrapping tensor.ErrDeviceFailure if initialization fails
// (e.g., no compatible GPU or an unsupported platform).
func Open() (tensor.Backend, error) {
	return internalwebgpu.Open()
}

// IsAvailable checks if WebGPU is available on the current system.
//
// It's useful for graceful fallback to the CPU backend when no GPU is present.
func IsAvailable() bool {
	return internalwebgpu.IsAvailable()
}

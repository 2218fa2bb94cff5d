// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides a pure Go CPU backend for tensor operations.
//
// # Overview
//
// This package implements a CPU backend with:
//   - Pure Go implementation (no CGO)
//   - Float32 and Float64 support
//   - Batched matrix multiplication
//   - NumPy-compatible broadcasting
//
// The CPU backend has no rank limit and completes every kernel before it
// returns, so graphs never need to synchronize it.
package cpu

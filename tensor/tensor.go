// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/wengert/internal/tensor"
)

// Type aliases for public API

// Float is a constraint for the element types tensors can hold.
type Float = tensor.Float

// DataType represents the underlying data type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
)

// Device represents the device where tensor data resides.
type Device = tensor.Device

// Device constants.
const (
	CPU    Device = tensor.CPU
	WebGPU Device = tensor.WebGPU
)

// ParseDevice parses a device name such as "cpu" or "webgpu".
func ParseDevice(name string) (Device, error) {
	return tensor.ParseDevice(name)
}

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// BroadcastShapes returns the NumPy-style broadcast of a and b.
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	return tensor.BroadcastShapes(a, b)
}

// RawTensor is the dense row-major tensor value nodes hold.
//
// Example:
//
//	raw, _ := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
//	data := raw.AsFloat32()  // Type-safe access
//	clone := raw.Clone()     // Independent copy
type RawTensor = tensor.RawTensor

// NewRaw allocates a zero-filled tensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// FromSlice creates a tensor from a copy of data.
//
//	t, err := tensor.FromSlice([]float64{1, 2, 3, 4}, tensor.Shape{2, 2}, tensor.CPU)
func FromSlice[T Float](data []T, shape Shape, device Device) (*RawTensor, error) {
	return tensor.FromSlice(data, shape, device)
}

// Scalar creates a rank-0 tensor.
func Scalar[T Float](value T, device Device) (*RawTensor, error) {
	return tensor.Scalar(value, device)
}

// Diag creates a square matrix with values on its diagonal.
func Diag[T Float](values []T, device Device) (*RawTensor, error) {
	return tensor.Diag(values, device)
}

// Zeros creates a tensor filled with zeros.
func Zeros(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.Zeros(shape, dtype, device)
}

// Ones creates a tensor filled with ones.
func Ones(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.Ones(shape, dtype, device)
}

// Full creates a tensor filled with value.
func Full(shape Shape, value float64, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.Full(shape, value, dtype, device)
}

// Error kinds. Classify failures with errors.Is.
var (
	ErrShape               = tensor.ErrShape
	ErrShapeMismatch       = tensor.ErrShapeMismatch
	ErrUnsupportedOperator = tensor.ErrUnsupportedOperator
	ErrDeviceMismatch      = tensor.ErrDeviceMismatch
	ErrGraphConsistency    = tensor.ErrGraphConsistency
	ErrDeviceFailure       = tensor.ErrDeviceFailure
)

package webgpu

import "github.com/born-ml/wengert/internal/tensor"

// Open creates a WebGPU backend behind the tensor.Backend interface.
// On platforms without WebGPU bindings it fails with tensor.ErrDeviceFailure.
func Open() (tensor.Backend, error) {
	return open()
}

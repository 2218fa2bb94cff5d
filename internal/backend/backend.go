// Package backend selects a tensor.Backend implementation for a device.
package backend

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/wengert/internal/backend/cpu"
	"github.com/born-ml/wengert/internal/backend/webgpu"
	"github.com/born-ml/wengert/internal/tensor"
)

// Open returns the backend that executes kernels on device.
// Unavailable devices fail with an error wrapping tensor.ErrDeviceFailure.
func Open(device tensor.Device) (tensor.Backend, error) {
	switch device {
	case tensor.CPU:
		return cpu.New(), nil
	case tensor.WebGPU:
		b, err := webgpu.Open()
		if err != nil {
			klog.Warningf("backend: %s unavailable: %v", device, err)
			return nil, err
		}
		return b, nil
	default:
		return nil, errors.Wrapf(tensor.ErrDeviceFailure, "backend: unknown device %d", int(device))
	}
}

//go:build !windows

package webgpu

import (
	"runtime"

	"github.com/pkg/errors"

	"github.com/born-ml/wengert/internal/tensor"
)

// IsAvailable reports false: the WebGPU bindings are only built on windows.
func IsAvailable() bool {
	return false
}

func open() (tensor.Backend, error) {
	return nil, errors.Wrapf(tensor.ErrDeviceFailure, "webgpu: not supported on %s", runtime.GOOS)
}

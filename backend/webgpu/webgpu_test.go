// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package webgpu_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/wengert/backend/webgpu"
	"github.com/born-ml/wengert/tensor"
)

func TestOpen(t *testing.T) {
	b, err := webgpu.Open()
	if !webgpu.IsAvailable() {
		assert.True(t, errors.Is(err, tensor.ErrDeviceFailure), "got %v", err)
		return
	}
	require.NoError(t, err)
	assert.Equal(t, tensor.WebGPU, b.Device())
}

//go:build windows

package webgpu

import "fmt"

// WGSL compute shaders. Every shader binds its storage inputs first, then the
// read_write result, then a uniform Params struct.

// workgroupSize is the default number of threads per workgroup.
const workgroupSize = 256

// binaryShader returns an element-wise shader over two same-shaped inputs
// computing result = a <op> b.
func binaryShader(op string) string {
	return fmt.Sprintf(`
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> b: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(%d)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx < params.size) {
        result[idx] = a[idx] %s b[idx];
    }
}
`, workgroupSize, op)
}

// unaryShader returns an element-wise shader computing result = fn(input),
// where fn is a WGSL function name or prefix operator.
func unaryShader(fn string) string {
	return fmt.Sprintf(`
@group(0) @binding(0) var<storage, read> input: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
}
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(%d)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx < params.size) {
        result[idx] = %s(input[idx]);
    }
}
`, workgroupSize, fn)
}

// Element-wise shaders, keyed by kernel name.
var (
	addShader = binaryShader("+")
	subShader = binaryShader("-")
	mulShader = binaryShader("*")
	negShader = unaryShader("-")
	expShader = unaryShader("exp")
	sinShader = unaryShader("sin")
	cosShader = unaryShader("cos")
)

// batchMatMulShader performs batched matrix multiplication: C[b] = A[b] @ B[b].
// A is [batch, M, K], B is [batch, K, N], C is [batch, M, N].
const batchMatMulShader = `
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> b: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

struct Params {
    batch: u32,
    M: u32,
    K: u32,
    N: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(8, 8, 1)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let batch_idx = global_id.z;
    let row = global_id.y;
    let col = global_id.x;

    if (batch_idx >= params.batch || row >= params.M || col >= params.N) {
        return;
    }

    let a_batch_offset = batch_idx * params.M * params.K;
    let b_batch_offset = batch_idx * params.K * params.N;
    let c_batch_offset = batch_idx * params.M * params.N;

    var sum: f32 = 0.0;
    for (var k: u32 = 0u; k < params.K; k = k + 1u) {
        let a_idx = a_batch_offset + row * params.K + k;
        let b_idx = b_batch_offset + k * params.N + col;
        sum = sum + a[a_idx] * b[b_idx];
    }

    let c_idx = c_batch_offset + row * params.N + col;
    result[c_idx] = sum;
}
`

// expandShader broadcasts input to the output shape. Shapes are left-padded
// with ones to ndim (at most 4).
const expandShader = `
@group(0) @binding(0) var<storage, read> input: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;

struct Params {
    ndim: u32,
    total_elements: u32,
    in_shape_0: u32,
    in_shape_1: u32,
    in_shape_2: u32,
    in_shape_3: u32,
    in_strides_0: u32,
    in_strides_1: u32,
    in_strides_2: u32,
    in_strides_3: u32,
    out_strides_0: u32,
    out_strides_1: u32,
    out_strides_2: u32,
    out_strides_3: u32,
}
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let out_idx = global_id.x;
    if (out_idx >= params.total_elements) {
        return;
    }

    var in_shape = array<u32, 4>(params.in_shape_0, params.in_shape_1, params.in_shape_2, params.in_shape_3);
    var in_strides = array<u32, 4>(params.in_strides_0, params.in_strides_1, params.in_strides_2, params.in_strides_3);
    var out_strides = array<u32, 4>(params.out_strides_0, params.out_strides_1, params.out_strides_2, params.out_strides_3);

    var temp = out_idx;
    var in_idx: u32 = 0u;
    for (var d: u32 = 0u; d < params.ndim; d = d + 1u) {
        let coord = temp / out_strides[d];
        temp = temp % out_strides[d];
        // Size-1 input dims broadcast.
        in_idx = in_idx + select(coord, 0u, in_shape[d] == 1u) * in_strides[d];
    }

    result[out_idx] = input[in_idx];
}
`

// transposeNDShader permutes up to 4 dimensions: result axis d reads input axis axes[d].
const transposeNDShader = `
@group(0) @binding(0) var<storage, read> input: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;

struct Params {
    ndim: u32,
    total_elements: u32,
    in_strides_0: u32,
    in_strides_1: u32,
    in_strides_2: u32,
    in_strides_3: u32,
    out_strides_0: u32,
    out_strides_1: u32,
    out_strides_2: u32,
    out_strides_3: u32,
    axes_0: u32,
    axes_1: u32,
    axes_2: u32,
    axes_3: u32,
}
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.total_elements) {
        return;
    }

    var in_strides = array<u32, 4>(params.in_strides_0, params.in_strides_1, params.in_strides_2, params.in_strides_3);
    var out_strides = array<u32, 4>(params.out_strides_0, params.out_strides_1, params.out_strides_2, params.out_strides_3);
    var axes = array<u32, 4>(params.axes_0, params.axes_1, params.axes_2, params.axes_3);

    var temp = idx;
    var input_idx: u32 = 0u;
    for (var d: u32 = 0u; d < params.ndim; d = d + 1u) {
        let coord = temp / out_strides[d];
        temp = temp % out_strides[d];
        input_idx = input_idx + coord * in_strides[axes[d]];
    }

    result[idx] = input[input_idx];
}
`

// sumDimShader reduces the middle axis of an input viewed as [outer, size, inner].
// Output: [outer, inner], one invocation per output element.
const sumDimShader = `
@group(0) @binding(0) var<storage, read> input: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;

struct Params {
    outer: u32,
    size: u32,
    inner: u32,
    total: u32,
}
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.total) {
        return;
    }

    let o = idx / params.inner;
    let i = idx % params.inner;
    var sum: f32 = 0.0;
    for (var d: u32 = 0u; d < params.size; d = d + 1u) {
        sum = sum + input[(o * params.size + d) * params.inner + i];
    }

    result[idx] = sum;
}
`

package ops_test

import (
	"math"
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/wengert/internal/autodiff/ops"
	"github.com/born-ml/wengert/internal/backend/cpu"
	"github.com/born-ml/wengert/internal/tensor"
)

func raw(t *testing.T, data []float64, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.FromSlice(data, shape, tensor.CPU)
	require.NoError(t, err)
	return r
}

func TestKindMetadata(t *testing.T) {
	tests := []struct {
		kind  ops.Kind
		name  string
		arity int
	}{
		{ops.Leaf, "Leaf", 0},
		{ops.Add, "Add", 2},
		{ops.Sub, "Sub", 2},
		{ops.Mul, "Mul", 2},
		{ops.MatMul, "MatMul", 2},
		{ops.Expm, "Expm", 1},
		{ops.Sum, "Sum", 1},
		{ops.Sin, "Sin", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.name, tt.kind.String())
		assert.Equal(t, tt.arity, tt.kind.Arity())
		assert.True(t, tt.kind.Valid())
	}
	assert.False(t, ops.Kind(99).Valid())
	assert.Equal(t, -1, ops.Kind(99).Arity())

	err := exceptions.TryCatch[error](func() { ops.Kind(99).Operation() })
	assert.True(t, errors.Is(err, tensor.ErrUnsupportedOperator), "got %v", err)
}

func TestInferShape(t *testing.T) {
	tests := []struct {
		name    string
		kind    ops.Kind
		shapes  []tensor.Shape
		want    tensor.Shape
		wantErr bool
	}{
		{"add broadcast", ops.Add, []tensor.Shape{{3, 1}, {1, 4}}, tensor.Shape{3, 4}, false},
		{"sub incompatible", ops.Sub, []tensor.Shape{{3}, {4}}, nil, true},
		{"matmul", ops.MatMul, []tensor.Shape{{2, 3}, {3, 5}}, tensor.Shape{2, 5}, false},
		{"matmul batched", ops.MatMul, []tensor.Shape{{4, 2, 3}, {4, 3, 5}}, tensor.Shape{4, 2, 5}, false},
		{"matmul inner", ops.MatMul, []tensor.Shape{{2, 3}, {2, 3}}, nil, true},
		{"matmul batch", ops.MatMul, []tensor.Shape{{4, 2, 3}, {2, 3, 5}}, nil, true},
		{"matmul rank", ops.MatMul, []tensor.Shape{{3}, {3, 1}}, nil, true},
		{"expm", ops.Expm, []tensor.Shape{{3, 3}}, tensor.Shape{3, 3}, false},
		{"expm non-square", ops.Expm, []tensor.Shape{{2, 3}}, nil, true},
		{"expm vector", ops.Expm, []tensor.Shape{{3}}, nil, true},
		{"sum", ops.Sum, []tensor.Shape{{2, 3}}, tensor.Shape{}, false},
		{"sin", ops.Sin, []tensor.Shape{{2, 3}}, tensor.Shape{2, 3}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.kind.Operation().InferShape(tt.shapes...)
			if tt.wantErr {
				assert.True(t, errors.Is(err, tensor.ErrShapeMismatch), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %v want %v", got, tt.want)
		})
	}
}

func TestAddBackwardReducesBroadcast(t *testing.T) {
	backend := cpu.New()
	a := raw(t, []float64{1, 2, 3}, tensor.Shape{3, 1})
	b := raw(t, []float64{1, 2, 3, 4}, tensor.Shape{4})
	out := ops.AddOp{}.Forward(backend, a, b)
	require.True(t, out.Shape().Equal(tensor.Shape{3, 4}))

	g, _ := tensor.Ones(out.Shape(), tensor.Float64, tensor.CPU)
	grads := ops.AddOp{}.Backward(backend, g, out, a, b)
	require.Len(t, grads, 2)
	assert.True(t, grads[0].Shape().Equal(tensor.Shape{3, 1}))
	assert.Equal(t, []float64{4, 4, 4}, grads[0].AsFloat64())
	assert.True(t, grads[1].Shape().Equal(tensor.Shape{4}))
	assert.Equal(t, []float64{3, 3, 3, 3}, grads[1].AsFloat64())
}

func TestSubAndMulBackward(t *testing.T) {
	backend := cpu.New()
	x := raw(t, []float64{1, 2}, tensor.Shape{2})
	y := raw(t, []float64{3, 4}, tensor.Shape{2})
	g := raw(t, []float64{1, 1}, tensor.Shape{2})

	sub := ops.SubOp{}.Backward(backend, g, nil, x, y)
	assert.Equal(t, []float64{1, 1}, sub[0].AsFloat64())
	assert.Equal(t, []float64{-1, -1}, sub[1].AsFloat64())

	mul := ops.MulOp{}.Backward(backend, g, nil, x, y)
	assert.Equal(t, []float64{3, 4}, mul[0].AsFloat64())
	assert.Equal(t, []float64{1, 2}, mul[1].AsFloat64())
}

func TestMatMulBackward(t *testing.T) {
	backend := cpu.New()
	a := raw(t, []float64{1, 2, 3, 4}, tensor.Shape{2, 2})
	b := raw(t, []float64{5, 6, 7, 8}, tensor.Shape{2, 2})
	g, _ := tensor.Ones(tensor.Shape{2, 2}, tensor.Float64, tensor.CPU)

	grads := ops.MatMulOp{}.Backward(backend, g, nil, a, b)
	// ones @ b^T: every row is the row sums of b.
	assert.Equal(t, []float64{11, 15, 11, 15}, grads[0].AsFloat64())
	// a^T @ ones: row i holds the sum of column i of a.
	assert.Equal(t, []float64{4, 4, 6, 6}, grads[1].AsFloat64())
}

func TestExpmForwardAndDividedDifferences(t *testing.T) {
	backend := cpu.New()
	x := raw(t, []float64{1, 0, 0, 0, 1, 0, 0, 0, 2}, tensor.Shape{3, 3})

	out := ops.ExpmOp{}.Forward(backend, x)
	e1, e2 := math.E, math.Exp(2)
	assert.InDeltaSlice(t, []float64{e1, 0, 0, 0, e1, 0, 0, 0, e2}, out.AsFloat64(), 1e-12)

	g, _ := tensor.Ones(tensor.Shape{3, 3}, tensor.Float64, tensor.CPU)
	grads := ops.ExpmOp{}.Backward(backend, g, out, x)
	dd := e2 - e1
	assert.InDeltaSlice(t, []float64{
		e1, e1, dd,
		e1, e1, dd,
		dd, dd, e2,
	}, grads[0].AsFloat64(), 1e-12)
}

func TestExpmRejectsNonDiagonal(t *testing.T) {
	x := raw(t, []float64{1, 2, 0, 1}, tensor.Shape{2, 2})
	assert.True(t, errors.Is(ops.CheckDiagonal(x), tensor.ErrUnsupportedOperator))

	err := exceptions.TryCatch[error](func() { ops.ExpmOp{}.Forward(cpu.New(), x) })
	assert.True(t, errors.Is(err, tensor.ErrUnsupportedOperator), "got %v", err)
}

func TestExpmBatched(t *testing.T) {
	x := raw(t, []float64{0, 0, 0, 1, 2, 0, 0, 2}, tensor.Shape{2, 2, 2})
	require.NoError(t, ops.CheckDiagonal(x))

	d := ops.DividedDifferences(x, tensor.CPU)
	assert.InDeltaSlice(t, []float64{
		1, math.E - 1, math.E - 1, math.E,
		math.Exp(2), math.Exp(2), math.Exp(2), math.Exp(2),
	}, d.AsFloat64(), 1e-12)
}

func TestDividedDifferencesCloseEigenvalues(t *testing.T) {
	// Near-equal eigenvalues must approach e^λ without cancellation.
	x := raw(t, []float64{1, 0, 0, 1 + 1e-12}, tensor.Shape{2, 2})
	d := ops.DividedDifferences(x, tensor.CPU)
	assert.InDelta(t, math.E, d.AsFloat64()[1], 1e-9)
}

func TestSumAndSinBackward(t *testing.T) {
	backend := cpu.New()
	x := raw(t, []float64{0, math.Pi / 2, math.Pi}, tensor.Shape{3})

	sum := ops.SumOp{}.Forward(backend, x)
	assert.InDelta(t, 1.5*math.Pi, sum.AsFloat64()[0], 1e-12)

	seed := raw(t, []float64{2}, tensor.Shape{})
	grads := ops.SumOp{}.Backward(backend, seed, sum, x)
	assert.Equal(t, []float64{2, 2, 2}, grads[0].AsFloat64())

	g, _ := tensor.Ones(tensor.Shape{3}, tensor.Float64, tensor.CPU)
	sinGrads := ops.SinOp{}.Backward(backend, g, nil, x)
	assert.InDeltaSlice(t, []float64{1, 0, -1}, sinGrads[0].AsFloat64(), 1e-12)
}

package autodiff_test

import (
	"math"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/wengert/internal/autodiff"
	"github.com/born-ml/wengert/internal/autodiff/ops"
	"github.com/born-ml/wengert/internal/backend/cpu"
	"github.com/born-ml/wengert/internal/tensor"
)

func newGraph(opts ...autodiff.Option) *autodiff.Graph {
	return autodiff.New(cpu.New(), opts...)
}

func leaf(t testing.TB, g *autodiff.Graph, data []float64, shape tensor.Shape) autodiff.Node {
	t.Helper()
	raw, err := tensor.FromSlice(data, shape, tensor.CPU)
	require.NoError(t, err)
	n, err := g.Tensor(raw)
	require.NoError(t, err)
	return n
}

func value(t *testing.T, n autodiff.Node) []float64 {
	t.Helper()
	v, err := n.Value()
	require.NoError(t, err)
	return v.Float64s()
}

func grad(t *testing.T, n autodiff.Node) []float64 {
	t.Helper()
	v, err := n.Grad()
	require.NoError(t, err)
	return v.Float64s()
}

func ones(t *testing.T, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.Ones(shape, tensor.Float64, tensor.CPU)
	require.NoError(t, err)
	return r
}

func TestProductRule(t *testing.T) {
	g := newGraph()
	x := leaf(t, g, []float64{1, 2}, tensor.Shape{2})
	y := leaf(t, g, []float64{3, 4}, tensor.Shape{2})
	z := autodiff.Must(x.Mul(y))

	require.NoError(t, z.Forward())
	assert.Equal(t, []float64{3, 8}, value(t, z))

	require.NoError(t, z.Backward(ones(t, tensor.Shape{2})))
	assert.Equal(t, []float64{3, 4}, grad(t, x))
	assert.Equal(t, []float64{1, 2}, grad(t, y))
}

func TestElementwiseChain(t *testing.T) {
	g := newGraph()
	x := leaf(t, g, []float64{1, 2}, tensor.Shape{2})
	y := leaf(t, g, []float64{3, 4}, tensor.Shape{2})
	z := autodiff.Must(autodiff.Must(x.Add(y)).Mul(x))

	require.NoError(t, z.Forward())
	assert.Equal(t, []float64{4, 12}, value(t, z))

	require.NoError(t, z.Backward())
	assert.Equal(t, []float64{5, 8}, grad(t, x))
	assert.Equal(t, []float64{1, 2}, grad(t, y))
}

func TestGradientAccumulation(t *testing.T) {
	g := newGraph()
	x := leaf(t, g, []float64{1, 2}, tensor.Shape{2})
	y := leaf(t, g, []float64{3, 4}, tensor.Shape{2})
	z := autodiff.Must(x.Add(y))
	w := autodiff.Must(z.Add(x))

	require.NoError(t, w.Forward())
	require.NoError(t, w.Backward())
	assert.Equal(t, []float64{2, 2}, grad(t, x))
	assert.Equal(t, []float64{1, 1}, grad(t, y))
	assert.Equal(t, []float64{1, 1}, grad(t, z))

	// A node used twice by the same operator: d(x*x)/dx = 2x.
	sq := autodiff.Must(x.Mul(x))
	require.NoError(t, sq.Forward())
	require.NoError(t, sq.Backward())
	assert.Equal(t, []float64{2, 4}, grad(t, x))
}

func TestSubGradient(t *testing.T) {
	g := newGraph()
	x := leaf(t, g, []float64{5, 7}, tensor.Shape{2})
	y := leaf(t, g, []float64{1, 2}, tensor.Shape{2})
	z := autodiff.Must(x.Sub(y))

	require.NoError(t, z.Forward())
	assert.Equal(t, []float64{4, 5}, value(t, z))
	require.NoError(t, z.Backward())
	assert.Equal(t, []float64{1, 1}, grad(t, x))
	assert.Equal(t, []float64{-1, -1}, grad(t, y))
}

func TestBroadcastReduce(t *testing.T) {
	g := newGraph()
	a := leaf(t, g, []float64{1, 2, 3}, tensor.Shape{3, 1})
	b := leaf(t, g, []float64{10, 20, 30, 40}, tensor.Shape{1, 4})
	z := autodiff.Must(a.Add(b))
	assert.True(t, z.Shape().Equal(tensor.Shape{3, 4}))

	require.NoError(t, z.Forward())
	require.NoError(t, z.Backward())

	ga, err := a.Grad()
	require.NoError(t, err)
	assert.True(t, ga.Shape().Equal(tensor.Shape{3, 1}))
	assert.Equal(t, []float64{4, 4, 4}, ga.Float64s())

	gb, err := b.Grad()
	require.NoError(t, err)
	assert.True(t, gb.Shape().Equal(tensor.Shape{1, 4}))
	assert.Equal(t, []float64{3, 3, 3, 3}, gb.Float64s())
}

func TestMatMulGradient(t *testing.T) {
	g := newGraph()
	x := leaf(t, g, []float64{1, 2, 3, 4}, tensor.Shape{2, 2})
	y := leaf(t, g, []float64{5, 6, 7, 8}, tensor.Shape{2, 2})
	z := autodiff.Must(x.MatMul(y))

	require.NoError(t, z.Forward())
	assert.Equal(t, []float64{19, 22, 43, 50}, value(t, z))

	require.NoError(t, z.Backward(ones(t, tensor.Shape{2, 2})))
	// seed @ y^T and x^T @ seed
	assert.Equal(t, []float64{11, 15, 11, 15}, grad(t, x))
	assert.Equal(t, []float64{4, 4, 6, 6}, grad(t, y))
}

func TestBatchedMatMulGradient(t *testing.T) {
	g := newGraph()
	x := leaf(t, g, []float64{1, 0, 0, 1, 2, 0, 0, 2}, tensor.Shape{2, 2, 2})
	y := leaf(t, g, []float64{1, 2, 3, 4, 5, 6, 7, 8}, tensor.Shape{2, 2, 2})
	z := autodiff.Must(x.MatMul(y))

	require.NoError(t, z.Forward())
	assert.Equal(t, []float64{1, 2, 3, 4, 10, 12, 14, 16}, value(t, z))

	require.NoError(t, z.Backward())
	assert.Equal(t, []float64{3, 7, 3, 7, 11, 15, 11, 15}, grad(t, x))
	assert.Equal(t, []float64{1, 1, 1, 1, 2, 2, 2, 2}, grad(t, y))
}

func TestDiagonalExpmGradient(t *testing.T) {
	g := newGraph()
	diag, err := tensor.Diag([]float64{1, 1, 2}, tensor.CPU)
	require.NoError(t, err)
	x, err := g.Tensor(diag)
	require.NoError(t, err)
	z := autodiff.Must(x.Expm())

	require.NoError(t, z.Forward())
	e1, e2 := math.E, math.Exp(2)
	assert.InDeltaSlice(t, []float64{e1, 0, 0, 0, e1, 0, 0, 0, e2}, value(t, z), 1e-12)

	require.NoError(t, z.Backward(ones(t, tensor.Shape{3, 3})))
	dd := (e2 - e1) / (2 - 1)
	assert.InDeltaSlice(t, []float64{
		e1, e1, dd,
		e1, e1, dd,
		dd, dd, e2,
	}, grad(t, x), 1e-12)
}

func TestSumAndSin(t *testing.T) {
	g := newGraph()
	x := leaf(t, g, []float64{0, math.Pi / 2}, tensor.Shape{2})
	s := autodiff.Must(autodiff.Must(x.Sin()).Sum())
	assert.Equal(t, 0, s.Shape().Rank())

	require.NoError(t, s.Forward())
	assert.InDeltaSlice(t, []float64{1}, value(t, s), 1e-12)

	require.NoError(t, s.Backward())
	assert.InDeltaSlice(t, []float64{1, 0}, grad(t, x), 1e-12)
}

func TestFloat32Graph(t *testing.T) {
	g := newGraph()
	raw, err := tensor.FromSlice([]float32{1, 2}, tensor.Shape{2}, tensor.CPU)
	require.NoError(t, err)
	x, err := g.Tensor(raw)
	require.NoError(t, err)
	z := autodiff.Must(x.Mul(x))
	assert.Equal(t, tensor.Float32, z.DType())

	require.NoError(t, z.Forward())
	require.NoError(t, z.Backward())
	gx, err := x.Grad()
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 4}, gx.AsFloat32())
}

func TestTopologicalOrder(t *testing.T) {
	g := newGraph()
	x := leaf(t, g, []float64{1, 2}, tensor.Shape{2})
	y := leaf(t, g, []float64{3, 4}, tensor.Shape{2})
	z := autodiff.Must(x.Add(y))
	w := autodiff.Must(autodiff.Must(z.Mul(x)).Sub(z))

	assert.Equal(t, 5, g.Len())
	for _, n := range []autodiff.Node{x, y, z, w} {
		assert.Equal(t, g, n.Graph())
		for _, p := range n.Parents() {
			assert.Less(t, p, n.ID())
		}
	}
	assert.Equal(t, ops.Sub, w.Op())
	assert.Equal(t, []autodiff.NodeID{x.ID(), y.ID()}, z.Parents())
}

func TestMemoization(t *testing.T) {
	g := newGraph(autodiff.WithInstrumentation())
	counter := g.Instrumentation()
	require.NotNil(t, counter)

	x := leaf(t, g, []float64{1, 2}, tensor.Shape{2})
	y := leaf(t, g, []float64{3, 4}, tensor.Shape{2})
	s := autodiff.Must(x.Add(y))
	z := autodiff.Must(s.Mul(s))

	require.NoError(t, z.Forward())
	assert.Equal(t, 2, counter.Total(), "shared sub-expression must run once")

	require.NoError(t, z.Forward())
	assert.Equal(t, 2, counter.Total(), "second forward must not run kernels")

	total := autodiff.Must(z.Sum())
	require.NoError(t, total.Forward())
	assert.Equal(t, 3, counter.Total())
	assert.Equal(t, 1, counter.Calls("sum"))
}

func TestGradOfUnreachedNodeIsZero(t *testing.T) {
	g := newGraph()
	x := leaf(t, g, []float64{1, 2}, tensor.Shape{2})
	y := leaf(t, g, []float64{3, 4}, tensor.Shape{2})
	unrelated := leaf(t, g, []float64{5, 6, 7}, tensor.Shape{3})
	z := autodiff.Must(x.Mul(y))

	require.NoError(t, z.Forward())
	require.NoError(t, z.Backward())
	assert.Equal(t, []float64{0, 0, 0}, grad(t, unrelated))

	// A later pass from y resets everything it does not reach.
	require.NoError(t, y.Backward())
	assert.Equal(t, []float64{1, 1}, grad(t, y))
	assert.Equal(t, []float64{0, 0}, grad(t, x))

	g.ZeroGrad()
	assert.Equal(t, []float64{0, 0}, grad(t, y))
}

func TestGradBeforeBackwardIsZero(t *testing.T) {
	g := newGraph()
	x := leaf(t, g, []float64{1, 2, 3}, tensor.Shape{3})
	z := autodiff.Must(x.Sum())

	gx, err := x.Grad()
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, gx.Float64s())

	gz, err := z.Grad()
	require.NoError(t, err)
	assert.Equal(t, 0, gz.Shape().Rank())
	assert.Equal(t, []float64{0}, gz.Float64s())
}

func TestReturnedTensorsAreCopies(t *testing.T) {
	g := newGraph()
	x := leaf(t, g, []float64{1, 2}, tensor.Shape{2})
	z := autodiff.Must(x.Mul(x))
	require.NoError(t, z.Forward())

	xv, err := x.Value()
	require.NoError(t, err)
	xv.AsFloat64()[0] = 100
	zv, err := z.Value()
	require.NoError(t, err)
	zv.AsFloat64()[1] = -1

	require.NoError(t, z.Backward())
	assert.Equal(t, []float64{2, 4}, grad(t, x))
	assert.Equal(t, []float64{1, 4}, value(t, z))

	gx, err := x.Grad()
	require.NoError(t, err)
	gx.AsFloat64()[0] = 7
	assert.Equal(t, []float64{2, 4}, grad(t, x))

	seed := ones(t, tensor.Shape{2})
	require.NoError(t, x.Backward(seed))
	seed.AsFloat64()[0] = 42
	assert.Equal(t, []float64{1, 1}, grad(t, x))

	// A second pass from z still sees the original values.
	require.NoError(t, z.Backward())
	assert.Equal(t, []float64{2, 4}, grad(t, x))
}

func TestErrors(t *testing.T) {
	t.Run("ExpmNonDiagonalLeaf", func(t *testing.T) {
		g := newGraph()
		x := leaf(t, g, []float64{1, 2, 0, 1}, tensor.Shape{2, 2})
		n := g.Len()
		_, err := x.Expm()
		assert.True(t, errors.Is(err, autodiff.ErrUnsupportedOperator), "got %v", err)
		assert.Equal(t, n, g.Len(), "failed apply must not append")
	})

	t.Run("ExpmNonSquare", func(t *testing.T) {
		g := newGraph()
		x := leaf(t, g, []float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
		_, err := x.Expm()
		assert.True(t, errors.Is(err, autodiff.ErrShapeMismatch), "got %v", err)
	})

	t.Run("MatMulInnerDim", func(t *testing.T) {
		g := newGraph()
		x := leaf(t, g, []float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
		_, err := x.MatMul(x)
		assert.True(t, errors.Is(err, autodiff.ErrShapeMismatch), "got %v", err)
		assert.Equal(t, 1, g.Len())
	})

	t.Run("NotBroadcastable", func(t *testing.T) {
		g := newGraph()
		x := leaf(t, g, []float64{1, 2, 3}, tensor.Shape{3})
		y := leaf(t, g, []float64{1, 2}, tensor.Shape{2})
		_, err := x.Add(y)
		assert.True(t, errors.Is(err, autodiff.ErrShapeMismatch), "got %v", err)
	})

	t.Run("DTypeMismatch", func(t *testing.T) {
		g := newGraph()
		x := leaf(t, g, []float64{1}, tensor.Shape{1})
		raw, _ := tensor.FromSlice([]float32{1}, tensor.Shape{1}, tensor.CPU)
		y, err := g.Tensor(raw)
		require.NoError(t, err)
		_, err = x.Mul(y)
		assert.True(t, errors.Is(err, autodiff.ErrShapeMismatch), "got %v", err)
	})

	t.Run("CrossGraph", func(t *testing.T) {
		g1, g2 := newGraph(), newGraph()
		x := leaf(t, g1, []float64{1}, tensor.Shape{1})
		y := leaf(t, g2, []float64{1}, tensor.Shape{1})
		_, err := x.Add(y)
		assert.True(t, errors.Is(err, autodiff.ErrDeviceMismatch), "got %v", err)
	})

	t.Run("LeafOnOtherDevice", func(t *testing.T) {
		g := newGraph()
		raw, _ := tensor.FromSlice([]float64{1}, tensor.Shape{1}, tensor.WebGPU)
		_, err := g.Tensor(raw)
		assert.True(t, errors.Is(err, autodiff.ErrDeviceMismatch), "got %v", err)
	})

	t.Run("ValueBeforeForward", func(t *testing.T) {
		g := newGraph()
		x := leaf(t, g, []float64{1}, tensor.Shape{1})
		z := autodiff.Must(x.Add(x))
		_, err := z.Value()
		assert.True(t, errors.Is(err, autodiff.ErrGraphConsistency), "got %v", err)
		err = z.Backward()
		assert.True(t, errors.Is(err, autodiff.ErrGraphConsistency), "got %v", err)
	})

	t.Run("SeedMismatch", func(t *testing.T) {
		g := newGraph()
		x := leaf(t, g, []float64{1, 2}, tensor.Shape{2})
		require.NoError(t, x.Forward())

		err := x.Backward(ones(t, tensor.Shape{3}))
		assert.True(t, errors.Is(err, autodiff.ErrShapeMismatch), "got %v", err)

		seed32, _ := tensor.Ones(tensor.Shape{2}, tensor.Float32, tensor.CPU)
		err = x.Backward(seed32)
		assert.True(t, errors.Is(err, autodiff.ErrShapeMismatch), "got %v", err)

		gpuSeed, _ := tensor.Ones(tensor.Shape{2}, tensor.Float64, tensor.WebGPU)
		err = x.Backward(gpuSeed)
		assert.True(t, errors.Is(err, autodiff.ErrDeviceMismatch), "got %v", err)
	})

	t.Run("ZeroNode", func(t *testing.T) {
		var n autodiff.Node
		assert.True(t, errors.Is(n.Forward(), autodiff.ErrGraphConsistency))
		_, err := n.Sin()
		assert.True(t, errors.Is(err, autodiff.ErrGraphConsistency))
	})
}

func TestFailedForwardCommitsNothing(t *testing.T) {
	g := newGraph(autodiff.WithInstrumentation())
	x := leaf(t, g, []float64{1, 2, 0, 1}, tensor.Shape{2, 2})
	zero := leaf(t, g, []float64{0, 0, 0, 0}, tensor.Shape{2, 2})
	y := autodiff.Must(x.Add(zero))

	// y has no value yet, so the diagonal check waits for forward.
	e, err := y.Expm()
	require.NoError(t, err)

	err = e.Forward()
	assert.True(t, errors.Is(err, autodiff.ErrUnsupportedOperator), "got %v", err)

	_, err = y.Value()
	assert.True(t, errors.Is(err, autodiff.ErrGraphConsistency), "staged value must not be committed")
	assert.Equal(t, 4, g.Len())

	// Once y is evaluated, a new Expm fails at apply time.
	require.NoError(t, y.Forward())
	_, err = y.Expm()
	assert.True(t, errors.Is(err, autodiff.ErrUnsupportedOperator), "got %v", err)
}

func TestStatsAndString(t *testing.T) {
	g := newGraph(autodiff.WithName("demo"), autodiff.WithCapacity(8))
	x := leaf(t, g, []float64{1, 2}, tensor.Shape{2})
	z := autodiff.Must(x.Mul(x))
	require.NoError(t, z.Forward())
	require.NoError(t, z.Backward())

	stats := g.Stats()
	assert.Equal(t, autodiff.Stats{Nodes: 2, Leaves: 1, Evaluated: 2, ValueBytes: 32, GradBytes: 32}, stats)

	s := g.String()
	assert.True(t, strings.HasPrefix(s, "demo "+g.ID().String()))
	assert.Contains(t, s, "%1 = Mul(%0, %0) float64[2] evaluated")
	assert.Equal(t, "%1 = Mul float64[2]", z.String())
}

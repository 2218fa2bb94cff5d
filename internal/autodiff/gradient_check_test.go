package autodiff_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/wengert/internal/autodiff"
	"github.com/born-ml/wengert/internal/tensor"
)

// loss builds sum(sin(a @ b) * a - b) on a fresh graph and returns the loss
// node together with the leaves.
func loss(t testing.TB, a, b []float64) (l, na, nb autodiff.Node) {
	g := newGraph()
	na = leaf(t, g, a, tensor.Shape{2, 2})
	nb = leaf(t, g, b, tensor.Shape{2, 2})
	prod := autodiff.Must(na.MatMul(nb))
	l = autodiff.Must(autodiff.Must(autodiff.Must(autodiff.Must(prod.Sin()).Mul(na)).Sub(nb)).Sum())
	return l, na, nb
}

func evalLoss(t *testing.T, a, b []float64) float64 {
	l, _, _ := loss(t, a, b)
	require.NoError(t, l.Forward())
	v, err := l.Value()
	require.NoError(t, err)
	return v.AsFloat64()[0]
}

// TestNumericalGradient compares backward against central differences.
func TestNumericalGradient(t *testing.T) {
	a := []float64{0.3, -0.7, 1.1, 0.5}
	b := []float64{-0.2, 0.9, 0.4, -1.3}
	const eps = 1e-6

	l, na, nb := loss(t, a, b)
	require.NoError(t, l.Forward())
	require.NoError(t, l.Backward())
	ga, err := na.Grad()
	require.NoError(t, err)
	gb, err := nb.Grad()
	require.NoError(t, err)

	check := func(name string, x []float64, analytic []float64, f func([]float64) float64) {
		for i := range x {
			plus := append([]float64(nil), x...)
			minus := append([]float64(nil), x...)
			plus[i] += eps
			minus[i] -= eps
			numeric := (f(plus) - f(minus)) / (2 * eps)
			assert.InDelta(t, numeric, analytic[i], 1e-5, "%s[%d]", name, i)
		}
	}
	check("a", a, ga.AsFloat64(), func(x []float64) float64 { return evalLoss(t, x, b) })
	check("b", b, gb.AsFloat64(), func(x []float64) float64 { return evalLoss(t, a, x) })
}

// TestExpmNumericalGradient checks the divided-difference rule along diagonal
// perturbations, the only directions that stay in the operator's domain.
func TestExpmNumericalGradient(t *testing.T) {
	lambda := []float64{0.5, -1, 2}
	const eps = 1e-6

	build := func(l []float64) (autodiff.Node, autodiff.Node) {
		g := newGraph()
		d, err := tensor.Diag(l, tensor.CPU)
		require.NoError(t, err)
		x, err := g.Tensor(d)
		require.NoError(t, err)
		return autodiff.Must(autodiff.Must(x.Expm()).Sum()), x
	}

	s, x := build(lambda)
	require.NoError(t, s.Forward())
	require.NoError(t, s.Backward())
	gx, err := x.Grad()
	require.NoError(t, err)

	for i := range lambda {
		plus := append([]float64(nil), lambda...)
		minus := append([]float64(nil), lambda...)
		plus[i] += eps
		minus[i] -= eps
		sp, _ := build(plus)
		sm, _ := build(minus)
		require.NoError(t, sp.Forward())
		require.NoError(t, sm.Forward())
		vp, _ := sp.Value()
		vm, _ := sm.Value()
		numeric := (vp.AsFloat64()[0] - vm.AsFloat64()[0]) / (2 * eps)
		assert.InDelta(t, numeric, gx.AsFloat64()[i*3+i], 1e-5)
		assert.InDelta(t, math.Exp(lambda[i]), gx.AsFloat64()[i*3+i], 1e-12)
	}
}

func BenchmarkExpm(b *testing.B) {
	values := make([]float64, 64)
	for i := range values {
		values[i] = float64(i%7) * 0.25
	}
	diag, err := tensor.Diag(values, tensor.CPU)
	require.NoError(b, err)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g := newGraph()
		x, _ := g.Tensor(diag)
		z := autodiff.Must(x.Expm())
		if err := z.Forward(); err != nil {
			b.Fatal(err)
		}
		if err := z.Backward(); err != nil {
			b.Fatal(err)
		}
	}
}

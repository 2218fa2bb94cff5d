// Package main provides the wengert CLI, which runs small differentiation
// demos on a chosen device.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/wengert/autodiff"
	"github.com/born-ml/wengert/tensor"
)

const version = "v0.1.0-dev"

var (
	flagDevice = flag.String("device", "cpu", "Device to compute on: cpu or webgpu.")
	flagDemo   = flag.String("demo", "expm", "Demo to run: expm, product or matmul.")
	flagGraph  = flag.Bool("graph", false, "Print the tape after the demo.")
)

type demo func(g *autodiff.Graph, device tensor.Device) error

var demos = map[string]demo{
	"expm":    expmDemo,
	"product": productDemo,
	"matmul":  matmulDemo,
}

func main() {
	klog.InitFlags(nil)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [version]\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	defer klog.Flush()

	if flag.Arg(0) == "version" {
		fmt.Printf("wengert %s\n", version)
		return
	}

	if err := run(); err != nil {
		klog.Errorf("%+v", err)
		klog.Flush()
		os.Exit(1)
	}
}

func run() error {
	device, err := tensor.ParseDevice(*flagDevice)
	if err != nil {
		return err
	}
	d, found := demos[*flagDemo]
	if !found {
		return errors.Errorf("unknown demo %q", *flagDemo)
	}

	g, err := autodiff.Open(device, autodiff.WithName(*flagDemo))
	if err != nil {
		return err
	}
	if err := d(g, device); err != nil {
		return err
	}

	stats := g.Stats()
	fmt.Printf("\n%d nodes (%d leaves), values %s, gradients %s\n", stats.Nodes, stats.Leaves,
		humanize.Bytes(uint64(stats.ValueBytes)), humanize.Bytes(uint64(stats.GradBytes)))
	if *flagGraph {
		fmt.Print(g)
	}
	return nil
}

// dtypeFor picks the widest data type the graph's backend runs.
func dtypeFor(g *autodiff.Graph) tensor.DataType {
	if s, ok := g.Backend().(tensor.DTypeSupporter); ok && !s.SupportsDType(tensor.Float64) {
		return tensor.Float32
	}
	return tensor.Float64
}

func leaf(g *autodiff.Graph, device tensor.Device, data []float64, shape tensor.Shape) (autodiff.Node, error) {
	var (
		raw *tensor.RawTensor
		err error
	)
	if dtypeFor(g) == tensor.Float32 {
		data32 := make([]float32, len(data))
		for i, v := range data {
			data32[i] = float32(v)
		}
		raw, err = tensor.FromSlice(data32, shape, device)
	} else {
		raw, err = tensor.FromSlice(data, shape, device)
	}
	if err != nil {
		return autodiff.Node{}, err
	}
	return g.Tensor(raw)
}

// expmDemo differentiates the matrix exponential of diag(1, 1, 2).
func expmDemo(g *autodiff.Graph, device tensor.Device) error {
	x, err := leaf(g, device, []float64{1, 0, 0, 0, 1, 0, 0, 0, 2}, tensor.Shape{3, 3})
	if err != nil {
		return err
	}
	z, err := x.Expm()
	if err != nil {
		return err
	}
	return evaluate(z, map[string]autodiff.Node{"z": z, "x": x}, "z", "x")
}

// productDemo differentiates z = x * y.
func productDemo(g *autodiff.Graph, device tensor.Device) error {
	x, err := leaf(g, device, []float64{1, 2}, tensor.Shape{2})
	if err != nil {
		return err
	}
	y, err := leaf(g, device, []float64{3, 4}, tensor.Shape{2})
	if err != nil {
		return err
	}
	z, err := x.Mul(y)
	if err != nil {
		return err
	}
	return evaluate(z, map[string]autodiff.Node{"x": x, "y": y}, "x", "y")
}

// matmulDemo differentiates z = x @ y.
func matmulDemo(g *autodiff.Graph, device tensor.Device) error {
	x, err := leaf(g, device, []float64{1, 2, 3, 4}, tensor.Shape{2, 2})
	if err != nil {
		return err
	}
	y, err := leaf(g, device, []float64{5, 6, 7, 8}, tensor.Shape{2, 2})
	if err != nil {
		return err
	}
	z, err := x.MatMul(y)
	if err != nil {
		return err
	}
	return evaluate(z, map[string]autodiff.Node{"x": x, "y": y}, "x", "y")
}

// evaluate runs forward and backward from z, then prints z's value and the
// gradients of the named nodes in order.
func evaluate(z autodiff.Node, nodes map[string]autodiff.Node, order ...string) error {
	if err := z.Forward(); err != nil {
		return err
	}
	v, err := z.Value()
	if err != nil {
		return err
	}
	fmt.Println(format(v))

	if err := z.Backward(); err != nil {
		return err
	}
	for _, name := range order {
		grad, err := nodes[name].Grad()
		if err != nil {
			return err
		}
		fmt.Printf("dz/d%s %s\n", name, format(grad))
	}
	return nil
}

// format renders a tensor's values row by row, e.g. "[[1 2] [3 4]]".
func format(t *tensor.RawTensor) string {
	values := t.Float64s()
	shape := t.Shape()
	if shape.Rank() == 0 {
		return fmt.Sprint(values[0])
	}
	var sb strings.Builder
	var rec func(dim, offset, stride int)
	rec = func(dim, offset, stride int) {
		sb.WriteByte('[')
		stride /= shape[dim]
		for i := 0; i < shape[dim]; i++ {
			if i > 0 {
				sb.WriteByte(' ')
			}
			if dim == shape.Rank()-1 {
				fmt.Fprintf(&sb, "%.6g", values[offset+i])
			} else {
				rec(dim+1, offset+i*stride, stride)
			}
		}
		sb.WriteByte(']')
	}
	rec(0, 0, len(values))
	return sb.String()
}

package graph

import (
	"fmt"

	"github.com/etude-ml/etude/internal/kernels"
	"github.com/etude-ml/etude/internal/tensor"
)

// RegisterBuiltinOperators installs the stock operator kinds, each
// resolving its numeric kernel through kreg at forward time. Fused variants
// (matmul_relu and friends) are registered alongside so fusion has targets.
func RegisterBuiltinOperators(ops *OperatorRegistry, kreg *kernels.Registry) error {
	builtins := []Operator{
		{Name: "input", Create: createInput, Forward: forwardInput},
		{Name: "add", Forward: binaryForward(kreg, "vector_add")},
		{Name: "mul", Forward: binaryForward(kreg, "vector_mul")},
		{Name: "matmul", Forward: matmulForward(kreg)},
		{Name: "relu", Forward: activationForward(kreg, "activation_relu")},
		{Name: "sigmoid", Forward: activationForward(kreg, "activation_sigmoid")},
		{Name: "tanh", Forward: activationForward(kreg, "activation_tanh")},
		{Name: "softmax", Forward: activationForward(kreg, "activation_softmax")},
	}

	for _, producer := range []string{"matmul", "add", "mul"} {
		for _, act := range []string{"relu", "sigmoid", "tanh"} {
			builtins = append(builtins, Operator{
				Name:    producer + "_" + act,
				Forward: fusedForward(ops, producer, act),
			})
		}
	}

	for _, op := range builtins {
		if err := ops.Register(op); err != nil {
			return err
		}
	}
	return nil
}

func createInput(n *Node) error {
	n.MarkInput()
	return nil
}

// forwardInput only checks that data was bound; the tensor arrives via
// SetOutput before Execute.
func forwardInput(n *Node) error {
	if n.output == nil {
		return fmt.Errorf("input node %q has no bound tensor: %w", n.name, ErrInvalidArgument)
	}
	return nil
}

// allocOutput reuses the node's existing result tensor when the shape still
// fits, otherwise allocates a fresh one from the graph pool or the heap.
func allocOutput(n *Node, shape tensor.Shape) (*tensor.RawTensor, error) {
	if n.output != nil && n.output.Shape().Equal(shape) && n.output.DType() == tensor.Float32 {
		return n.output, nil
	}
	if n.graph.pool != nil {
		return tensor.NewRawInPool(n.graph.pool, shape, tensor.Float32)
	}
	return tensor.NewRaw(shape, tensor.Float32)
}

func binaryForward(kreg *kernels.Registry, kernelOp string) func(*Node) error {
	return func(n *Node) error {
		a, err := n.Input(0)
		if err != nil {
			return err
		}
		b, err := n.Input(1)
		if err != nil {
			return err
		}
		if !a.Shape().Equal(b.Shape()) {
			return fmt.Errorf("shape mismatch %v vs %v: %w", a.Shape(), b.Shape(), ErrInvalidArgument)
		}

		out, err := allocOutput(n, a.Shape())
		if err != nil {
			return err
		}
		fn, err := kreg.SelectOptimal(kernelOp, a.NumElements())
		if err != nil {
			return err
		}
		fn.(kernels.VectorBinaryFunc)(a.AsFloat32(), b.AsFloat32(), out.AsFloat32())
		n.SetOutput(out)
		return nil
	}
}

func matmulForward(kreg *kernels.Registry) func(*Node) error {
	return func(n *Node) error {
		a, err := n.Input(0)
		if err != nil {
			return err
		}
		b, err := n.Input(1)
		if err != nil {
			return err
		}
		as, bs := a.Shape(), b.Shape()
		if len(as) != 2 || len(bs) != 2 || as[1] != bs[0] {
			return fmt.Errorf("matmul shapes %v x %v: %w", as, bs, ErrInvalidArgument)
		}
		m, k, nn := as[0], as[1], bs[1]

		out, err := allocOutput(n, tensor.Shape{m, nn})
		if err != nil {
			return err
		}
		fn, err := kreg.SelectOptimal("gemm", m*nn)
		if err != nil {
			return err
		}
		fn.(kernels.GemmFunc)(a.AsFloat32(), b.AsFloat32(), out.AsFloat32(), m, nn, k)
		n.SetOutput(out)
		return nil
	}
}

func activationForward(kreg *kernels.Registry, kernelOp string) func(*Node) error {
	return func(n *Node) error {
		in, err := n.Input(0)
		if err != nil {
			return err
		}
		out, err := allocOutput(n, in.Shape())
		if err != nil {
			return err
		}
		fn, err := kreg.SelectOptimal(kernelOp, in.NumElements())
		if err != nil {
			return err
		}
		fn.(kernels.ActivationFunc)(in.AsFloat32(), out.AsFloat32())
		n.SetOutput(out)
		return nil
	}
}

// fusedForward runs the producer kind, then its activation in place on the
// producer's result.
func fusedForward(ops *OperatorRegistry, producer, act string) func(*Node) error {
	return func(n *Node) error {
		pOp, err := ops.Find(producer)
		if err != nil {
			return err
		}
		aOp, err := ops.Find(act)
		if err != nil {
			return err
		}
		if err := pOp.Forward(n); err != nil {
			return err
		}

		// run the activation in place over the producer's result through a
		// scratch node that sees it as both input and output
		scratch := &Node{
			name:   n.name,
			opType: act,
			inputs: []*Node{{output: n.output}},
			output: n.output,
			graph:  n.graph,
		}
		if err := aOp.Forward(scratch); err != nil {
			return err
		}
		n.output = scratch.output
		return nil
	}
}

// Package main provides the Etude runtime CLI.
package main

import (
	"fmt"
	"os"

	"github.com/etude-ml/etude/graph"
	"github.com/etude-ml/etude/kernels"
	"github.com/etude-ml/etude/memory"
	"github.com/etude-ml/etude/tensor"
)

const version = "v0.1.0-dev"

func main() {
	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "version":
		fmt.Printf("Etude inference runtime %s\n", version)
	case "info":
		runInfo()
	case "demo":
		if err := runDemo(); err != nil {
			fmt.Fprintf(os.Stderr, "demo failed: %v\n", err)
			os.Exit(1)
		}
	default:
		usage()
	}
}

func usage() {
	fmt.Println("Etude - Embedded Inference Runtime for Go")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version    Show version")
	fmt.Println("  info       Show detected CPU features and builtin kernels")
	fmt.Println("  demo       Build and execute a small computation graph")
}

func runInfo() {
	reg := kernels.NewRegistry()
	reg.Init()
	if err := reg.RegisterBuiltins(); err != nil {
		fmt.Fprintf(os.Stderr, "register builtins: %v\n", err)
		os.Exit(1)
	}
	reg.PrintInfo(os.Stdout)
}

// runDemo wires every runtime layer together: a pool-backed graph running
// a fused matmul+relu over builtin kernels.
func runDemo() error {
	kreg := kernels.NewRegistry()
	kreg.Init()
	if err := kreg.RegisterBuiltins(); err != nil {
		return err
	}

	pool, err := memory.NewPool(1<<20, 0)
	if err != nil {
		return err
	}

	ops := graph.NewOperatorRegistry(0)
	if err := graph.RegisterBuiltinOperators(ops, kreg); err != nil {
		return err
	}

	g, err := graph.New("demo", ops, graph.WithPool(pool))
	if err != nil {
		return err
	}

	x, err := g.AddNode("x", "input")
	if err != nil {
		return err
	}
	w, err := g.AddNode("w", "input")
	if err != nil {
		return err
	}
	mm, err := g.AddNode("mm", "matmul")
	if err != nil {
		return err
	}
	act, err := g.AddNode("act", "relu")
	if err != nil {
		return err
	}
	for _, edge := range [][2]*graph.Node{{x, mm}, {w, mm}, {mm, act}} {
		if err := g.Connect(edge[0], edge[1]); err != nil {
			return err
		}
	}
	act.MarkOutput()

	xt, err := tensor.FromFloat32(tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	if err != nil {
		return err
	}
	wt, err := tensor.FromFloat32(tensor.Shape{3, 2}, []float32{1, -1, 0, 1, -1, 0})
	if err != nil {
		return err
	}
	result, err := tensor.NewRaw(tensor.Shape{2, 2}, tensor.Float32)
	if err != nil {
		return err
	}

	if err := g.TopologicalSort(); err != nil {
		return err
	}
	if err := g.Optimize(graph.OptAll); err != nil {
		return err
	}
	if err := g.Execute([]*tensor.RawTensor{xt, wt}, []*tensor.RawTensor{result}); err != nil {
		return err
	}

	fmt.Printf("relu(x @ w) = %v\n", result.AsFloat32())
	g.PrintInfo(os.Stdout)
	pool.PrintInfo(os.Stdout)
	return nil
}

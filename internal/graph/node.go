package graph

import (
	"fmt"

	"github.com/etude-ml/etude/internal/tensor"
)

// NodeState tracks a node through one execution pass.
type NodeState uint8

const (
	// StateReady means the node has not run in the current pass.
	StateReady NodeState = iota
	// StateRunning means the node's forward is in progress.
	StateRunning
	// StateCompleted means the forward finished successfully.
	StateCompleted
	// StateError means the forward returned an error.
	StateError
)

func (s NodeState) String() string {
	switch s {
	case StateReady:
		return "Ready"
	case StateRunning:
		return "Running"
	case StateCompleted:
		return "Completed"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Node is one operation instance in a graph. Input and output edge lists
// are kept symmetric: n appears in m.outputs exactly when m appears in
// n.inputs.
type Node struct {
	name   string
	opType string
	op     *Operator

	inputs  []*Node
	outputs []*Node

	state     NodeState
	execIndex int // position in the last successful sort, -1 before that
	lastUse   int // exec index of the last consumer, -1 when unplanned

	output *tensor.RawTensor
	attrs  map[string]any

	isInput  bool
	isOutput bool

	graph *Graph
}

// MarkInput flags the node as a graph input fed from outside.
func (n *Node) MarkInput() { n.isInput = true }

// MarkOutput flags the node as a graph output. Dead code elimination keeps
// only nodes that feed a marked output, and memory planning never releases
// a marked output's tensor.
func (n *Node) MarkOutput() { n.isOutput = true }

// IsInput reports whether the node is a graph input.
func (n *Node) IsInput() bool { return n.isInput }

// IsOutput reports whether the node is a graph output.
func (n *Node) IsOutput() bool { return n.isOutput }

// Name returns the node's graph-unique name.
func (n *Node) Name() string { return n.name }

// OpType returns the operator kind this node runs.
func (n *Node) OpType() string { return n.opType }

// State returns the node's state in the current execution pass.
func (n *Node) State() NodeState { return n.state }

// ExecIndex returns the node's position in the last topological sort, or -1
// if the graph has not been sorted since the node was added.
func (n *Node) ExecIndex() int { return n.execIndex }

// Inputs returns the producer nodes feeding this node, in connection order.
func (n *Node) Inputs() []*Node { return n.inputs }

// Outputs returns the consumer nodes this node feeds.
func (n *Node) Outputs() []*Node { return n.outputs }

// Output returns the node's result tensor, nil until the node has run or
// been bound.
func (n *Node) Output() *tensor.RawTensor { return n.output }

// SetOutput binds a tensor as the node's result. Input nodes use this to
// inject external data; operator forwards use it to publish results.
func (n *Node) SetOutput(t *tensor.RawTensor) { n.output = t }

// SetAttr stores an operator-specific attribute on the node.
func (n *Node) SetAttr(key string, value any) {
	if n.attrs == nil {
		n.attrs = make(map[string]any)
	}
	n.attrs[key] = value
}

// Attr fetches an operator-specific attribute.
func (n *Node) Attr(key string) (any, bool) {
	v, ok := n.attrs[key]
	return v, ok
}

// Graph returns the graph that owns this node.
func (n *Node) Graph() *Graph { return n.graph }

// Input returns the i'th producer's output tensor, failing when the edge or
// its data is missing. Operator forwards use this to read operands.
func (n *Node) Input(i int) (*tensor.RawTensor, error) {
	if i < 0 || i >= len(n.inputs) {
		return nil, fmt.Errorf("node %q has %d inputs, want index %d: %w",
			n.name, len(n.inputs), i, ErrInvalidArgument)
	}
	t := n.inputs[i].output
	if t == nil {
		return nil, fmt.Errorf("node %q input %q has no data: %w",
			n.name, n.inputs[i].name, ErrInvalidArgument)
	}
	return t, nil
}

func (n *Node) hasInputEdge(m *Node) bool {
	for _, in := range n.inputs {
		if in == m {
			return true
		}
	}
	return false
}

func removeNodeRef(list []*Node, target *Node) []*Node {
	for i, n := range list {
		if n == target {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

package graph

import (
	"fmt"
	"io"

	"github.com/etude-ml/etude/internal/memory"
	"github.com/etude-ml/etude/internal/tensor"
)

// Graph is a directed acyclic computation graph. Structural mutations
// invalidate any previous topological sort; Execute refuses to run until
// TopologicalSort succeeds again.
//
// Graphs are single-threaded: callers that share one across goroutines
// must serialize access themselves.
type Graph struct {
	name   string
	nodes  []*Node
	byName map[string]*Node

	order  []*Node
	sorted bool

	optimized     bool
	memoryPlanned bool

	ops  *OperatorRegistry
	pool *memory.Pool
}

// Option configures a graph at construction.
type Option func(*Graph)

// WithPool makes the graph allocate node output tensors from pool instead
// of the heap.
func WithPool(pool *memory.Pool) Option {
	return func(g *Graph) { g.pool = pool }
}

// New creates an empty graph drawing its operator kinds from ops.
func New(name string, ops *OperatorRegistry, opts ...Option) (*Graph, error) {
	if ops == nil {
		return nil, fmt.Errorf("operator registry is required: %w", ErrInvalidArgument)
	}
	g := &Graph{
		name:   name,
		byName: make(map[string]*Node),
		ops:    ops,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Name returns the graph's name.
func (g *Graph) Name() string { return g.name }

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// Pool returns the tensor pool this graph allocates from, nil when outputs
// come from the heap.
func (g *Graph) Pool() *memory.Pool { return g.pool }

// AddNode creates a node named name running operator kind opType. Node
// names are unique per graph.
func (g *Graph) AddNode(name, opType string) (*Node, error) {
	if name == "" {
		return nil, fmt.Errorf("empty node name: %w", ErrInvalidArgument)
	}
	if _, dup := g.byName[name]; dup {
		return nil, fmt.Errorf("node %q: %w", name, ErrAlreadyExists)
	}
	op, err := g.ops.Find(opType)
	if err != nil {
		return nil, err
	}

	n := &Node{
		name:      name,
		opType:    opType,
		op:        op,
		state:     StateReady,
		execIndex: -1,
		lastUse:   -1,
		graph:     g,
	}
	if op.Create != nil {
		if err := op.Create(n); err != nil {
			return nil, fmt.Errorf("create node %q: %w", name, err)
		}
	}

	g.nodes = append(g.nodes, n)
	g.byName[name] = n
	g.invalidate()
	return n, nil
}

// RemoveNode deletes a node and excises every edge touching it.
func (g *Graph) RemoveNode(name string) error {
	n, ok := g.byName[name]
	if !ok {
		return fmt.Errorf("node %q: %w", name, ErrNotFound)
	}

	for _, in := range n.inputs {
		in.outputs = removeNodeRef(in.outputs, n)
	}
	for _, out := range n.outputs {
		out.inputs = removeNodeRef(out.inputs, n)
	}
	n.inputs = nil
	n.outputs = nil

	if n.op.Destroy != nil {
		if err := n.op.Destroy(n); err != nil {
			return fmt.Errorf("destroy node %q: %w", name, err)
		}
	}

	g.nodes = removeNodeRef(g.nodes, n)
	delete(g.byName, name)
	g.invalidate()
	return nil
}

// Connect adds the edge from -> to, appending to both edge lists. An edge
// that already exists is left alone.
func (g *Graph) Connect(from, to *Node) error {
	if from == nil || to == nil {
		return fmt.Errorf("nil node: %w", ErrInvalidArgument)
	}
	if from.graph != g || to.graph != g {
		return fmt.Errorf("node belongs to a different graph: %w", ErrInvalidArgument)
	}
	// a self edge is accepted here; sort time reports it as a cycle
	if to.hasInputEdge(from) {
		return nil
	}

	from.outputs = append(from.outputs, to)
	to.inputs = append(to.inputs, from)
	g.invalidate()
	return nil
}

// Disconnect removes the edge from -> to from both edge lists.
func (g *Graph) Disconnect(from, to *Node) error {
	if from == nil || to == nil {
		return fmt.Errorf("nil node: %w", ErrInvalidArgument)
	}
	if !to.hasInputEdge(from) {
		return fmt.Errorf("edge %q -> %q: %w", from.name, to.name, ErrNotFound)
	}

	from.outputs = removeNodeRef(from.outputs, to)
	to.inputs = removeNodeRef(to.inputs, from)
	g.invalidate()
	return nil
}

// FindNodeByName returns the node registered under name.
func (g *Graph) FindNodeByName(name string) (*Node, error) {
	n, ok := g.byName[name]
	if !ok {
		return nil, fmt.Errorf("node %q: %w", name, ErrNotFound)
	}
	return n, nil
}

// Nodes returns the graph's nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// ExecutionOrder returns the node order of the last successful sort.
func (g *Graph) ExecutionOrder() ([]*Node, error) {
	if !g.sorted {
		return nil, ErrNotSorted
	}
	out := make([]*Node, len(g.order))
	copy(out, g.order)
	return out, nil
}

// Execute runs every node in topological order. Non-nil inputs are bound
// positionally to the graph's input nodes first; on success the output
// nodes' tensors are copied into the caller's outputs, again positionally.
// Either slice may be nil when the caller binds or reads tensors directly.
//
// On the first node failure execution stops: completed nodes keep
// StateCompleted, the failed node is left in StateError, unreached nodes
// stay StateReady, and the error wraps both the node's error and
// ErrExecutionFailed.
func (g *Graph) Execute(inputs, outputs []*tensor.RawTensor) error {
	if !g.sorted {
		return ErrNotSorted
	}
	if err := g.bindInputs(inputs); err != nil {
		return err
	}
	if err := g.executeOrder(len(g.order)); err != nil {
		return err
	}
	return g.copyOutputs(outputs)
}

// ExecuteUntilNode runs the topological prefix ending at (and including)
// the named node, after binding inputs the way Execute does.
func (g *Graph) ExecuteUntilNode(name string, inputs []*tensor.RawTensor) error {
	if !g.sorted {
		return ErrNotSorted
	}
	n, err := g.FindNodeByName(name)
	if err != nil {
		return err
	}
	if err := g.bindInputs(inputs); err != nil {
		return err
	}
	return g.executeOrder(n.execIndex + 1)
}

// InputNodes returns the graph's input nodes in insertion order.
func (g *Graph) InputNodes() []*Node {
	var ins []*Node
	for _, n := range g.nodes {
		if n.isInput {
			ins = append(ins, n)
		}
	}
	return ins
}

// OutputNodes returns the marked output nodes in insertion order, falling
// back to the graph's sinks when none are marked.
func (g *Graph) OutputNodes() []*Node {
	var outs []*Node
	for _, n := range g.nodes {
		if n.isOutput {
			outs = append(outs, n)
		}
	}
	if outs != nil {
		return outs
	}
	for _, n := range g.nodes {
		if len(n.outputs) == 0 {
			outs = append(outs, n)
		}
	}
	return outs
}

func (g *Graph) bindInputs(inputs []*tensor.RawTensor) error {
	if inputs == nil {
		return nil
	}
	ins := g.InputNodes()
	if len(inputs) != len(ins) {
		return fmt.Errorf("graph has %d input nodes, got %d tensors: %w",
			len(ins), len(inputs), ErrInvalidArgument)
	}
	for i, t := range inputs {
		if t == nil {
			return fmt.Errorf("input tensor %d is nil: %w", i, ErrInvalidArgument)
		}
		ins[i].SetOutput(t)
	}
	return nil
}

func (g *Graph) copyOutputs(outputs []*tensor.RawTensor) error {
	if outputs == nil {
		return nil
	}
	outs := g.OutputNodes()
	if len(outputs) != len(outs) {
		return fmt.Errorf("graph has %d output nodes, got %d tensors: %w",
			len(outs), len(outputs), ErrInvalidArgument)
	}
	for i, dst := range outputs {
		src := outs[i].output
		if src == nil {
			return fmt.Errorf("output node %q produced no tensor: %w",
				outs[i].name, ErrInvalidArgument)
		}
		if dst == nil || dst.ByteSize() != src.ByteSize() {
			return fmt.Errorf("output tensor %d does not match node %q (%d bytes): %w",
				i, outs[i].name, src.ByteSize(), ErrInvalidArgument)
		}
		copy(dst.Data(), src.Data())
	}
	return nil
}

func (g *Graph) executeOrder(limit int) error {
	if !g.sorted {
		return ErrNotSorted
	}
	g.ResetStates()

	for i, n := range g.order[:limit] {
		n.state = StateRunning
		if err := n.op.Forward(n); err != nil {
			n.state = StateError
			return fmt.Errorf("node %q (%s): %w: %w", n.name, n.opType, ErrExecutionFailed, err)
		}
		n.state = StateCompleted

		if g.memoryPlanned {
			g.releaseAfter(i, limit)
		}
	}
	return nil
}

// releaseAfter frees pooled intermediate tensors whose last consumer just
// ran at exec index i. Truncated runs keep everything past the cutoff.
func (g *Graph) releaseAfter(i, limit int) {
	for _, n := range g.order[:limit] {
		if n.lastUse != i || n.output == nil || !n.output.Pooled() {
			continue
		}
		n.output.Release()
		n.output = nil
	}
}

// ResetStates returns every node to StateReady for a fresh pass. Node
// outputs are left in place.
func (g *Graph) ResetStates() {
	for _, n := range g.nodes {
		n.state = StateReady
	}
}

// PrintInfo writes a human-readable dump of the graph.
func (g *Graph) PrintInfo(w io.Writer) {
	fmt.Fprintf(w, "=== Graph %q ===\n", g.name)
	fmt.Fprintf(w, "Nodes: %d\n", len(g.nodes))
	fmt.Fprintf(w, "Sorted: %v  Optimized: %v\n", g.sorted, g.optimized)

	for _, n := range g.nodes {
		fmt.Fprintf(w, "  %s (%s) state=%s exec=%d\n", n.name, n.opType, n.state, n.execIndex)
		for _, in := range n.inputs {
			fmt.Fprintf(w, "    <- %s\n", in.name)
		}
		for _, out := range n.outputs {
			fmt.Fprintf(w, "    -> %s\n", out.name)
		}
	}

	if g.sorted {
		fmt.Fprintf(w, "Execution order:")
		for _, n := range g.order {
			fmt.Fprintf(w, " %s", n.name)
		}
		fmt.Fprintln(w)
	}
}

// invalidate drops sort and optimization results after a structural change.
func (g *Graph) invalidate() {
	g.sorted = false
	g.order = nil
	g.optimized = false
	g.memoryPlanned = false
	for _, n := range g.nodes {
		n.execIndex = -1
		n.lastUse = -1
	}
}

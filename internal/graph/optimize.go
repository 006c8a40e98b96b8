package graph

import "fmt"

// OptFlags selects optimization passes.
type OptFlags uint32

const (
	// OptFusion folds an elementwise activation into its sole producer
	// when a fused operator kind is registered.
	OptFusion OptFlags = 1 << iota
	// OptDeadCodeElim removes nodes that feed no marked output.
	OptDeadCodeElim
	// OptMemory plans pooled tensor lifetimes so intermediate outputs are
	// released after their last consumer runs.
	OptMemory

	// OptAll enables every pass.
	OptAll = OptFusion | OptDeadCodeElim | OptMemory
)

// fusionProducers and fusionConsumers define which adjacent pairs fold into
// a single fused node. The fused operator kind is named producer_consumer,
// e.g. "matmul_relu".
var (
	fusionProducers = map[string]bool{"matmul": true, "add": true, "mul": true}
	fusionConsumers = map[string]bool{"relu": true, "sigmoid": true, "tanh": true}
)

// Optimize rewrites the graph in place. It requires a sorted graph and is
// one-shot: a second call is a no-op until the structure changes again.
// The graph is re-sorted before returning, so Execute can follow directly.
func (g *Graph) Optimize(flags OptFlags) error {
	if !g.sorted {
		return ErrNotSorted
	}
	if g.optimized {
		return nil
	}

	if flags&OptFusion != 0 {
		g.fuseActivations()
	}
	if flags&OptDeadCodeElim != 0 {
		if err := g.eliminateDeadNodes(); err != nil {
			return err
		}
	}

	if err := g.TopologicalSort(); err != nil {
		return err
	}
	if flags&OptMemory != 0 {
		g.planMemory()
	}
	g.optimized = true
	return nil
}

// fuseActivations folds producer -> activation pairs. The producer keeps
// its name and absorbs the activation's consumers.
func (g *Graph) fuseActivations() {
	for changed := true; changed; {
		changed = false
		for _, p := range g.nodes {
			if !fusionProducers[p.opType] || len(p.outputs) != 1 {
				continue
			}
			c := p.outputs[0]
			if !fusionConsumers[c.opType] || len(c.inputs) != 1 {
				continue
			}
			fusedName := p.opType + "_" + c.opType
			fused, err := g.ops.Find(fusedName)
			if err != nil {
				continue
			}

			p.opType = fusedName
			p.op = fused
			p.outputs = p.outputs[:0]
			for _, d := range c.outputs {
				for i, in := range d.inputs {
					if in == c {
						d.inputs[i] = p
					}
				}
				p.outputs = append(p.outputs, d)
			}
			if c.isOutput {
				p.isOutput = true
			}

			c.inputs = nil
			c.outputs = nil
			g.nodes = removeNodeRef(g.nodes, c)
			delete(g.byName, c.name)
			changed = true
			break
		}
	}
}

// eliminateDeadNodes removes every node that cannot reach a marked output.
// With no marked outputs the pass is a no-op: every sink counts as live.
func (g *Graph) eliminateDeadNodes() error {
	marked := false
	for _, n := range g.nodes {
		if n.isOutput {
			marked = true
			break
		}
	}
	if !marked {
		return nil
	}

	live := make(map[*Node]bool, len(g.nodes))
	var visit func(n *Node)
	visit = func(n *Node) {
		if live[n] {
			return
		}
		live[n] = true
		for _, in := range n.inputs {
			visit(in)
		}
	}
	for _, n := range g.nodes {
		if n.isOutput {
			visit(n)
		}
	}

	for _, n := range g.Nodes() {
		if live[n] {
			continue
		}
		if err := g.RemoveNode(n.name); err != nil {
			return fmt.Errorf("dead code elimination: %w", err)
		}
	}
	return nil
}

// planMemory records, for each node, the execution index of its last
// consumer. Execute releases pooled intermediate tensors at that point.
func (g *Graph) planMemory() {
	for _, n := range g.order {
		n.lastUse = -1
		if n.isInput || n.isOutput || len(n.outputs) == 0 {
			continue
		}
		last := -1
		for _, c := range n.outputs {
			if c.execIndex > last {
				last = c.execIndex
			}
		}
		n.lastUse = last
	}
	g.memoryPlanned = true
}

package graph

// TopologicalSort orders the nodes with Kahn's algorithm. Ties between
// ready nodes break toward the earliest-added node, so the order is stable
// for a given construction sequence. On a cycle the previous sort state is
// left untouched and ErrCycle is returned.
func (g *Graph) TopologicalSort() error {
	order, ok := g.kahn()
	if !ok {
		return ErrCycle
	}

	g.order = order
	g.sorted = true
	for i, n := range order {
		n.execIndex = i
	}
	return nil
}

// HasCycle reports whether the graph contains a directed cycle, without
// disturbing sort state.
func (g *Graph) HasCycle() bool {
	_, ok := g.kahn()
	return !ok
}

// kahn returns a topological order and true, or nil and false when a cycle
// prevents one. Candidate scanning is by node index, which gives the stable
// tie-break.
func (g *Graph) kahn() ([]*Node, bool) {
	indegree := make(map[*Node]int, len(g.nodes))
	for _, n := range g.nodes {
		indegree[n] = len(n.inputs)
	}

	order := make([]*Node, 0, len(g.nodes))
	ready := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		if indegree[n] == 0 {
			ready = append(ready, n)
		}
	}

	for len(ready) > 0 {
		// take the earliest-added ready node
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)

		for _, m := range n.outputs {
			indegree[m]--
			if indegree[m] == 0 {
				ready = insertByIndex(ready, m, g.indexOf)
			}
		}
	}

	if len(order) != len(g.nodes) {
		return nil, false
	}
	return order, true
}

func (g *Graph) indexOf(n *Node) int {
	for i, m := range g.nodes {
		if m == n {
			return i
		}
	}
	return -1
}

func insertByIndex(ready []*Node, n *Node, index func(*Node) int) []*Node {
	ni := index(n)
	for i, m := range ready {
		if index(m) > ni {
			ready = append(ready, nil)
			copy(ready[i+1:], ready[i:])
			ready[i] = n
			return ready
		}
	}
	return append(ready, n)
}

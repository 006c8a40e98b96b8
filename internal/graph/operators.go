package graph

import "fmt"

// DefaultMaxOperators bounds an operator registry unless the caller asks
// for more.
const DefaultMaxOperators = 64

// Operator defines one node kind: its lifecycle hooks and its forward (and
// optionally backward) computation. Hooks other than Forward may be nil.
type Operator struct {
	Name     string
	Create   func(n *Node) error
	Forward  func(n *Node) error
	Backward func(n *Node) error
	Destroy  func(n *Node) error
}

// OperatorRegistry holds the operator kinds a graph can instantiate.
// Lookups are by exact name.
type OperatorRegistry struct {
	ops    []Operator
	maxOps int
}

// NewOperatorRegistry returns a registry bounded at maxOps entries;
// maxOps <= 0 selects DefaultMaxOperators.
func NewOperatorRegistry(maxOps int) *OperatorRegistry {
	if maxOps <= 0 {
		maxOps = DefaultMaxOperators
	}
	return &OperatorRegistry{
		ops:    make([]Operator, 0, 8),
		maxOps: maxOps,
	}
}

// Register adds an operator kind. The name must be unique and Forward must
// be set.
func (r *OperatorRegistry) Register(op Operator) error {
	if op.Name == "" || op.Forward == nil {
		return fmt.Errorf("operator needs a name and a forward function: %w", ErrInvalidArgument)
	}
	if len(r.ops) >= r.maxOps {
		return fmt.Errorf("registry holds %d operators: %w", r.maxOps, ErrCapacityExceeded)
	}
	for i := range r.ops {
		if r.ops[i].Name == op.Name {
			return fmt.Errorf("operator %q: %w", op.Name, ErrAlreadyExists)
		}
	}
	r.ops = append(r.ops, op)
	return nil
}

// Find returns the operator registered under name.
func (r *OperatorRegistry) Find(name string) (*Operator, error) {
	for i := range r.ops {
		if r.ops[i].Name == name {
			return &r.ops[i], nil
		}
	}
	return nil, fmt.Errorf("operator %q: %w", name, ErrNotFound)
}

// Has reports whether name is registered.
func (r *OperatorRegistry) Has(name string) bool {
	_, err := r.Find(name)
	return err == nil
}

// Count returns the number of registered operators.
func (r *OperatorRegistry) Count() int { return len(r.ops) }

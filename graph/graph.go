// Copyright 2025 The Etude Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package graph provides the public API for Etude's computation graph
// engine.
//
// A Graph is a directed acyclic network of operator nodes. Callers build
// the structure, sort it, optionally optimize it, and execute:
//
//	ops := graph.NewOperatorRegistry(0)
//	_ = graph.RegisterBuiltinOperators(ops, kreg)
//	g, _ := graph.New("mlp", ops)
//	x, _ := g.AddNode("x", "input")
//	y, _ := g.AddNode("y", "relu")
//	_ = g.Connect(x, y)
//	_ = g.TopologicalSort()
//	_ = g.Execute(inputs, outputs)
package graph

import (
	"github.com/etude-ml/etude/internal/graph"
	"github.com/etude-ml/etude/internal/kernels"
	"github.com/etude-ml/etude/internal/memory"
)

// Graph is a directed acyclic computation graph.
type Graph = graph.Graph

// Node is one operation instance in a graph.
type Node = graph.Node

// NodeState tracks a node through one execution pass.
type NodeState = graph.NodeState

// Node states.
const (
	StateReady     NodeState = graph.StateReady
	StateRunning   NodeState = graph.StateRunning
	StateCompleted NodeState = graph.StateCompleted
	StateError     NodeState = graph.StateError
)

// Operator defines one node kind.
type Operator = graph.Operator

// OperatorRegistry holds the operator kinds a graph can instantiate.
type OperatorRegistry = graph.OperatorRegistry

// DefaultMaxOperators bounds an operator registry unless the caller asks
// for more.
const DefaultMaxOperators = graph.DefaultMaxOperators

// OptFlags selects optimization passes.
type OptFlags = graph.OptFlags

// Optimization passes.
const (
	OptFusion       OptFlags = graph.OptFusion
	OptDeadCodeElim OptFlags = graph.OptDeadCodeElim
	OptMemory       OptFlags = graph.OptMemory
	OptAll          OptFlags = graph.OptAll
)

// Sentinel errors.
var (
	ErrInvalidArgument  = graph.ErrInvalidArgument
	ErrAlreadyExists    = graph.ErrAlreadyExists
	ErrNotFound         = graph.ErrNotFound
	ErrCapacityExceeded = graph.ErrCapacityExceeded
	ErrCycle            = graph.ErrCycle
	ErrNotSorted        = graph.ErrNotSorted
	ErrExecutionFailed  = graph.ErrExecutionFailed
)

// Option configures a graph at construction.
type Option = graph.Option

// WithPool makes the graph allocate node output tensors from pool.
func WithPool(pool *memory.Pool) Option {
	return graph.WithPool(pool)
}

// New creates an empty graph drawing its operator kinds from ops.
func New(name string, ops *OperatorRegistry, opts ...Option) (*Graph, error) {
	return graph.New(name, ops, opts...)
}

// NewOperatorRegistry returns a registry bounded at maxOps entries;
// maxOps <= 0 selects DefaultMaxOperators.
func NewOperatorRegistry(maxOps int) *OperatorRegistry {
	return graph.NewOperatorRegistry(maxOps)
}

// RegisterBuiltinOperators installs the stock operator kinds, resolving
// their numeric kernels through kreg.
func RegisterBuiltinOperators(ops *OperatorRegistry, kreg *kernels.Registry) error {
	return graph.RegisterBuiltinOperators(ops, kreg)
}

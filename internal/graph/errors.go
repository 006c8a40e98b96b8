package graph

import "errors"

var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrAlreadyExists    = errors.New("already exists")
	ErrNotFound         = errors.New("not found")
	ErrCapacityExceeded = errors.New("operator registry capacity exceeded")
	ErrCycle            = errors.New("graph contains a cycle")
	ErrNotSorted        = errors.New("graph is not topologically sorted")
	ErrExecutionFailed  = errors.New("node execution failed")
)

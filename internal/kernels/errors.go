package kernels

import "errors"

// Sentinel errors returned by the kernel registry.
var (
	ErrNotInitialized   = errors.New("kernel registry not initialized")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrAlreadyExists    = errors.New("kernel already registered")
	ErrCapacityExceeded = errors.New("kernel table full")
	ErrNotFound         = errors.New("no matching kernel")
)

package memory

import "errors"

// Sentinel errors returned by pools and allocators.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrOutOfMemory     = errors.New("out of memory")
	ErrInvalidPointer  = errors.New("pointer not owned by this pool or already freed")
)

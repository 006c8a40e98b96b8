package tensor

import "errors"

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidShape    = errors.New("invalid shape")
	ErrUnsupportedCast = errors.New("unsupported cast")
)

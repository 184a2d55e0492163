package addresses

import "errors"

var (
	ErrNotFound = errors.New("address not found")
	ErrInvalid  = errors.New("invalid address")
)

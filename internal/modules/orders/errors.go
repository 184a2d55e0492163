package orders

import "errors"

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrNotActionable     = errors.New("order not actionable")
	ErrNotCancellable    = errors.New("order can no longer be cancelled")
	ErrMissingAddress    = errors.New("shipping address required")
	ErrMissingIdemKey    = errors.New("idempotency key required")
)

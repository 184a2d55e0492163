package cart

import "errors"

const MaxQty = 99

var (
	ErrMixedCurrency      = errors.New("cart contains multiple currencies")
	ErrInvalidQty         = errors.New("quantity must be between 1 and 99")
	ErrProductUnavailable = errors.New("product is not available")
	ErrItemNotFound       = errors.New("item not in cart")
	ErrEmpty              = errors.New("cart is empty")
)

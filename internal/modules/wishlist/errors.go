package wishlist

import "errors"

var (
	ErrProductNotFound = errors.New("product not found")
	ErrNotInWishlist   = errors.New("product not in wishlist")
)

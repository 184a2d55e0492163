package products

import "errors"

var (
	ErrNotFound         = errors.New("product not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrImageNotFound    = errors.New("image not found")
	ErrSlugTaken        = errors.New("slug already in use")
	ErrInvalidPrice     = errors.New("price must be positive")
	ErrInvalidStock     = errors.New("stock cannot be negative")
	ErrInvalidStatus    = errors.New("invalid product status")
	ErrCategoryInUse    = errors.New("category still has products")
)

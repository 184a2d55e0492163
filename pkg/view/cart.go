package view

import "time"

type CartItem struct {
	ProductID      string `json:"product_id"`
	ProductName    string `json:"product_name"`
	ProductSlug    string `json:"product_slug"`
	ImageURL       string `json:"image_url"`
	Qty            int    `json:"qty"`
	UnitPriceCents int    `json:"unit_price_cents"`
	LineTotalCents int    `json:"line_total_cents"`
	Currency       string `json:"currency"`
	Stock          int    `json:"stock"`
	// Available is false when the product was archived or sold out after being added.
	Available bool `json:"available"`
}

type CartPage struct {
	Items         []CartItem `json:"items"`
	Count         int        `json:"count"`
	SubtotalCents int        `json:"subtotal_cents"`
	TotalCents    int        `json:"total_cents"`
	Currency      string     `json:"currency"`
}

type CartAddRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Qty       int    `json:"qty" binding:"omitempty,min=1,max=99"`
}

type CartQtyRequest struct {
	Qty int `json:"qty" binding:"min=0,max=99"`
}

type WishlistItem struct {
	Product Product   `json:"product"`
	AddedAt time.Time `json:"added_at"`
}

type WishlistAddRequest struct {
	ProductID string `json:"product_id" binding:"required"`
}

type MoveToCartResult struct {
	Wishlist []WishlistItem `json:"wishlist"`
	Cart     CartPage       `json:"cart"`
}

package view

import "time"

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type ProductImage struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Position int    `json:"position"`
}

type Product struct {
	ID          string         `json:"id"`
	Slug        string         `json:"slug"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	PriceCents  int            `json:"price_cents"`
	Currency    string         `json:"currency"`
	Stock       int            `json:"stock"`
	Status      string         `json:"status"`
	Available   bool           `json:"available"`
	RatingAvg   float64        `json:"rating_avg"`
	RatingCount int            `json:"rating_count"`
	Category    *Category      `json:"category,omitempty"`
	Images      []ProductImage `json:"images"`
	CreatedAt   time.Time      `json:"created_at"`
}

func (p Product) Price() string { return MoneyFromCents(p.PriceCents, p.Currency) }

type ProductList struct {
	Items []Product `json:"items"`
	PageMeta
}

type ProductRequest struct {
	Name         string `json:"name" binding:"required,max=255"`
	Slug         string `json:"slug" binding:"max=255"`
	Description  string `json:"description"`
	PriceCents   int    `json:"price_cents" binding:"required,gt=0"`
	Currency     string `json:"currency" binding:"omitempty,len=3"`
	Stock        int    `json:"stock" binding:"gte=0"`
	Status       string `json:"status" binding:"omitempty,oneof=active draft archived"`
	CategorySlug string `json:"category_slug"`
}

type ProductPatchRequest struct {
	Name         *string `json:"name,omitempty" binding:"omitempty,max=255"`
	Slug         *string `json:"slug,omitempty" binding:"omitempty,max=255"`
	Description  *string `json:"description,omitempty"`
	PriceCents   *int    `json:"price_cents,omitempty" binding:"omitempty,gt=0"`
	Currency     *string `json:"currency,omitempty" binding:"omitempty,len=3"`
	Stock        *int    `json:"stock,omitempty" binding:"omitempty,gte=0"`
	Status       *string `json:"status,omitempty" binding:"omitempty,oneof=active draft archived"`
	CategorySlug *string `json:"category_slug,omitempty"`
}

type CategoryRequest struct {
	Name string `json:"name" binding:"required,max=120"`
	Slug string `json:"slug" binding:"max=140"`
}

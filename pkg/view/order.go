package view

import "time"

type OrderItem struct {
	ProductID      string `json:"product_id"`
	ProductName    string `json:"product_name"`
	ProductSlug    string `json:"product_slug"`
	UnitPriceCents int    `json:"unit_price_cents"`
	Qty            int    `json:"qty"`
	LineTotalCents int    `json:"line_total_cents"`
}

type Shipment struct {
	Carrier        string    `json:"carrier"`
	TrackingNumber string    `json:"tracking_number"`
	CreatedAt      time.Time `json:"created_at"`
}

type Order struct {
	ID              string      `json:"id"`
	UserID          string      `json:"user_id"`
	Status          string      `json:"status"`
	Currency        string      `json:"currency"`
	SubtotalCents   int         `json:"subtotal_cents"`
	ShippingCents   int         `json:"shipping_cents"`
	TaxCents        int         `json:"tax_cents"`
	DiscountCents   int         `json:"discount_cents"`
	TotalCents      int         `json:"total_cents"`
	RefundedCents   int         `json:"refunded_cents"`
	ItemCount       int         `json:"item_count"`
	ShippingMethod  string      `json:"shipping_method"`
	ShippingAddress *Address    `json:"shipping_address,omitempty"`
	CheckoutURL     string      `json:"checkout_url,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	PaidAt          *time.Time  `json:"paid_at,omitempty"`
	Items           []OrderItem `json:"items,omitempty"`
	Shipments       []Shipment  `json:"shipments,omitempty"`
}

func (o Order) Total() string { return MoneyFromCents(o.TotalCents, o.Currency) }

type OrderList struct {
	Items []Order `json:"items"`
	PageMeta
}

type ShippingOption struct {
	Code       string `json:"code"`
	Label      string `json:"label"`
	PriceCents int    `json:"price_cents"`
}

// CheckoutRequest: an empty address_id uses the default address. The
// idempotency key may also come from the Idempotency-Key header.
type CheckoutRequest struct {
	AddressID      string `json:"address_id" binding:"max=36"`
	ShippingMethod string `json:"shipping_method" binding:"omitempty,oneof=standard express"`
	IdempotencyKey string `json:"idempotency_key" binding:"max=64"`
}

type PayRequest struct {
	IdempotencyKey string `json:"idempotency_key" binding:"max=64"`
}

type CheckoutResult struct {
	OrderID    string    `json:"order_id"`
	PaymentID  string    `json:"payment_id"`
	SessionURL string    `json:"session_url"`
	ExpiresAt  time.Time `json:"expires_at"`
}

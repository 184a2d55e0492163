package view

import "time"

type AdminOrder struct {
	Order
	CustomerEmail string `json:"customer_email"`
	CustomerName  string `json:"customer_name"`
}

type AdminOrderList struct {
	Items []AdminOrder `json:"items"`
	PageMeta
}

type OrderEvent struct {
	Action      string    `json:"action"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	ActorUserID string    `json:"actor_user_id,omitempty"`
	Note        string    `json:"note,omitempty"`
	At          time.Time `json:"at"`
}

type FinancialEntry struct {
	Event       string    `json:"event"`
	AmountCents int       `json:"amount_cents"`
	Currency    string    `json:"currency"`
	RefType     string    `json:"ref_type"`
	RefID       string    `json:"ref_id"`
	At          time.Time `json:"at"`
}

type Payment struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	Status      string    `json:"status"`
	AmountCents int       `json:"amount_cents"`
	Currency    string    `json:"currency"`
	CreatedAt   time.Time `json:"created_at"`
}

type Refund struct {
	ID          string    `json:"id"`
	PaymentID   string    `json:"payment_id"`
	Status      string    `json:"status"`
	AmountCents int       `json:"amount_cents"`
	Currency    string    `json:"currency"`
	Reason      string    `json:"reason,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type AdminOrderDetail struct {
	Order    AdminOrder       `json:"order"`
	Events   []OrderEvent     `json:"events"`
	Ledger   []FinancialEntry `json:"ledger"`
	Payments []Payment        `json:"payments"`
	Refunds  []Refund         `json:"refunds"`
}

type TransitionRequest struct {
	Note           string `json:"note" binding:"max=255"`
	Carrier        string `json:"carrier" binding:"max=64"`
	TrackingNumber string `json:"tracking_number" binding:"max=128"`
}

type BulkRequest struct {
	IDs    []string `json:"ids" binding:"required,min=1,max=200,dive,required"`
	Action string   `json:"action" binding:"required,oneof=ship deliver cancel"`
	Note   string   `json:"note" binding:"max=255"`
}

type BulkResult struct {
	ID     string `json:"id"`
	OK     bool   `json:"ok"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

type BulkResponse struct {
	Results []BulkResult `json:"results"`
}

type RefundRequest struct {
	AmountCents    int    `json:"amount_cents" binding:"gte=0"`
	Reason         string `json:"reason" binding:"max=255"`
	IdempotencyKey string `json:"idempotency_key" binding:"max=64"`
}

type RefundResult struct {
	RefundID    string `json:"refund_id"`
	Status      string `json:"status"`
	AmountCents int    `json:"amount_cents"`
	Idempotent  bool   `json:"idempotent"`
}

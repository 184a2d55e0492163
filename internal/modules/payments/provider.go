package payments

import (
	"context"
	"net/http"
	"time"
)

const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
	EventCheckoutExpired  = "checkout.expired"
	EventRefundSucceeded  = "refund.succeeded"
	EventRefundFailed     = "refund.failed"
	// EventIgnored is acknowledged and stored but changes nothing.
	EventIgnored = "ignored"
)

type CheckoutLine struct {
	Name            string
	UnitAmountCents int
	Qty             int
}

type CheckoutSessionRequest struct {
	OrderID        string
	CustomerEmail  string
	AmountCents    int
	Currency       string
	Lines          []CheckoutLine
	ShippingCents  int
	IdempotencyKey string
	SuccessURL     string
	CancelURL      string
	ExpiresAt      time.Time
}

type CheckoutSessionResponse struct {
	SessionRef string
	URL        string
	ExpiresAt  time.Time
}

type RefundRequest struct {
	OrderID        string
	PaymentID      string
	PaymentRef     string // captured payment (payment.charge_ref)
	AmountCents    int
	Currency       string
	IdempotencyKey string
	Reason         string
}

type RefundResponse struct {
	ProviderRef string
	Status      string // initiated|succeeded|failed
}

type WebhookEvent struct {
	EventID string
	Type    string

	SessionRef string // checkout session
	PaymentRef string // captured payment
	RefundRef  string

	AmountCents int
	Currency    string
}

type Provider interface {
	Name() string
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSessionResponse, error)
	RefundPayment(ctx context.Context, req RefundRequest) (RefundResponse, error)

	// VerifyAndParseWebhook checks the signature and normalizes the event.
	VerifyAndParseWebhook(headers http.Header, body []byte) (WebhookEvent, error)
}

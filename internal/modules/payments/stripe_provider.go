package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"github.com/tidwall/gjson"
)

// Stripe only accepts checkout expirations between 30 minutes and 24 hours out.
const (
	stripeMinExpiry = 31 * time.Minute
	stripeMaxExpiry = 24 * time.Hour
)

type StripeProvider struct {
	api           *client.API
	webhookSecret string
	now           func() time.Time
}

func NewStripeProvider(secretKey, webhookSecret string) *StripeProvider {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeProvider{api: api, webhookSecret: webhookSecret, now: time.Now}
}

func (p *StripeProvider) Name() string { return "stripe" }

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSessionResponse, error) {
	cur := strings.ToLower(req.Currency)

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.OrderID),
		ExpiresAt:         stripe.Int64(p.clampExpiry(req.ExpiresAt).Unix()),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{"order_id": req.OrderID},
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	for _, l := range req.Lines {
		params.LineItems = append(params.LineItems, stripeLine(cur, l.Name, l.UnitAmountCents, l.Qty))
	}
	if req.ShippingCents > 0 {
		params.LineItems = append(params.LineItems, stripeLine(cur, "Shipping", req.ShippingCents, 1))
	}
	params.AddMetadata("order_id", req.OrderID)
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	sess, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return CheckoutSessionResponse{}, fmt.Errorf("stripe checkout session: %w", err)
	}
	return CheckoutSessionResponse{
		SessionRef: sess.ID,
		URL:        sess.URL,
		ExpiresAt:  time.Unix(sess.ExpiresAt, 0).UTC(),
	}, nil
}

func stripeLine(currency, name string, unitCents, qty int) *stripe.CheckoutSessionLineItemParams {
	return &stripe.CheckoutSessionLineItemParams{
		Quantity: stripe.Int64(int64(qty)),
		PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(currency),
			UnitAmount: stripe.Int64(int64(unitCents)),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(name),
			},
		},
	}
}

func (p *StripeProvider) clampExpiry(t time.Time) time.Time {
	now := p.now()
	switch {
	case t.IsZero() || t.Before(now.Add(stripeMinExpiry)):
		return now.Add(stripeMinExpiry)
	case t.After(now.Add(stripeMaxExpiry)):
		return now.Add(stripeMaxExpiry)
	}
	return t
}

func (p *StripeProvider) RefundPayment(ctx context.Context, req RefundRequest) (RefundResponse, error) {
	if req.PaymentRef == "" {
		return RefundResponse{Status: StatusFailed}, errors.New("stripe refund: missing payment intent")
	}
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.PaymentRef),
		Amount:        stripe.Int64(int64(req.AmountCents)),
	}
	params.AddMetadata("order_id", req.OrderID)
	params.AddMetadata("refund_id", req.IdempotencyKey)
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	r, err := p.api.Refunds.New(params)
	if err != nil {
		return RefundResponse{Status: StatusFailed}, fmt.Errorf("stripe refund: %w", err)
	}
	return RefundResponse{ProviderRef: r.ID, Status: stripeRefundStatus(string(r.Status))}, nil
}

func stripeRefundStatus(s string) string {
	switch s {
	case "succeeded":
		return StatusSucceeded
	case "failed", "canceled":
		return StatusFailed
	default:
		return StatusInitiated
	}
}

func (p *StripeProvider) VerifyAndParseWebhook(headers http.Header, body []byte) (WebhookEvent, error) {
	evt, err := webhook.ConstructEventWithOptions(body, headers.Get("Stripe-Signature"), p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return WebhookEvent{}, ErrInvalidSignature
	}
	if evt.Data == nil {
		return WebhookEvent{}, ErrInvalidPayload
	}

	obj := gjson.ParseBytes(evt.Data.Raw)
	out := WebhookEvent{EventID: evt.ID, Type: EventIgnored, Currency: strings.ToUpper(obj.Get("currency").String())}

	switch string(evt.Type) {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		if obj.Get("payment_status").String() != "paid" {
			// async methods settle later
			return out, nil
		}
		out.Type = EventPaymentSucceeded
		out.SessionRef = obj.Get("id").String()
		out.PaymentRef = obj.Get("payment_intent").String()
		out.AmountCents = int(obj.Get("amount_total").Int())
	case "checkout.session.async_payment_failed":
		out.Type = EventPaymentFailed
		out.SessionRef = obj.Get("id").String()
	case "checkout.session.expired":
		out.Type = EventCheckoutExpired
		out.SessionRef = obj.Get("id").String()
	case "refund.updated", "refund.created":
		switch stripeRefundStatus(obj.Get("status").String()) {
		case StatusSucceeded:
			out.Type = EventRefundSucceeded
		case StatusFailed:
			out.Type = EventRefundFailed
		default:
			return out, nil
		}
		out.RefundRef = obj.Get("id").String()
		out.PaymentRef = obj.Get("payment_intent").String()
		out.AmountCents = int(obj.Get("amount").Int())
	}
	return out, nil
}

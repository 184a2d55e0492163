package email

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shirly.shop/app/internal/mailer"
	"shirly.shop/app/internal/modules/orders"
)

func testOrder() orders.Order {
	return orders.Order{
		ID:            "0a1b2c3d-aaaa-bbbb-cccc-000000000001",
		Currency:      "EUR",
		SubtotalCents: 4999,
		ShippingCents: 500,
		TotalCents:    5499,
	}
}

func TestOrderConfirmation(t *testing.T) {
	m := &mailer.Mock{}
	s := NewService(m, "orders@shirly.shop", "Shirly", "https://shirly.shop/", nil)

	items := []orders.OrderItem{{ProductName: "Tea <Kettle>", Quantity: 1, LineTotalCents: 4999, Currency: "EUR"}}
	s.OrderConfirmation(context.Background(), Recipient{Email: "ana@example.com", Name: "Ana"}, testOrder(), items)

	sent := m.Sent()
	require.Len(t, sent, 1)
	e := sent[0]
	assert.Equal(t, "Order #0A1B2C3D confirmed", e.Subject)
	assert.Equal(t, []string{"ana@example.com"}, e.To)
	assert.Equal(t, "Shirly", e.FromName)
	assert.Contains(t, e.TextBody, "Total:    €54.99")
	assert.Contains(t, e.TextBody, "https://shirly.shop/orders/"+testOrder().ID)
	assert.Contains(t, e.HTMLBody, "Tea &lt;Kettle&gt;")
	assert.Equal(t, testOrder().ID, e.Headers["X-Order-ID"])
}

func TestStatusChanged(t *testing.T) {
	m := &mailer.Mock{}
	s := NewService(m, "orders@shirly.shop", "Shirly", "https://shirly.shop", nil)
	o := testOrder()

	assert.False(t, s.StatusChanged(context.Background(), Recipient{Email: "a@x.io"}, orders.StatusChange{Order: o, From: orders.StatusCreated, To: orders.StatusPaid}))
	assert.Empty(t, m.Sent())

	o.RefundedCents = 1000
	assert.True(t, s.StatusChanged(context.Background(), Recipient{Email: "a@x.io"}, orders.StatusChange{Order: o, From: orders.StatusPaid, To: orders.StatusPartiallyRefunded}))
	require.Len(t, m.Sent(), 1)
	e := m.Sent()[0]
	assert.Equal(t, "Order #0A1B2C3D: partially refunded", e.Subject)
	assert.Contains(t, e.TextBody, "Hi there,")
	assert.Contains(t, e.TextBody, "Refunded so far: €10.00")
}

func TestSendFailureIsSwallowed(t *testing.T) {
	m := &mailer.Mock{Err: errors.New("smtp down")}
	s := NewService(m, "orders@shirly.shop", "Shirly", "https://shirly.shop", nil)
	assert.NotPanics(t, func() {
		s.Welcome(context.Background(), Recipient{Email: "a@x.io", Name: "A"})
	})
	assert.Len(t, m.Sent(), 1)
}

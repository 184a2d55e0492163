package payments_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"shirly.shop/app/internal/modules/auth"
	"shirly.shop/app/internal/modules/cart"
	"shirly.shop/app/internal/modules/orders"
	"shirly.shop/app/internal/modules/payments"
	"shirly.shop/app/internal/modules/products"
	"shirly.shop/app/internal/testutil"
	"shirly.shop/app/pkg/view"
)

type recordingSink struct {
	mu      sync.Mutex
	changes []orders.StatusChange
}

func (r *recordingSink) OrderStatusChanged(_ context.Context, ch orders.StatusChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, ch)
}

func (r *recordingSink) tos() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.changes))
	for _, c := range r.changes {
		out = append(out, c.To)
	}
	return out
}

type fixture struct {
	db      *gorm.DB
	mock    *payments.MockProvider
	pay     *payments.Service
	hooks   *payments.WebhookService
	refunds *payments.RefundService
	orders  *orders.Service
	sink    *recordingSink
	user    auth.User
	admin   auth.User
	product products.Product
}

func newFixture(t *testing.T) fixture {
	gdb := testutil.DB(t)
	sink := &recordingSink{}
	mock := payments.NewMockProvider("whsec_test", "http://shop.test")
	return fixture{
		db:      gdb,
		mock:    mock,
		pay:     payments.NewService(gdb, mock, sink, nil),
		hooks:   payments.NewWebhookService(gdb, sink, nil),
		refunds: payments.NewRefundService(gdb, mock, sink, nil),
		orders:  orders.NewService(gdb, sink, nil),
		sink:    sink,
		user:    testutil.CreateUser(t, gdb, "buyer@example.com", ""),
		admin:   testutil.CreateUser(t, gdb, "admin@example.com", auth.RoleAdmin),
		product: testutil.CreateProduct(t, gdb, "Lamp", 2500),
	}
}

// placeOrder buys two lamps: 5000 subtotal + 499 standard shipping.
func (f fixture) placeOrder(t *testing.T, key string) orders.Order {
	ctx := context.Background()
	_, err := cart.NewService(f.db, products.NewRepo(f.db)).Add(ctx, f.user.ID, f.product.ID, 2)
	require.NoError(t, err)
	o, _, err := f.orders.CreateFromCart(ctx, orders.CreateInput{
		UserID:         f.user.ID,
		Email:          f.user.Email,
		Address:        view.Address{FullName: "Ada", Line1: "1 Main", City: "X", PostalCode: "1", Country: "US"},
		IdempotencyKey: key,
	})
	require.NoError(t, err)
	require.Equal(t, 5499, o.TotalCents)
	return o
}

func (f fixture) start(t *testing.T, o orders.Order, key string) payments.StartCheckoutResult {
	res, err := f.pay.StartCheckout(context.Background(), payments.StartCheckoutInput{
		OrderID: o.ID, ActorUserID: f.user.ID, IdempotencyKey: key,
		SuccessURL: "http://shop.test/ok", CancelURL: "http://shop.test/cancel",
	})
	require.NoError(t, err)
	return res
}

func (f fixture) deliver(t *testing.T, sessionRef, outcome string) (bool, error) {
	_, body, h, err := f.mock.Complete(sessionRef, outcome)
	require.NoError(t, err)
	ev, err := f.mock.VerifyAndParseWebhook(h, body)
	require.NoError(t, err)
	return f.hooks.Handle(context.Background(), f.mock.Name(), ev, body)
}

func sessionRef(t *testing.T, gdb *gorm.DB, orderID string) string {
	o, err := orders.NewRepo(gdb).Get(context.Background(), orderID)
	require.NoError(t, err)
	require.NotNil(t, o.CheckoutSessionRef)
	return *o.CheckoutSessionRef
}

func TestStartCheckoutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.placeOrder(t, "order-1")

	first := f.start(t, o, "pay-1")
	assert.Contains(t, first.SessionURL, "/mock-checkout/cs_mock_")
	assert.False(t, first.Idempotent)

	again := f.start(t, o, "pay-1")
	assert.True(t, again.Idempotent)
	assert.Equal(t, first.PaymentID, again.PaymentID)
	assert.Equal(t, first.SessionURL, again.SessionURL)

	_, err := f.pay.StartCheckout(ctx, payments.StartCheckoutInput{OrderID: o.ID, ActorUserID: f.admin.ID, IdempotencyKey: "x"})
	assert.ErrorIs(t, err, payments.ErrForbidden)

	ps, _, err := f.pay.ListForOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, ps, 1)
}

func TestPaymentWebhookMarksOrderPaidOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.placeOrder(t, "order-1")
	f.start(t, o, "pay-1")
	ref := sessionRef(t, f.db, o.ID)

	_, body, h, err := f.mock.Complete(ref, "success")
	require.NoError(t, err)
	ev, err := f.mock.VerifyAndParseWebhook(h, body)
	require.NoError(t, err)

	deduped, err := f.hooks.Handle(ctx, "mock", ev, body)
	require.NoError(t, err)
	assert.False(t, deduped)

	deduped, err = f.hooks.Handle(ctx, "mock", ev, body)
	require.NoError(t, err)
	assert.True(t, deduped)

	got, err := orders.NewRepo(f.db).Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPaid, got.Status)
	assert.NotNil(t, got.PaidAt)

	ledger, err := orders.NewRepo(f.db).AdminListFinancial(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.Equal(t, 5499, ledger[0].AmountCents)

	assert.Equal(t, []string{orders.StatusPaid}, f.sink.tos())

	_, err = f.pay.StartCheckout(ctx, payments.StartCheckoutInput{OrderID: o.ID, ActorUserID: f.user.ID, IdempotencyKey: "pay-2"})
	assert.ErrorIs(t, err, payments.ErrOrderNotPayable)
}

func TestFailedPaymentKeepsOrderOpen(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.placeOrder(t, "order-1")
	f.start(t, o, "pay-1")

	_, err := f.deliver(t, sessionRef(t, f.db, o.ID), "fail")
	require.NoError(t, err)

	got, err := orders.NewRepo(f.db).Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCreated, got.Status)

	ps, _, err := f.pay.ListForOrder(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, payments.StatusFailed, ps[0].Status)

	// a fresh attempt works
	res := f.start(t, o, "pay-2")
	assert.NotEmpty(t, res.SessionURL)
}

func TestCheckoutExpiredWebhookCancelsAndRestocks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.placeOrder(t, "order-1")
	f.start(t, o, "pay-1")

	_, err := f.deliver(t, sessionRef(t, f.db, o.ID), "expire")
	require.NoError(t, err)

	got, err := orders.NewRepo(f.db).Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, got.Status)

	p, err := products.NewRepo(f.db).Get(ctx, f.product.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, p.Stock)
}

func TestUnknownEventTypeIsAcknowledged(t *testing.T) {
	f := newFixture(t)
	deduped, err := f.hooks.Handle(context.Background(), "mock",
		payments.WebhookEvent{EventID: "evt_x", Type: payments.EventIgnored}, []byte(`{"id":"evt_x"}`))
	require.NoError(t, err)
	assert.False(t, deduped)
}

func TestUnmatchedPaymentEventIsRecordedAndAcknowledged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := payments.WebhookEvent{EventID: "evt_y", Type: payments.EventPaymentSucceeded, SessionRef: "cs_nope"}

	deduped, err := f.hooks.Handle(ctx, "mock", ev, []byte(`{}`))
	require.NoError(t, err)
	assert.False(t, deduped)

	var pe payments.ProviderEvent
	require.NoError(t, f.db.First(&pe, "event_id = ?", "evt_y").Error)
	require.NotNil(t, pe.ProcessedAt)
	require.NotNil(t, pe.ProcessError)
	assert.Contains(t, *pe.ProcessError, "cs_nope")
	assert.Empty(t, f.sink.tos())

	deduped, err = f.hooks.Handle(ctx, "mock", ev, []byte(`{}`))
	require.NoError(t, err)
	assert.True(t, deduped)
}

func TestRefunds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.placeOrder(t, "order-1")
	f.start(t, o, "pay-1")
	_, err := f.deliver(t, sessionRef(t, f.db, o.ID), "success")
	require.NoError(t, err)

	partial, err := f.refunds.RefundOrder(ctx, payments.RefundOrderInput{
		OrderID: o.ID, ActorUserID: f.admin.ID, IdempotencyKey: "r1", AmountCents: 1000, Reason: "damaged",
	})
	require.NoError(t, err)
	assert.Equal(t, payments.StatusSucceeded, partial.Status)
	assert.Equal(t, 1000, partial.AmountCents)

	replay, err := f.refunds.RefundOrder(ctx, payments.RefundOrderInput{
		OrderID: o.ID, ActorUserID: f.admin.ID, IdempotencyKey: "r1", AmountCents: 1000,
	})
	require.NoError(t, err)
	assert.True(t, replay.Idempotent)
	assert.Equal(t, partial.RefundID, replay.RefundID)

	got, err := orders.NewRepo(f.db).Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPartiallyRefunded, got.Status)
	assert.Equal(t, 1000, got.RefundedCents)

	rest, err := f.refunds.RefundOrder(ctx, payments.RefundOrderInput{
		OrderID: o.ID, ActorUserID: f.admin.ID, IdempotencyKey: "r2",
	})
	require.NoError(t, err)
	assert.Equal(t, 4499, rest.AmountCents)

	got, err = orders.NewRepo(f.db).Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusRefunded, got.Status)
	assert.Equal(t, got.TotalCents, got.RefundedCents)

	_, err = f.refunds.RefundOrder(ctx, payments.RefundOrderInput{OrderID: o.ID, ActorUserID: f.admin.ID, IdempotencyKey: "r3"})
	assert.ErrorIs(t, err, payments.ErrNotRefundable)

	ledger, err := orders.NewRepo(f.db).AdminListFinancial(ctx, o.ID)
	require.NoError(t, err)
	sum := 0
	for _, e := range ledger {
		sum += e.AmountCents
	}
	assert.Zero(t, sum)
}

func TestRefundRequiresCapturedPayment(t *testing.T) {
	f := newFixture(t)
	o := f.placeOrder(t, "order-1")
	_, err := f.refunds.RefundOrder(context.Background(), payments.RefundOrderInput{OrderID: o.ID, ActorUserID: f.admin.ID, IdempotencyKey: "r"})
	assert.ErrorIs(t, err, payments.ErrNoSucceededPayment)
}

func TestExpireStaleCheckouts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	stale := f.placeOrder(t, "order-1")
	f.start(t, stale, "pay-1")

	n, err := f.pay.ExpireStaleCheckouts(ctx, time.Now().Add(time.Hour), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := orders.NewRepo(f.db).Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, got.Status)

	ps, _, err := f.pay.ListForOrder(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, payments.StatusFailed, ps[0].Status)

	n, err = f.pay.ExpireStaleCheckouts(ctx, time.Now().Add(time.Hour), 24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)
}

package lifecycle_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shirly.shop/app/internal/lifecycle"
	"shirly.shop/app/internal/mailer"
	"shirly.shop/app/internal/modules/auth"
	"shirly.shop/app/internal/modules/email"
	"shirly.shop/app/internal/modules/notifications"
	"shirly.shop/app/internal/modules/orders"
	"shirly.shop/app/internal/testutil"
)

func TestSinkNotifiesAndMails(t *testing.T) {
	gdb := testutil.DB(t)
	u := testutil.CreateUser(t, gdb, "ana@example.com", "")
	now := time.Now().UTC()
	o := orders.Order{
		ID: uuid.NewString(), UserID: u.ID, CustomerEmail: u.Email, Status: orders.StatusPaid, Currency: "EUR",
		SubtotalCents: 1000, TotalCents: 1000, IdempotencyKey: "k1", CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, gdb.Create(&o).Error)
	require.NoError(t, gdb.Create(&orders.OrderItem{
		ID: uuid.NewString(), OrderID: o.ID, ProductID: uuid.NewString(), ProductName: "Mug", ProductSlug: "mug",
		UnitPriceCents: 1000, Currency: "EUR", Quantity: 1, LineTotalCents: 1000, CreatedAt: now,
	}).Error)

	m := &mailer.Mock{}
	notify := notifications.NewService(gdb, nil, nil)
	sink := lifecycle.New(
		auth.NewService(gdb, "secret", time.Hour),
		orders.NewRepo(gdb),
		notify,
		email.NewService(m, "orders@shirly.shop", "Shirly", "https://shirly.shop", nil),
		nil,
	)
	ctx := context.Background()

	sink.OrderStatusChanged(ctx, orders.StatusChange{Order: o, From: orders.StatusCreated, To: orders.StatusPaid, Action: "pay"})

	o.Status = orders.StatusShipped
	sink.Async = true
	sink.OrderStatusChanged(ctx, orders.StatusChange{Order: o, From: orders.StatusPaid, To: orders.StatusShipped, Action: orders.ActionShip})
	sink.Wait()

	sent := m.Sent()
	require.Len(t, sent, 2)
	assert.Contains(t, sent[0].Subject, "confirmed")
	assert.Contains(t, sent[0].TextBody, "Hi Test,")
	assert.Contains(t, sent[0].TextBody, "1 x Mug")
	assert.Contains(t, sent[1].Subject, "shipped")

	list, err := notify.List(ctx, notifications.ListParams{UserID: u.ID})
	require.NoError(t, err)
	require.Len(t, list.Items, 2)
	kinds := []string{list.Items[0].Kind, list.Items[1].Kind}
	assert.ElementsMatch(t, []string{notifications.KindPayment, notifications.KindOrderStatus}, kinds)
}

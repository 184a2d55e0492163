package orders_test

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
	"shirly.shop/app/internal/modules/inventory"
	"shirly.shop/app/internal/modules/orders"
	"shirly.shop/app/internal/modules/products"
	"shirly.shop/app/internal/modules/shipping"
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

type fixture struct {
	db    *gorm.DB
	cart  *cart.Service
	svc   *orders.Service
	admin *orders.AdminService
	sink  *recordingSink
	user  auth.User
}

func newFixture(t *testing.T) fixture {
	gdb := testutil.DB(t)
	sink := &recordingSink{}
	return fixture{
		db:    gdb,
		cart:  cart.NewService(gdb, products.NewRepo(gdb)),
		svc:   orders.NewService(gdb, sink, nil),
		admin: orders.NewAdminService(gdb, sink, nil),
		sink:  sink,
		user:  testutil.CreateUser(t, gdb, "buyer@example.com", ""),
	}
}

var addr = view.Address{FullName: "Ada Buyer", Line1: "1 Main St", City: "Springfield", PostalCode: "12345", Country: "US"}

func (f fixture) order(t *testing.T, key string, lines ...products.Product) orders.Order {
	ctx := context.Background()
	for _, p := range lines {
		_, err := f.cart.Add(ctx, f.user.ID, p.ID, 2)
		require.NoError(t, err)
	}
	o, existed, err := f.svc.CreateFromCart(ctx, orders.CreateInput{
		UserID: f.user.ID, Email: f.user.Email, Address: addr, IdempotencyKey: key,
	})
	require.NoError(t, err)
	require.False(t, existed)
	return o
}

func stockOf(t *testing.T, gdb *gorm.DB, id string) int {
	p, err := products.NewRepo(gdb).Get(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func TestCreateFromCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := testutil.CreateProduct(t, f.db, "A", 1500, testutil.WithStock(5))
	b := testutil.CreateProduct(t, f.db, "B", 1000, testutil.WithStock(5))

	o := f.order(t, "key-1", a, b)
	assert.Equal(t, orders.StatusCreated, o.Status)
	assert.Equal(t, 5000, o.SubtotalCents)
	assert.Equal(t, shipping.StandardCents, o.ShippingCents)
	assert.Equal(t, 5000+shipping.StandardCents, o.TotalCents)
	assert.Equal(t, "buyer@example.com", o.CustomerEmail)

	got, err := o.Address()
	require.NoError(t, err)
	assert.Equal(t, "1 Main St", got.Line1)

	assert.Equal(t, 3, stockOf(t, f.db, a.ID))
	assert.Equal(t, 3, stockOf(t, f.db, b.ID))

	page, err := f.cart.Get(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, page.Items, "cart cleared")

	// same key returns the same order without touching stock
	again, existed, err := f.svc.CreateFromCart(ctx, orders.CreateInput{UserID: f.user.ID, Address: addr, IdempotencyKey: "key-1"})
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, o.ID, again.ID)
	assert.Equal(t, 3, stockOf(t, f.db, a.ID))

	_, items, err := f.svc.GetForUser(ctx, o.ID, f.user.ID, false)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestCreateFromCartFreeShippingAndExpress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := testutil.CreateProduct(t, f.db, "Big", 6000)

	o := f.order(t, "k-free", p)
	assert.Zero(t, o.ShippingCents)

	_, err := f.cart.Add(ctx, f.user.ID, p.ID, 1)
	require.NoError(t, err)
	o, _, err = f.svc.CreateFromCart(ctx, orders.CreateInput{UserID: f.user.ID, Address: addr, ShippingMethod: "express", IdempotencyKey: "k-exp"})
	require.NoError(t, err)
	assert.Equal(t, shipping.ExpressCents, o.ShippingCents)
}

func TestCreateFromCartFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, _, err := f.svc.CreateFromCart(ctx, orders.CreateInput{UserID: f.user.ID, Address: addr, IdempotencyKey: "k"})
	assert.ErrorIs(t, err, cart.ErrEmpty)

	_, _, err = f.svc.CreateFromCart(ctx, orders.CreateInput{UserID: f.user.ID, IdempotencyKey: "k"})
	assert.ErrorIs(t, err, orders.ErrMissingAddress)

	_, _, err = f.svc.CreateFromCart(ctx, orders.CreateInput{UserID: f.user.ID, Address: addr})
	assert.ErrorIs(t, err, orders.ErrMissingIdemKey)

	p := testutil.CreateProduct(t, f.db, "Scarce", 100, testutil.WithStock(2))
	_, err = f.cart.Add(ctx, f.user.ID, p.ID, 2)
	require.NoError(t, err)
	// someone else bought one in the meantime
	require.NoError(t, products.NewRepo(f.db).Update(ctx, p.ID, map[string]any{"stock": 1}))

	_, _, err = f.svc.CreateFromCart(ctx, orders.CreateInput{UserID: f.user.ID, Address: addr, IdempotencyKey: "k2"})
	var oos *inventory.OutOfStockError
	require.ErrorAs(t, err, &oos)
	assert.Equal(t, p.ID, oos.Items[0].ProductID)

	page, err := f.cart.Get(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1, "cart kept after failed checkout")
}

func TestCancelByCustomerRestoresStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := testutil.CreateProduct(t, f.db, "A", 100, testutil.WithStock(4))
	o := f.order(t, "k", p)
	assert.Equal(t, 2, stockOf(t, f.db, p.ID))

	stranger := testutil.CreateUser(t, f.db, "stranger@example.com", "")
	_, err := f.svc.CancelByCustomer(ctx, o.ID, stranger.ID)
	assert.ErrorIs(t, err, orders.ErrNotFound)

	got, err := f.svc.CancelByCustomer(ctx, o.ID, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, got.Status)
	assert.Equal(t, 4, stockOf(t, f.db, p.ID))

	_, err = f.svc.CancelByCustomer(ctx, o.ID, f.user.ID)
	assert.ErrorIs(t, err, orders.ErrNotCancellable)

	require.Len(t, f.sink.changes, 1)
	assert.Equal(t, orders.StatusCancelled, f.sink.changes[0].To)
}

func TestGetForUserHidesForeignOrders(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.order(t, "k", testutil.CreateProduct(t, f.db, "A", 100))
	other := testutil.CreateUser(t, f.db, "other@example.com", "")

	_, _, err := f.svc.GetForUser(ctx, o.ID, other.ID, false)
	assert.ErrorIs(t, err, orders.ErrNotFound)
	_, _, err = f.svc.GetForUser(ctx, o.ID, other.ID, true)
	assert.NoError(t, err)
}

func markPaid(t *testing.T, gdb *gorm.DB, id string) {
	require.NoError(t, gdb.Model(&orders.Order{}).Where("id = ?", id).Update("status", orders.StatusPaid).Error)
}

func TestAdminTransitionsAndShipments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	admin := testutil.CreateUser(t, f.db, "admin@example.com", auth.RoleAdmin)
	o := f.order(t, "k", testutil.CreateProduct(t, f.db, "A", 100))

	_, err := f.admin.Transition(ctx, orders.TransitionInput{OrderID: o.ID, ActorUserID: admin.ID, Action: orders.ActionShip})
	assert.ErrorIs(t, err, orders.ErrInvalidTransition)

	markPaid(t, f.db, o.ID)
	got, err := f.admin.Transition(ctx, orders.TransitionInput{
		OrderID: o.ID, ActorUserID: admin.ID, Action: orders.ActionShip, Carrier: "UPS", TrackingNumber: "1Z999",
	})
	require.NoError(t, err)
	assert.Equal(t, orders.StatusShipped, got.Status)

	sh, err := shipping.NewRepo(f.db).ListByOrder(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, sh, 1)
	assert.Equal(t, "1Z999", sh[0].TrackingNumber)

	got, err = f.admin.Transition(ctx, orders.TransitionInput{OrderID: o.ID, ActorUserID: admin.ID, Action: orders.ActionDeliver, Note: "left at door"})
	require.NoError(t, err)
	assert.Equal(t, orders.StatusDelivered, got.Status)

	detail, err := f.admin.Detail(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, detail.Events, 3)
	assert.Equal(t, orders.ActionDeliver, detail.Events[0].Action)
	require.NotNil(t, detail.Events[0].Note)
	assert.Equal(t, "left at door", *detail.Events[0].Note)

	_, err = f.admin.Transition(ctx, orders.TransitionInput{OrderID: o.ID, ActorUserID: admin.ID, Action: orders.ActionExpire})
	assert.ErrorIs(t, err, orders.ErrInvalidTransition)
}

func TestBulkTransitionReportsPerOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := testutil.CreateProduct(t, f.db, "A", 100, testutil.WithStock(50))
	paid1 := f.order(t, "k1", p)
	paid2 := f.order(t, "k2", p)
	unpaid := f.order(t, "k3", p)
	markPaid(t, f.db, paid1.ID)
	markPaid(t, f.db, paid2.ID)

	res := f.admin.BulkTransition(ctx, []string{paid1.ID, unpaid.ID, paid2.ID, "missing", paid1.ID}, orders.ActionShip, "admin", "")
	require.Len(t, res, 4, "duplicates collapse")

	assert.NoError(t, res[0].Err)
	assert.Equal(t, orders.StatusShipped, res[0].Status)
	assert.ErrorIs(t, res[1].Err, orders.ErrInvalidTransition)
	assert.Equal(t, "action not allowed in current status", orders.PublicError(res[1].Err))
	assert.NoError(t, res[2].Err)
	assert.ErrorIs(t, res[3].Err, orders.ErrNotFound)
}

func TestAdminListFiltersAndSorts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cheap := testutil.CreateProduct(t, f.db, "Cheap", 500, testutil.WithStock(50))
	pricey := testutil.CreateProduct(t, f.db, "Pricey", 20000, testutil.WithStock(50))

	o1 := f.order(t, "k1", cheap)
	o2 := f.order(t, "k2", pricey)
	o3 := f.order(t, "k3", cheap)
	markPaid(t, f.db, o2.ID)

	res, err := f.admin.List(ctx, orders.AdminListParams{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Total)

	res, err = f.admin.List(ctx, orders.AdminListParams{Statuses: []string{orders.StatusPaid}})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, o2.ID, res.Items[0].ID)

	minTotal := 10000
	res, err = f.admin.List(ctx, orders.AdminListParams{MinTotal: &minTotal})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, o2.ID, res.Items[0].ID)

	res, err = f.admin.List(ctx, orders.AdminListParams{Sort: "total", Desc: false})
	require.NoError(t, err)
	require.Len(t, res.Items, 3)
	assert.Equal(t, o2.ID, res.Items[2].ID)

	res, err = f.admin.List(ctx, orders.AdminListParams{Q: o3.ID[:8]})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, o3.ID, res.Items[0].ID)

	res, err = f.admin.List(ctx, orders.AdminListParams{Q: "BUYER@"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Total)

	future := time.Now().Add(time.Hour)
	res, err = f.admin.List(ctx, orders.AdminListParams{From: &future})
	require.NoError(t, err)
	assert.Zero(t, res.Total)

	res, err = f.admin.List(ctx, orders.AdminListParams{PageSize: 2, Page: 2, Sort: "created_at"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Total)
	assert.Len(t, res.Items, 1)
	_ = o1
}

func TestListByUserAndExpiredUnpaid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := testutil.CreateProduct(t, f.db, "A", 100, testutil.WithStock(50))
	o1 := f.order(t, "k1", p)
	o2 := f.order(t, "k2", p)

	res, err := f.svc.ListByUser(ctx, orders.ListByUserParams{UserID: f.user.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Total)
	assert.Equal(t, 2, res.Items[0].Count)

	past := time.Now().Add(-time.Minute)
	require.NoError(t, f.svc.SetCheckoutSession(ctx, o1.ID, "cs_1", "https://pay/1", past))
	require.NoError(t, f.svc.SetCheckoutSession(ctx, o2.ID, "cs_2", "https://pay/2", time.Now().Add(time.Hour)))

	ids, err := f.svc.ListExpiredUnpaid(ctx, time.Now(), 24*time.Hour, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{o1.ID}, ids)

	var ch orders.StatusChange
	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		ch, err = orders.ExpireInTx(ctx, tx, o1.ID, "checkout expired")
		return err
	}))
	assert.Equal(t, orders.StatusCancelled, ch.To)
	assert.Equal(t, orders.ActorSystem, ch.Actor)
	assert.Equal(t, 48, stockOf(t, f.db, p.ID))
}

package chat_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"shirly.shop/app/internal/modules/auth"
	"shirly.shop/app/internal/modules/chat"
	"shirly.shop/app/internal/modules/notifications"
	"shirly.shop/app/internal/modules/orders"
	"shirly.shop/app/internal/realtime"
	"shirly.shop/app/internal/testutil"
	"shirly.shop/app/pkg/view"
)

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notifications.Input
}

func (f *fakeNotifier) Notify(_ context.Context, in notifications.Input) (notifications.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, in)
	return notifications.Notification{ID: uuid.NewString(), UserID: in.UserID}, nil
}

func (f *fakeNotifier) recipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, in := range f.sent {
		out = append(out, in.UserID)
	}
	return out
}

func createOrder(t *testing.T, gdb *gorm.DB, userID string) orders.Order {
	now := time.Now().UTC()
	o := orders.Order{
		ID: uuid.NewString(), UserID: userID, Status: orders.StatusPaid, Currency: "USD",
		SubtotalCents: 1000, TotalCents: 1000, IdempotencyKey: uuid.NewString(),
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, gdb.Create(&o).Error)
	return o
}

type fixture struct {
	db       *gorm.DB
	svc      *chat.Service
	broker   *realtime.LocalBroker
	notifier *fakeNotifier
	buyer    auth.User
	admin    auth.User
	stranger auth.User
	order    orders.Order
}

func newFixture(t *testing.T) fixture {
	gdb := testutil.DB(t)
	broker := realtime.NewLocalBroker()
	t.Cleanup(func() { _ = broker.Close() })
	n := &fakeNotifier{}
	buyer := testutil.CreateUser(t, gdb, "buyer@example.com", "")
	return fixture{
		db:       gdb,
		svc:      chat.NewService(gdb, broker, n, nil),
		broker:   broker,
		notifier: n,
		buyer:    buyer,
		admin:    testutil.CreateUser(t, gdb, "admin@example.com", auth.RoleAdmin),
		stranger: testutil.CreateUser(t, gdb, "other@example.com", ""),
		order:    createOrder(t, gdb, buyer.ID),
	}
}

func TestSendPublishesAndNotifiesCounterpart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	sub, err := f.broker.Subscribe(ctx, realtime.OrderTopic(f.order.ID))
	require.NoError(t, err)
	defer sub.Close()

	m, created, err := f.svc.Send(ctx, chat.SendInput{
		OrderID: f.order.ID, Sender: chat.Participant{UserID: f.buyer.ID}, Body: "  where is my parcel?  ", ClientMsgID: "c-1",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "where is my parcel?", m.Body)
	assert.Equal(t, chat.RoleCustomer, m.SenderRole)

	select {
	case raw := <-sub.C:
		var ev view.RealtimeEvent
		require.NoError(t, json.Unmarshal(raw, &ev))
		assert.Equal(t, view.EventMessage, ev.Type)
		require.NotNil(t, ev.Message)
		assert.Equal(t, "c-1", ev.Message.ClientMsgID)
	case <-time.After(time.Second):
		t.Fatal("message not published")
	}
	assert.Equal(t, []string{f.admin.ID}, f.notifier.recipients())

	_, _, err = f.svc.Send(ctx, chat.SendInput{
		OrderID: f.order.ID, Sender: chat.Participant{UserID: f.admin.ID, IsAdmin: true}, Body: "shipped today",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{f.admin.ID, f.buyer.ID}, f.notifier.recipients())
}

func TestSendIsIdempotentPerClientID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	in := chat.SendInput{OrderID: f.order.ID, Sender: chat.Participant{UserID: f.buyer.ID}, Body: "hello", ClientMsgID: "c-1"}

	first, created, err := f.svc.Send(ctx, in)
	require.NoError(t, err)
	require.True(t, created)

	again, created, err := f.svc.Send(ctx, in)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	msgs, err := f.svc.List(ctx, f.order.ID, chat.Participant{UserID: f.buyer.ID}, nil, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestParticipantsOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, _, err := f.svc.Send(ctx, chat.SendInput{OrderID: f.order.ID, Sender: chat.Participant{UserID: f.stranger.ID}, Body: "hi"})
	assert.ErrorIs(t, err, chat.ErrOrderNotFound)

	_, err = f.svc.List(ctx, "missing", chat.Participant{UserID: f.admin.ID, IsAdmin: true}, nil, 0)
	assert.ErrorIs(t, err, chat.ErrOrderNotFound)

	_, _, err = f.svc.Send(ctx, chat.SendInput{OrderID: f.order.ID, Sender: chat.Participant{UserID: f.buyer.ID}, Body: "   "})
	assert.ErrorIs(t, err, chat.ErrEmptyBody)
}

func TestReadTrackingAndSince(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	buyer := chat.Participant{UserID: f.buyer.ID}
	admin := chat.Participant{UserID: f.admin.ID, IsAdmin: true}

	first, _, err := f.svc.Send(ctx, chat.SendInput{OrderID: f.order.ID, Sender: admin, Body: "one"})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, _, err = f.svc.Send(ctx, chat.SendInput{OrderID: f.order.ID, Sender: admin, Body: "two"})
	require.NoError(t, err)

	n, err := f.svc.UnreadCount(ctx, f.order.ID, buyer)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = f.svc.UnreadCount(ctx, f.order.ID, admin)
	require.NoError(t, err)
	assert.Zero(t, n, "own messages are never unread")

	newer, err := f.svc.List(ctx, f.order.ID, buyer, &first.CreatedAt, 0)
	require.NoError(t, err)
	require.Len(t, newer, 1)
	assert.Equal(t, "two", newer[0].Body)

	marked, err := f.svc.MarkRead(ctx, f.order.ID, buyer)
	require.NoError(t, err)
	assert.EqualValues(t, 2, marked)

	n, err = f.svc.UnreadCount(ctx, f.order.ID, buyer)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSincePagesForwardWithoutGaps(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	buyer := chat.Participant{UserID: f.buyer.ID}

	base := time.Now().UTC().Add(-time.Minute).Truncate(time.Millisecond)
	for i := 0; i < 5; i++ {
		require.NoError(t, f.db.Create(&chat.Message{
			ID:         uuid.NewString(),
			OrderID:    f.order.ID,
			SenderID:   f.admin.ID,
			SenderRole: chat.RoleAdmin,
			Body:       fmt.Sprintf("m%d", i),
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		}).Error)
	}
	bodies := func(ms []chat.Message) []string {
		var out []string
		for _, m := range ms {
			out = append(out, m.Body)
		}
		return out
	}

	since := base.Add(-time.Second)
	page, err := f.svc.List(ctx, f.order.ID, buyer, &since, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"m0", "m1", "m2"}, bodies(page))

	next, err := f.svc.List(ctx, f.order.ID, buyer, &page[len(page)-1].CreatedAt, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"m3", "m4"}, bodies(next))

	latest, err := f.svc.List(ctx, f.order.ID, buyer, nil, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"m2", "m3", "m4"}, bodies(latest))
}

func TestOverlongClientIDIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	in := chat.SendInput{
		OrderID:     f.order.ID,
		Sender:      chat.Participant{UserID: f.buyer.ID},
		Body:        "hello",
		ClientMsgID: strings.Repeat("é", 40),
	}
	_, _, err := f.svc.Send(ctx, in)
	assert.ErrorIs(t, err, chat.ErrClientMsgIDTooLong)

	in.ClientMsgID = strings.Repeat("a", chat.MaxClientMsgIDLen)
	m, created, err := f.svc.Send(ctx, in)
	require.NoError(t, err)
	assert.True(t, created)
	require.NotNil(t, m.ClientMsgID)
	assert.Equal(t, in.ClientMsgID, *m.ClientMsgID)
}

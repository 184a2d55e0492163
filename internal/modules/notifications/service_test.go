package notifications_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shirly.shop/app/internal/modules/notifications"
	"shirly.shop/app/internal/realtime"
	"shirly.shop/app/internal/testutil"
	"shirly.shop/app/pkg/view"
)

func TestNotifyPublishesAndCounts(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.DB(t)
	broker := realtime.NewLocalBroker()
	defer broker.Close()
	svc := notifications.NewService(gdb, broker, nil)
	u := testutil.CreateUser(t, gdb, "n@example.com", "")

	sub, err := broker.Subscribe(ctx, realtime.UserTopic(u.ID))
	require.NoError(t, err)
	defer sub.Close()

	n, err := svc.Notify(ctx, notifications.Input{UserID: u.ID, Kind: notifications.KindOrderStatus, Title: "Order shipped", Link: "o1"})
	require.NoError(t, err)

	select {
	case raw := <-sub.C:
		var ev view.RealtimeEvent
		require.NoError(t, json.Unmarshal(raw, &ev))
		assert.Equal(t, view.EventNotification, ev.Type)
		require.NotNil(t, ev.Notification)
		assert.Equal(t, n.ID, ev.Notification.ID)
	case <-time.After(time.Second):
		t.Fatal("no realtime hint")
	}

	_, err = svc.Notify(ctx, notifications.Input{UserID: u.ID, Kind: notifications.KindChatMessage, Title: "New message"})
	require.NoError(t, err)

	count, err := svc.UnreadCount(ctx, u.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	require.NoError(t, svc.MarkRead(ctx, u.ID, n.ID))
	list, err := svc.List(ctx, notifications.ListParams{UserID: u.ID, UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "New message", list.Items[0].Title)
	assert.EqualValues(t, 1, list.Unread)

	other := testutil.CreateUser(t, gdb, "x@example.com", "")
	assert.ErrorIs(t, svc.MarkRead(ctx, other.ID, n.ID), notifications.ErrNotFound)

	changed, err := svc.MarkAllRead(ctx, u.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, changed)
}

func TestPruneRead(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.DB(t)
	svc := notifications.NewService(gdb, nil, nil)
	u := testutil.CreateUser(t, gdb, "n@example.com", "")

	read, err := svc.Notify(ctx, notifications.Input{UserID: u.ID, Kind: notifications.KindPayment, Title: "Paid"})
	require.NoError(t, err)
	_, err = svc.Notify(ctx, notifications.Input{UserID: u.ID, Kind: notifications.KindPayment, Title: "Unread"})
	require.NoError(t, err)
	require.NoError(t, svc.MarkRead(ctx, u.ID, read.ID))

	n, err := svc.PruneRead(ctx, time.Now().Add(48*time.Hour), 24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	list, err := svc.List(ctx, notifications.ListParams{UserID: u.ID})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "Unread", list.Items[0].Title)
}

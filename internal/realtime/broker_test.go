package realtime

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func recv(t *testing.T, c <-chan []byte) []byte {
	t.Helper()
	select {
	case b, ok := <-c:
		require.True(t, ok, "channel closed")
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestLocalBrokerFanOut(t *testing.T) {
	ctx := context.Background()
	b := NewLocalBroker()
	defer b.Close()

	a, err := b.Subscribe(ctx, OrderTopic("o1"))
	require.NoError(t, err)
	c, err := b.Subscribe(ctx, OrderTopic("o1"))
	require.NoError(t, err)
	other, err := b.Subscribe(ctx, OrderTopic("o2"))
	require.NoError(t, err)
	defer other.Close()

	require.NoError(t, b.Publish(ctx, OrderTopic("o1"), []byte("hi")))
	assert.Equal(t, "hi", string(recv(t, a.C)))
	assert.Equal(t, "hi", string(recv(t, c.C)))
	assert.Empty(t, other.C)

	a.Close()
	a.Close()
	_, open := <-a.C
	assert.False(t, open)
	assert.Equal(t, 1, b.Subscribers(OrderTopic("o1")))

	c.Close()
	assert.Zero(t, b.Subscribers(OrderTopic("o1")))
}

func TestLocalBrokerDropsForSlowSubscriber(t *testing.T) {
	ctx := context.Background()
	b := NewLocalBroker()
	dropped := 0
	b.OnDrop = func(string) { dropped++ }

	s, err := b.Subscribe(ctx, "t")
	require.NoError(t, err)
	for i := 0; i < subBuffer+3; i++ {
		require.NoError(t, b.Publish(ctx, "t", []byte("x")))
	}
	assert.Equal(t, 3, dropped)

	require.NoError(t, b.Close())
	assert.ErrorIs(t, b.Publish(ctx, "t", nil), ErrClosed)
	_, err = b.Subscribe(ctx, "t")
	assert.ErrorIs(t, err, ErrClosed)
	s.Close()
}

func TestRedisBroker(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	b, err := NewRedisBroker(ctx, url, nil)
	require.NoError(t, err)
	defer b.Close()

	s, err := b.Subscribe(ctx, UserTopic("u1"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, b.Publish(ctx, UserTopic("u1"), []byte(`{"type":"notification"}`)))
	assert.JSONEq(t, `{"type":"notification"}`, string(recv(t, s.C)))
}

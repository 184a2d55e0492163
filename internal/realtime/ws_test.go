package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServePumpsBothWays(t *testing.T) {
	b := NewLocalBroker()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	served := make(chan error, 1)
	up := Upgrader(nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			served <- err
			return
		}
		sub, err := b.Subscribe(r.Context(), "room")
		if err != nil {
			served <- err
			return
		}
		served <- Serve(ctx, conn, sub, func(_ context.Context, frame []byte) []byte {
			return append([]byte("echo:"), frame...)
		}, ServeOptions{PingPeriod: 50 * time.Millisecond, PongWait: time.Second})
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, got, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "echo:ping", string(got))

	require.Eventually(t, func() bool { return b.Subscribers("room") == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, b.Publish(context.Background(), "room", []byte("event")))
	_, got, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "event", string(got))

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after client close")
	}
	assert.Zero(t, b.Subscribers("room"))
}

func TestServeStopsOnCancel(t *testing.T) {
	b := NewLocalBroker()
	defer b.Close()
	ctx, cancel := context.WithCancel(context.Background())

	served := make(chan error, 1)
	up := Upgrader(nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			served <- err
			return
		}
		sub, _ := b.Subscribe(r.Context(), "room")
		served <- Serve(ctx, conn, sub, nil, ServeOptions{})
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestUpgraderOrigins(t *testing.T) {
	up := Upgrader([]string{"https://shirly.shop"})
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.True(t, up.CheckOrigin(r))
	r.Header.Set("Origin", "https://shirly.shop")
	assert.True(t, up.CheckOrigin(r))
	r.Header.Set("Origin", "https://evil.example")
	assert.False(t, up.CheckOrigin(r))
}

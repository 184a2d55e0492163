package realtime

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// FrameHandler handles one client frame and returns an optional reply.
type FrameHandler func(ctx context.Context, frame []byte) []byte

type ServeOptions struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
}

func (o ServeOptions) withDefaults() ServeOptions {
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = o.PongWait * 9 / 10
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 8 << 10
	}
	return o
}

// Upgrader accepts browser connections from the allowed origins; an empty list allows any.
func Upgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowedOrigins) == 0 {
				return true
			}
			for _, o := range allowedOrigins {
				if o == origin {
					return true
				}
			}
			return false
		},
	}
}

// Serve pumps sub to conn and client frames to handle until the client goes away,
// the subscription ends or ctx is cancelled. It owns conn and sub and closes both.
func Serve(ctx context.Context, conn *websocket.Conn, sub *Subscription, handle FrameHandler, opts ServeOptions) error {
	opts = opts.withDefaults()
	defer sub.Close()

	conn.SetReadLimit(opts.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	})

	stop := make(chan struct{})
	replies := make(chan []byte, 8)
	readErr := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			if handle == nil {
				continue
			}
			if r := handle(ctx, data); r != nil {
				select {
				case replies <- r:
				case <-stop:
				}
			}
		}
	}()

	ticker := time.NewTicker(opts.PingPeriod)
	err := func() error {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				closeWith(conn, websocket.CloseGoingAway, opts.WriteWait)
				return nil
			case err := <-readErr:
				readErr <- err
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return nil
				}
				return err
			case msg, ok := <-sub.C:
				if !ok {
					closeWith(conn, websocket.CloseGoingAway, opts.WriteWait)
					return nil
				}
				if err := write(conn, websocket.TextMessage, msg, opts.WriteWait); err != nil {
					return err
				}
			case r := <-replies:
				if err := write(conn, websocket.TextMessage, r, opts.WriteWait); err != nil {
					return err
				}
			case <-ticker.C:
				if err := write(conn, websocket.PingMessage, nil, opts.WriteWait); err != nil {
					return err
				}
			}
		}
	}()

	close(stop)
	_ = conn.Close()
	<-readErr
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	return err
}

func write(conn *websocket.Conn, typ int, data []byte, wait time.Duration) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wait))
	return conn.WriteMessage(typ, data)
}

func closeWith(conn *websocket.Conn, code int, wait time.Duration) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""), time.Now().Add(wait))
}

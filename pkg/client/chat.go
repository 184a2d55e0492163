package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"shirly.shop/app/pkg/view"
)

// Messages lists an order's conversation, oldest first. A non-zero since
// returns only newer messages.
func (c *Client) Messages(ctx context.Context, orderID string, since time.Time, limit int) (view.MessageList, error) {
	v := url.Values{}
	if !since.IsZero() {
		v.Set("since", since.UTC().Format(time.RFC3339Nano))
	}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	var out view.MessageList
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/orders/" + escape(orderID) + "/messages", query: v}, &out)
	return out, err
}

// SendMessage is idempotent per clientMsgID.
func (c *Client) SendMessage(ctx context.Context, orderID, body, clientMsgID string) (view.Message, error) {
	var out view.Message
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/orders/" + escape(orderID) + "/messages",
		body:   view.SendMessageRequest{Body: body, ClientMsgID: clientMsgID},
	}, &out)
	return out, err
}

func (c *Client) MarkMessagesRead(ctx context.Context, orderID string) (int64, error) {
	var out struct {
		Marked int64 `json:"marked"`
	}
	err := c.do(ctx, request{method: http.MethodPost, path: "/api/orders/" + escape(orderID) + "/messages/read"}, &out)
	return out.Marked, err
}

func (c *Client) UnreadMessages(ctx context.Context, orderID string) (int64, error) {
	var out view.UnreadCount
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/orders/" + escape(orderID) + "/messages/unread-count"}, &out)
	return out.Count, err
}

func (c *Client) ChatTicket(ctx context.Context, orderID string) (view.ChatTicket, error) {
	var out view.ChatTicket
	err := c.do(ctx, request{method: http.MethodPost, path: "/api/orders/" + escape(orderID) + "/chat/ticket"}, &out)
	return out, err
}

// DialChat opens the realtime channel of an order with a ticket from ChatTicket.
func (c *Client) DialChat(ctx context.Context, orderID, ticket string) (*websocket.Conn, error) {
	u := wsURL(c.baseURL) + "/api/orders/" + escape(orderID) + "/chat/ws?ticket=" + url.QueryEscape(ticket)
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, u, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return conn, nil
}

func wsURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return base
	}
}

package client

import (
	"context"
	"net/http"
	"net/url"

	"shirly.shop/app/pkg/view"
)

func (c *Client) Notifications(ctx context.Context, unreadOnly bool, page int) (view.NotificationList, error) {
	v := url.Values{}
	if unreadOnly {
		v.Set("unread", "1")
	}
	setPage(v, page, 0)
	var out view.NotificationList
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/notifications", query: v}, &out)
	return out, err
}

func (c *Client) UnreadNotifications(ctx context.Context) (int64, error) {
	var out view.UnreadCount
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/notifications/unread-count"}, &out)
	return out.Count, err
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.do(ctx, request{method: http.MethodPost, path: "/api/notifications/" + escape(id) + "/read"}, nil)
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context) (int64, error) {
	var out struct {
		Marked int64 `json:"marked"`
	}
	err := c.do(ctx, request{method: http.MethodPost, path: "/api/notifications/read-all"}, &out)
	return out.Marked, err
}

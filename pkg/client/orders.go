package client

import (
	"context"
	"net/http"
	"net/url"

	"shirly.shop/app/pkg/view"
)

const headerIdempotencyKey = "Idempotency-Key"

// Checkout turns the cart into an order and returns the hosted checkout URL
// the caller must send the shopper to. Reusing idemKey replays the same order.
func (c *Client) Checkout(ctx context.Context, in view.CheckoutRequest) (view.CheckoutResult, error) {
	var out view.CheckoutResult
	err := c.do(ctx, request{
		method:  http.MethodPost,
		path:    "/api/checkout",
		body:    in,
		headers: map[string]string{headerIdempotencyKey: in.IdempotencyKey},
	}, &out)
	return out, err
}

// Pay resumes payment of an unpaid order.
func (c *Client) Pay(ctx context.Context, orderID, idemKey string) (view.CheckoutResult, error) {
	var out view.CheckoutResult
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/orders/" + escape(orderID) + "/pay",
		body:   view.PayRequest{IdempotencyKey: idemKey},
	}, &out)
	return out, err
}

func (c *Client) Orders(ctx context.Context, status string, page int) (view.OrderList, error) {
	v := url.Values{}
	if status != "" {
		v.Set("status", status)
	}
	setPage(v, page, 0)
	var out view.OrderList
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/orders", query: v}, &out)
	return out, err
}

func (c *Client) Order(ctx context.Context, id string) (view.Order, error) {
	var out view.Order
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/orders/" + escape(id)}, &out)
	return out, err
}

func (c *Client) CancelOrder(ctx context.Context, id string) (view.Order, error) {
	var out view.Order
	err := c.do(ctx, request{method: http.MethodPost, path: "/api/orders/" + escape(id) + "/cancel"}, &out)
	return out, err
}

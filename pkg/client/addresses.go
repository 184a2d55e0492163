package client

import (
	"context"
	"net/http"

	"shirly.shop/app/pkg/view"
)

func (c *Client) Addresses(ctx context.Context) ([]view.Address, error) {
	var out []view.Address
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/addresses"}, &out)
	return out, err
}

func (c *Client) CreateAddress(ctx context.Context, in view.AddressRequest) (view.Address, error) {
	var out view.Address
	err := c.do(ctx, request{method: http.MethodPost, path: "/api/addresses", body: in}, &out)
	return out, err
}

func (c *Client) UpdateAddress(ctx context.Context, id string, in view.AddressRequest) (view.Address, error) {
	var out view.Address
	err := c.do(ctx, request{method: http.MethodPatch, path: "/api/addresses/" + escape(id), body: in}, &out)
	return out, err
}

func (c *Client) DeleteAddress(ctx context.Context, id string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/api/addresses/" + escape(id)}, nil)
}

func (c *Client) SetDefaultAddress(ctx context.Context, id string) (view.Address, error) {
	var out view.Address
	err := c.do(ctx, request{method: http.MethodPost, path: "/api/addresses/" + escape(id) + "/default"}, &out)
	return out, err
}

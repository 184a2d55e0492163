package client

import (
	"context"
	"net/http"

	"shirly.shop/app/pkg/view"
)

func (c *Client) Cart(ctx context.Context) (view.CartPage, error) {
	var out view.CartPage
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/cart"}, &out)
	return out, err
}

func (c *Client) AddToCart(ctx context.Context, productID string, qty int) (view.CartPage, error) {
	var out view.CartPage
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/cart",
		body:   view.CartAddRequest{ProductID: productID, Qty: qty},
	}, &out)
	return out, err
}

// SetCartQty sets the line quantity; 0 removes the line.
func (c *Client) SetCartQty(ctx context.Context, productID string, qty int) (view.CartPage, error) {
	var out view.CartPage
	err := c.do(ctx, request{
		method: http.MethodPatch,
		path:   "/api/cart/items/" + escape(productID),
		body:   view.CartQtyRequest{Qty: qty},
	}, &out)
	return out, err
}

func (c *Client) RemoveFromCart(ctx context.Context, productID string) (view.CartPage, error) {
	var out view.CartPage
	err := c.do(ctx, request{method: http.MethodDelete, path: "/api/cart/items/" + escape(productID)}, &out)
	return out, err
}

func (c *Client) ClearCart(ctx context.Context) (view.CartPage, error) {
	var out view.CartPage
	err := c.do(ctx, request{method: http.MethodDelete, path: "/api/cart"}, &out)
	return out, err
}

func (c *Client) Wishlist(ctx context.Context) ([]view.WishlistItem, error) {
	var out []view.WishlistItem
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/wishlist"}, &out)
	return out, err
}

func (c *Client) AddToWishlist(ctx context.Context, productID string) ([]view.WishlistItem, error) {
	var out []view.WishlistItem
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/wishlist",
		body:   view.WishlistAddRequest{ProductID: productID},
	}, &out)
	return out, err
}

func (c *Client) RemoveFromWishlist(ctx context.Context, productID string) ([]view.WishlistItem, error) {
	var out []view.WishlistItem
	err := c.do(ctx, request{method: http.MethodDelete, path: "/api/wishlist/" + escape(productID)}, &out)
	return out, err
}

func (c *Client) MoveToCart(ctx context.Context, productID string) (view.MoveToCartResult, error) {
	var out view.MoveToCartResult
	err := c.do(ctx, request{method: http.MethodPost, path: "/api/wishlist/" + escape(productID) + "/move-to-cart"}, &out)
	return out, err
}

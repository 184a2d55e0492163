package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"shirly.shop/app/pkg/view"
)

// ProductQuery mirrors the catalogue filters; zero values are omitted.
type ProductQuery struct {
	Q        string
	Category string
	MinPrice *int
	MaxPrice *int
	InStock  bool
	Sort     string
	Page     int
	PageSize int
}

func (q ProductQuery) values() url.Values {
	v := url.Values{}
	if q.Q != "" {
		v.Set("q", q.Q)
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.MinPrice != nil {
		v.Set("min_price", strconv.Itoa(*q.MinPrice))
	}
	if q.MaxPrice != nil {
		v.Set("max_price", strconv.Itoa(*q.MaxPrice))
	}
	if q.InStock {
		v.Set("in_stock", "1")
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	setPage(v, q.Page, q.PageSize)
	return v
}

func setPage(v url.Values, page, size int) {
	if page > 0 {
		v.Set("page", strconv.Itoa(page))
	}
	if size > 0 {
		v.Set("page_size", strconv.Itoa(size))
	}
}

func (c *Client) Products(ctx context.Context, q ProductQuery) (view.ProductList, error) {
	var out view.ProductList
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/products", query: q.values()}, &out)
	return out, err
}

func (c *Client) Product(ctx context.Context, slug string) (view.Product, error) {
	var out view.Product
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/products/" + escape(slug)}, &out)
	return out, err
}

func (c *Client) Categories(ctx context.Context) ([]view.Category, error) {
	var out []view.Category
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/categories"}, &out)
	return out, err
}

func (c *Client) Reviews(ctx context.Context, slug string, page int) (view.ReviewList, error) {
	v := url.Values{}
	setPage(v, page, 0)
	var out view.ReviewList
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/products/" + escape(slug) + "/reviews", query: v}, &out)
	return out, err
}

// CreateReview answers 201 for a new review; an existing one by the same
// author is reported as a 409 APIError.
func (c *Client) CreateReview(ctx context.Context, slug string, in view.ReviewRequest) (view.Review, error) {
	var out view.Review
	err := c.do(ctx, request{method: http.MethodPost, path: "/api/products/" + escape(slug) + "/reviews", body: in}, &out)
	return out, err
}

func (c *Client) UpdateReview(ctx context.Context, id string, in view.ReviewRequest) (view.Review, error) {
	var out view.Review
	err := c.do(ctx, request{method: http.MethodPatch, path: "/api/reviews/" + escape(id), body: in}, &out)
	return out, err
}

func (c *Client) DeleteReview(ctx context.Context, id string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/api/reviews/" + escape(id)}, nil)
}

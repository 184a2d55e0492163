package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"shirly.shop/app/pkg/view"
)

// AdminOrderQuery is the server-side order filter. Times are sent as RFC 3339.
type AdminOrderQuery struct {
	Q        string
	Statuses []string
	From     time.Time
	To       time.Time
	MinTotal *int
	MaxTotal *int
	Sort     string
	Desc     bool
	Page     int
	PageSize int
}

func (q AdminOrderQuery) values() url.Values {
	v := url.Values{}
	if q.Q != "" {
		v.Set("q", q.Q)
	}
	if len(q.Statuses) > 0 {
		v.Set("status", strings.Join(q.Statuses, ","))
	}
	if !q.From.IsZero() {
		v.Set("from", q.From.UTC().Format(time.RFC3339))
	}
	if !q.To.IsZero() {
		v.Set("to", q.To.UTC().Format(time.RFC3339))
	}
	if q.MinTotal != nil {
		v.Set("min_total", strconv.Itoa(*q.MinTotal))
	}
	if q.MaxTotal != nil {
		v.Set("max_total", strconv.Itoa(*q.MaxTotal))
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	if q.Desc {
		v.Set("desc", "1")
	}
	setPage(v, q.Page, q.PageSize)
	return v
}

func (c *Client) AdminOrders(ctx context.Context, q AdminOrderQuery) (view.AdminOrderList, error) {
	var out view.AdminOrderList
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/admin/orders", query: q.values()}, &out)
	return out, err
}

func (c *Client) AdminOrder(ctx context.Context, id string) (view.AdminOrderDetail, error) {
	var out view.AdminOrderDetail
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/admin/orders/" + escape(id)}, &out)
	return out, err
}

// TransitionOrder applies ship, deliver or cancel.
func (c *Client) TransitionOrder(ctx context.Context, id, action string, in view.TransitionRequest) (view.AdminOrder, error) {
	var out view.AdminOrder
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/admin/orders/" + escape(id) + "/" + escape(action),
		body:   in,
	}, &out)
	return out, err
}

// BulkTransition reports one result per distinct id; a failed order does not
// fail the call.
func (c *Client) BulkTransition(ctx context.Context, in view.BulkRequest) (view.BulkResponse, error) {
	var out view.BulkResponse
	err := c.do(ctx, request{method: http.MethodPost, path: "/api/admin/orders/bulk", body: in}, &out)
	return out, err
}

func (c *Client) RefundOrder(ctx context.Context, id string, in view.RefundRequest) (view.RefundResult, error) {
	var out view.RefundResult
	err := c.do(ctx, request{method: http.MethodPost, path: "/api/admin/orders/" + escape(id) + "/refund", body: in}, &out)
	return out, err
}

// Analytics takes YYYY-MM-DD bounds; empty means the last 30 days.
func (c *Client) Analytics(ctx context.Context, from, to string) (view.Dashboard, error) {
	v := url.Values{}
	if from != "" {
		v.Set("from", from)
	}
	if to != "" {
		v.Set("to", to)
	}
	var out view.Dashboard
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/admin/analytics", query: v}, &out)
	return out, err
}

func (c *Client) AdminProducts(ctx context.Context, status string, page int) (view.ProductList, error) {
	v := url.Values{}
	if status != "" {
		v.Set("status", status)
	}
	setPage(v, page, 0)
	var out view.ProductList
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/admin/products", query: v}, &out)
	return out, err
}

func (c *Client) CreateProduct(ctx context.Context, in view.ProductRequest) (view.Product, error) {
	var out view.Product
	err := c.do(ctx, request{method: http.MethodPost, path: "/api/admin/products", body: in}, &out)
	return out, err
}

func (c *Client) UpdateProduct(ctx context.Context, id string, in view.ProductPatchRequest) (view.Product, error) {
	var out view.Product
	err := c.do(ctx, request{method: http.MethodPatch, path: "/api/admin/products/" + escape(id), body: in}, &out)
	return out, err
}

func (c *Client) ArchiveProduct(ctx context.Context, id string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/api/admin/products/" + escape(id)}, nil)
}

// UploadProductImage sends r as the multipart "image" field.
func (c *Client) UploadProductImage(ctx context.Context, productID, filename, contentType string, r io.Reader) (view.ProductImage, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return view.ProductImage{}, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return view.ProductImage{}, err
	}
	if err := mw.Close(); err != nil {
		return view.ProductImage{}, err
	}

	var out view.ProductImage
	err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/api/admin/products/" + escape(productID) + "/images",
		raw:         &buf,
		contentType: mw.FormDataContentType(),
	}, &out)
	return out, err
}

func (c *Client) DeleteProductImage(ctx context.Context, productID, imageID string) error {
	return c.do(ctx, request{
		method: http.MethodDelete,
		path:   "/api/admin/products/" + escape(productID) + "/images/" + escape(imageID),
	}, nil)
}

func (c *Client) CreateCategory(ctx context.Context, in view.CategoryRequest) (view.Category, error) {
	var out view.Category
	err := c.do(ctx, request{method: http.MethodPost, path: "/api/admin/categories", body: in}, &out)
	return out, err
}

func (c *Client) DeleteCategory(ctx context.Context, slug string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/api/admin/categories/" + escape(slug)}, nil)
}

// Health reads /healthz; a degraded server answers 503 with the same body.
func (c *Client) Health(ctx context.Context) (view.Health, error) {
	var out view.Health
	err := c.do(ctx, request{method: http.MethodGet, path: "/healthz"}, &out)
	return out, err
}

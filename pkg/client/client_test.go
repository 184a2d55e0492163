package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shirly.shop/app/pkg/client"
	"shirly.shop/app/pkg/view"
)

func newClient(t *testing.T, h http.Handler, retries int) *client.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := client.New(client.Config{BaseURL: srv.URL + "/", HTTPClient: srv.Client(), Retries: retries})
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestLoginStoresTokenForLaterCalls(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req view.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ada@example.com", req.Email)
		writeJSON(w, http.StatusOK, view.AuthResult{Token: "tok-1", User: view.User{ID: "u1", Email: req.Email}})
	})
	mux.HandleFunc("GET /api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			writeJSON(w, http.StatusUnauthorized, view.Error{Error: "authentication required"})
			return
		}
		writeJSON(w, http.StatusOK, view.User{ID: "u1"})
	})
	c := newClient(t, mux, 0)

	_, err := c.Me(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrUnauthorized)

	res, err := c.Login(context.Background(), "ada@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", res.Token)
	assert.Equal(t, "tok-1", c.Token())

	me, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", me.ID)
}

func TestAPIErrorCarriesFieldsAndRequestID(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-ID", "hdr-id")
		writeJSON(w, http.StatusBadRequest, view.Error{
			Error: "validation failed", RequestID: "rid-9", Fields: map[string]string{"qty": "Must be at least 1."},
		})
	}), 0)

	_, err := c.AddToCart(context.Background(), "p1", 0)
	var ae *client.APIError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, http.StatusBadRequest, ae.Status)
	assert.Equal(t, "validation failed", ae.Message)
	assert.Equal(t, "rid-9", ae.RequestID)
	assert.Equal(t, "Must be at least 1.", ae.Fields["qty"])
	assert.False(t, errors.Is(err, client.ErrUnauthorized))
	assert.True(t, client.IsStatus(err, http.StatusBadRequest))
}

func TestNonJSONErrorFallsBackToStatusText(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}), 0)
	_, err := c.Categories(context.Background())
	var ae *client.APIError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "Bad Gateway", ae.Message)
}

func TestGetRetriesOnTooManyRequests(t *testing.T) {
	var calls atomic.Int32
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			writeJSON(w, http.StatusTooManyRequests, view.Error{Error: "slow down"})
			return
		}
		writeJSON(w, http.StatusOK, []view.Category{{ID: "c1", Name: "Shirts", Slug: "shirts"}})
	}), 2)

	cats, err := c.Categories(context.Background())
	require.NoError(t, err)
	assert.Len(t, cats, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPostIsNeverRetried(t *testing.T) {
	var calls atomic.Int32
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusTooManyRequests, view.Error{Error: "slow down"})
	}), 3)

	_, err := c.SendMessage(context.Background(), "o1", "hi", "m1")
	assert.True(t, client.IsStatus(err, http.StatusTooManyRequests))
	assert.Equal(t, int32(1), calls.Load())
}

func TestCheckoutSendsIdempotencyKeyHeader(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/checkout", r.URL.Path)
		assert.Equal(t, "key-1", r.Header.Get("Idempotency-Key"))
		writeJSON(w, http.StatusCreated, view.CheckoutResult{OrderID: "o1", SessionURL: "https://pay.example/cs_1"})
	}), 0)

	res, err := c.Checkout(context.Background(), view.CheckoutRequest{IdempotencyKey: "key-1"})
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/cs_1", res.SessionURL)
}

func TestAdminOrderQueryEncoding(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "paid,shipped", q.Get("status"))
		assert.Equal(t, "500", q.Get("min_total"))
		assert.Equal(t, "total", q.Get("sort"))
		assert.Equal(t, "1", q.Get("desc"))
		assert.Empty(t, q.Get("from"))
		writeJSON(w, http.StatusOK, view.AdminOrderList{})
	}), 0)

	minTotal := 500
	_, err := c.AdminOrders(context.Background(), client.AdminOrderQuery{
		Statuses: []string{"paid", "shipped"}, MinTotal: &minTotal, Sort: "total", Desc: true,
	})
	require.NoError(t, err)
}

func TestUploadProductImageIsMultipart(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, fh, err := r.FormFile("image")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "shirt.png", fh.Filename)
		assert.Equal(t, "image/png", fh.Header.Get("Content-Type"))
		assert.Equal(t, "PNGDATA", string(data))
		writeJSON(w, http.StatusCreated, view.ProductImage{ID: "img1", URL: "/uploads/img1.png"})
	}), 0)

	img, err := c.UploadProductImage(context.Background(), "p1", "shirt.png", "image/png", strings.NewReader("PNGDATA"))
	require.NoError(t, err)
	assert.Equal(t, "img1", img.ID)
}

func TestLogoutForgetsTokenEvenOnError(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, view.Error{Error: "session expired"})
	}), 0)
	c.SetToken("stale")
	err := c.Logout(context.Background())
	assert.ErrorIs(t, err, client.ErrUnauthorized)
	assert.Empty(t, c.Token())
}

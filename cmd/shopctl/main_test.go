package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"shirly.shop/app/pkg/view"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// fakeAPI answers the handful of endpoints the commands under test call.
func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	authed := func(r *http.Request) bool { return r.Header.Get("Authorization") == "Bearer tok-1" }
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req view.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "password123" {
			writeJSON(w, http.StatusUnauthorized, view.Error{Error: "invalid email or password"})
			return
		}
		writeJSON(w, http.StatusOK, view.AuthResult{Token: "tok-1", User: view.User{ID: "u1", Email: req.Email, FirstName: "Ada", Role: "admin"}})
	})
	mux.HandleFunc("GET /api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			writeJSON(w, http.StatusUnauthorized, view.Error{Error: "authentication required"})
			return
		}
		writeJSON(w, http.StatusOK, view.User{ID: "u1", Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace", Role: "admin"})
	})
	mux.HandleFunc("GET /api/cart", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, view.CartPage{Items: []view.CartItem{
			{ProductID: "p1", ProductName: "Oxford Shirt", Qty: 2, UnitPriceCents: 4500, LineTotalCents: 9000, Currency: "USD", Available: true},
		}})
	})
	mux.HandleFunc("GET /api/admin/orders", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "paid", r.URL.Query().Get("status"))
		day := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
		writeJSON(w, http.StatusOK, view.AdminOrderList{
			Items: []view.AdminOrder{
				{Order: view.Order{ID: "o1", Status: "paid", TotalCents: 9000, Currency: "USD", CreatedAt: day}, CustomerEmail: "a@example.com"},
				{Order: view.Order{ID: "o2", Status: "paid", TotalCents: 1500, Currency: "USD", CreatedAt: day.Add(time.Hour)}, CustomerEmail: "b@example.com"},
			},
			PageMeta: view.NewPageMeta(1, 100, 2),
		})
	})
	mux.HandleFunc("POST /api/admin/orders/bulk", func(w http.ResponseWriter, r *http.Request) {
		var req view.BulkRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, []string{"o1"}, req.IDs)
		assert.Equal(t, "ship", req.Action)
		writeJSON(w, http.StatusOK, view.BulkResponse{Results: []view.BulkResult{{ID: "o1", OK: true, Status: "shipped"}}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type harness struct {
	t       *testing.T
	api     string
	session string
}

func newHarness(t *testing.T) *harness {
	return &harness{t: t, api: fakeAPI(t).URL, session: filepath.Join(t.TempDir(), "session.json")}
}

func (h *harness) run(stdin string, args ...string) (string, string, error) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	a := &app{in: strings.NewReader(stdin), out: &out, errOut: &errOut}
	root := newRootCmd(a)
	root.SetArgs(append([]string{"--api", h.api, "--session", h.session}, args...))
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func TestLoginPersistsSessionForWhoami(t *testing.T) {
	h := newHarness(t)

	_, stderr, err := h.run("password123\n", "login", "--email", "ada@example.com")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Welcome, Ada.")

	out, _, err := h.run("", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Ada Lovelace")
	assert.Contains(t, out, "admin")

	out, _, err = h.run("", "--json", "whoami")
	require.NoError(t, err)
	assert.Equal(t, "u1", gjson.Get(out, "id").String())
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run("", "login", "-e", "ada@example.com", "-p", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid email or password")
}

func TestCommandsNeedLogin(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run("", "cart", "show")
	require.Error(t, err)

	_, _, err = h.run("", "admin", "orders")
	require.Error(t, err)
}

func TestCartShowPrintsTotals(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run("", "login", "-e", "ada@example.com", "-p", "password123")
	require.NoError(t, err)

	out, _, err := h.run("", "cart", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Oxford Shirt")
	assert.Contains(t, out, "2 items")
	assert.Contains(t, out, "$90.00")
}

func TestAdminOrdersBulkShip(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run("", "login", "-e", "ada@example.com", "-p", "password123")
	require.NoError(t, err)

	out, _, err := h.run("", "--json", "admin", "orders", "--status", "paid", "--select", "o1", "--apply", "ship")
	require.NoError(t, err)
	assert.Equal(t, "shipped", gjson.Get(out, "results.0.status").String())
	// o1 no longer matches the paid filter.
	assert.EqualValues(t, 1, gjson.Get(out, "total").Int())
	assert.Equal(t, "o2", gjson.Get(out, "rows.0.id").String())
}

func TestAdminApplyNeedsSelection(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run("", "login", "-e", "ada@example.com", "-p", "password123")
	require.NoError(t, err)

	_, _, err = h.run("", "admin", "orders", "--status", "paid", "--apply", "ship")
	assert.ErrorContains(t, err, "--apply needs")
}

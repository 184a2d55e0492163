package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shirly.shop/app/internal/modules/auth"
	"shirly.shop/app/internal/shared/apperr"
	"shirly.shop/app/pkg/view"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeAuth map[string]auth.Identity

func (f fakeAuth) Authenticate(_ context.Context, tok string) (auth.Identity, error) {
	if id, ok := f[tok]; ok {
		return id, nil
	}
	return auth.Identity{}, auth.ErrUnauthenticated
}

func newEngine(a Authenticator) *gin.Engine {
	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := gin.New()
	r.Use(RequestID(), ErrorHandler(l), Recovery(l), Authenticate(a))
	return r
}

func do(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeErr(t *testing.T, w *httptest.ResponseRecorder) view.Error {
	t.Helper()
	var e view.Error
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	return e
}

func TestAuthGuards(t *testing.T) {
	a := fakeAuth{
		"cust":  {User: auth.User{ID: "u1", Role: auth.RoleCustomer}},
		"admin": {User: auth.User{ID: "u2", Role: auth.RoleAdmin}},
	}
	r := newEngine(a)
	r.GET("/me", RequireAuth(), func(c *gin.Context) { c.String(200, MustUser(c).User.ID) })
	r.GET("/admin", RequireAdmin(), func(c *gin.Context) { c.Status(204) })

	w := do(r, "GET", "/me", "")
	assert.Equal(t, 401, w.Code)
	e := decodeErr(t, w)
	assert.Equal(t, "authentication required", e.Error)
	assert.Equal(t, w.Header().Get(HeaderRequestID), e.RequestID)

	w = do(r, "GET", "/me", "stale")
	assert.Equal(t, 401, w.Code)
	assert.Contains(t, decodeErr(t, w).Error, "expired")

	w = do(r, "GET", "/me", "cust")
	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "u1", w.Body.String())

	assert.Equal(t, 403, do(r, "GET", "/admin", "cust").Code)
	assert.Equal(t, 204, do(r, "GET", "/admin", "admin").Code)
}

func TestErrorHandlerFieldsAndPanics(t *testing.T) {
	r := newEngine(fakeAuth{})
	r.GET("/bad", func(c *gin.Context) {
		Fail(c, apperr.InvalidErr("validation failed", map[string]string{"email": "required"}))
	})
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })
	r.GET("/internal", func(c *gin.Context) { Fail(c, errors.New("db password leaked")) })

	w := do(r, "GET", "/bad", "")
	assert.Equal(t, 400, w.Code)
	assert.Equal(t, map[string]string{"email": "required"}, decodeErr(t, w).Fields)

	w = do(r, "GET", "/boom", "")
	assert.Equal(t, 500, w.Code)
	assert.NotContains(t, w.Body.String(), "kaboom")

	w = do(r, "GET", "/internal", "")
	assert.Equal(t, 500, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestRequestIDReuseAndReplace(t *testing.T) {
	r := newEngine(fakeAuth{})
	r.GET("/", func(c *gin.Context) { c.Status(204) })

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(HeaderRequestID))

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set(HeaderRequestID, "bad id\n")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.NotEqual(t, "bad id\n", w.Header().Get(HeaderRequestID))
	assert.Len(t, w.Header().Get(HeaderRequestID), 36)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter("auth", 0.001, 2)
	var rejected []string
	rl.OnReject = func(name string) { rejected = append(rejected, name) }

	r := newEngine(fakeAuth{"u": {User: auth.User{ID: "u1"}}})
	r.POST("/login", rl.Handler(), func(c *gin.Context) { c.Status(204) })

	assert.Equal(t, 204, do(r, "POST", "/login", "").Code)
	assert.Equal(t, 204, do(r, "POST", "/login", "").Code)
	w := do(r, "POST", "/login", "")
	assert.Equal(t, 429, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, []string{"auth"}, rejected)

	// an authenticated caller has its own bucket
	assert.Equal(t, 204, do(r, "POST", "/login", "u").Code)
	assert.Equal(t, 2, rl.Cleanup())
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://shirly.shop/"}))
	r.GET("/api/products", func(c *gin.Context) { c.Status(200) })

	req := httptest.NewRequest(http.MethodOptions, "/api/products", nil)
	req.Header.Set("Origin", "https://shirly.shop")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, 204, w.Code)
	assert.Equal(t, "https://shirly.shop", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, 200, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

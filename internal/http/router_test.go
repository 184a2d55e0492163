package apphttp_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"gorm.io/gorm"

	apphttp "shirly.shop/app/internal/http"
	"shirly.shop/app/internal/http/metrics"
	"shirly.shop/app/internal/http/middleware"
	"shirly.shop/app/internal/http/ticket"
	"shirly.shop/app/internal/lifecycle"
	"shirly.shop/app/internal/mailer"
	"shirly.shop/app/internal/modules/addresses"
	"shirly.shop/app/internal/modules/analytics"
	"shirly.shop/app/internal/modules/auth"
	"shirly.shop/app/internal/modules/cart"
	"shirly.shop/app/internal/modules/chat"
	"shirly.shop/app/internal/modules/checkout"
	"shirly.shop/app/internal/modules/email"
	"shirly.shop/app/internal/modules/notifications"
	"shirly.shop/app/internal/modules/orders"
	"shirly.shop/app/internal/modules/payments"
	"shirly.shop/app/internal/modules/products"
	"shirly.shop/app/internal/modules/reviews"
	"shirly.shop/app/internal/modules/shipping"
	"shirly.shop/app/internal/modules/wishlist"
	"shirly.shop/app/internal/realtime"
	"shirly.shop/app/internal/storage"
	"shirly.shop/app/internal/testutil"
)

const (
	jwtSecret  = "router-test-secret-0123456789"
	mockSecret = "mock-webhook-secret"
)

type server struct {
	t      *testing.T
	db     *gorm.DB
	engine *gin.Engine
	mail   *mailer.Mock
}

func newServer(t *testing.T, mutate ...func(*apphttp.Deps)) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb := testutil.DB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	broker := realtime.NewLocalBroker()
	t.Cleanup(func() { _ = broker.Close() })

	mail := &mailer.Mock{}
	authSvc := auth.NewService(gdb, jwtSecret, time.Hour)
	notifySvc := notifications.NewService(gdb, broker, logger)
	emailSvc := email.NewService(mail, "shop@example.com", "Shirly", "http://store.test", logger)
	sink := lifecycle.New(authSvc, orders.NewRepo(gdb), notifySvc, emailSvc, logger)

	productsRepo := products.NewRepo(gdb)
	cartSvc := cart.NewService(gdb, productsRepo)
	addrSvc := addresses.NewService(gdb)
	ordersSvc := orders.NewService(gdb, sink, logger)
	provider := payments.NewMockProvider(mockSecret, "http://api.test")
	paySvc := payments.NewService(gdb, provider, sink, logger)

	d := apphttp.Deps{
		Logger:        logger,
		Metrics:       metrics.New(),
		DB:            gdb,
		Auth:          authSvc,
		Email:         emailSvc,
		Products:      products.NewService(productsRepo, storage.NewLocal(t.TempDir(), "/uploads"), logger),
		Cart:          cartSvc,
		Wishlist:      wishlist.NewService(gdb, productsRepo, cartSvc),
		Addresses:     addrSvc,
		Reviews:       reviews.NewService(gdb, productsRepo, orders.NewRepo(gdb)),
		Checkout:      checkout.NewService(ordersSvc, paySvc, addrSvc, "http://store.test", logger),
		Orders:        ordersSvc,
		AdminOrders:   orders.NewAdminService(gdb, sink, logger),
		Shipments:     shipping.NewRepo(gdb),
		Payments:      paySvc,
		Refunds:       payments.NewRefundService(gdb, provider, sink, logger),
		Webhooks:      payments.NewWebhookService(gdb, sink, logger),
		Chat:          chat.NewService(gdb, broker, notifySvc, logger),
		Broker:        broker,
		Tickets:       ticket.New([]byte(jwtSecret), time.Minute),
		Notifications: notifySvc,
		Analytics:     analytics.NewService(gdb, "USD"),
	}
	for _, m := range mutate {
		m(&d)
	}
	return &server{t: t, db: gdb, engine: apphttp.NewRouter(d), mail: mail}
}

func (s *server) do(method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *server) login(email, role string) string {
	s.t.Helper()
	testutil.CreateUser(s.t, s.db, email, role)
	w := s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": "password123"})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	return gjson.Get(w.Body.String(), "token").String()
}

func TestSignupThenMe(t *testing.T) {
	s := newServer(t)

	w := s.do(http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email": "new@example.com", "password": "long-enough-pw", "first_name": "Nia",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	token := gjson.Get(w.Body.String(), "token").String()
	require.NotEmpty(t, token)

	w = s.do(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "new@example.com", gjson.Get(w.Body.String(), "email").String())
	assert.Equal(t, "customer", gjson.Get(w.Body.String(), "role").String())

	require.Len(t, s.mail.Sent(), 1)
	assert.Contains(t, s.mail.Sent()[0].Subject, "Welcome")
}

func TestSignupValidationFields(t *testing.T) {
	s := newServer(t)
	w := s.do(http.MethodPost, "/api/auth/signup", "", map[string]string{"email": "nope", "password": "short"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := w.Body.String()
	assert.True(t, gjson.Get(body, "fields.email").Exists())
	assert.True(t, gjson.Get(body, "fields.password").Exists())
	assert.NotEmpty(t, gjson.Get(body, "request_id").String())
}

func TestUnauthenticatedRequests(t *testing.T) {
	s := newServer(t)

	w := s.do(http.MethodGet, "/api/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = s.do(http.MethodGet, "/api/cart", "garbage.token.value", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, gjson.Get(w.Body.String(), "error").String(), "session expired")
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	s := newServer(t)
	customer := s.login("c@example.com", "")
	admin := s.login("a@example.com", auth.RoleAdmin)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/admin/orders", customer, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/admin/orders", "", nil).Code)

	w := s.do(http.MethodGet, "/api/admin/orders", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int64(0), gjson.Get(w.Body.String(), "total").Int())

	w = s.do(http.MethodGet, "/api/admin/orders?from=yesterday", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.True(t, gjson.Get(w.Body.String(), "fields.from").Exists())

	w = s.do(http.MethodGet, "/api/admin/analytics?from=2026-01-02&to=2026-01-01", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// checkoutPaid drives cart -> checkout -> mock hosted page -> webhook and
// returns the paid order id.
func checkoutPaid(t *testing.T, s *server, token string) string {
	t.Helper()
	p := testutil.CreateProduct(t, s.db, "Linen Shirt", 4500, testutil.WithStock(3))

	w := s.do(http.MethodPost, "/api/cart", token, map[string]any{"product_id": p.ID, "qty": 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int64(2), gjson.Get(w.Body.String(), "count").Int())

	w = s.do(http.MethodPost, "/api/addresses", token, map[string]any{
		"full_name": "Ada Buyer", "line1": "1 Main St", "city": "Springfield",
		"postal_code": "12345", "country": "US", "is_default": true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/checkout", token, map[string]any{}, "Idempotency-Key", "checkout-1")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	orderID := gjson.Get(w.Body.String(), "order_id").String()
	sessionURL := gjson.Get(w.Body.String(), "session_url").String()
	require.NotEmpty(t, orderID)
	require.True(t, strings.HasPrefix(sessionURL, "http://api.test/mock-checkout/"), sessionURL)

	// same key replays the same order
	w = s.do(http.MethodPost, "/api/checkout", token, map[string]any{}, "Idempotency-Key", "checkout-1")
	require.Less(t, w.Code, 300, w.Body.String())
	assert.Equal(t, orderID, gjson.Get(w.Body.String(), "order_id").String())

	path := strings.TrimPrefix(sessionURL, "http://api.test")
	w = s.do(http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, orderID, gjson.Get(w.Body.String(), "order_id").String())
	assert.GreaterOrEqual(t, gjson.Get(w.Body.String(), "amount_cents").Int(), int64(9000))

	w = s.do(http.MethodGet, path+"?outcome=success&redirect=0", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return orderID
}

func TestCheckoutPaysThroughMockProvider(t *testing.T) {
	s := newServer(t)
	token := s.login("buyer@example.com", "")
	orderID := checkoutPaid(t, s, token)

	w := s.do(http.MethodGet, "/api/orders/"+orderID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, orders.StatusPaid, gjson.Get(w.Body.String(), "status").String())

	w = s.do(http.MethodGet, "/api/cart", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(0), gjson.Get(w.Body.String(), "count").Int())

	w = s.do(http.MethodGet, "/api/notifications/unread-count", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), gjson.Get(w.Body.String(), "count").Int())

	subjects := []string{}
	for _, m := range s.mail.Sent() {
		subjects = append(subjects, m.Subject)
	}
	assert.Contains(t, strings.Join(subjects, "|"), "confirmed")

	// paid orders cannot be cancelled by the customer
	w = s.do(http.MethodPost, "/api/orders/"+orderID+"/cancel", token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAdminShipsAndRefunds(t *testing.T) {
	s := newServer(t)
	token := s.login("buyer@example.com", "")
	admin := s.login("admin@example.com", auth.RoleAdmin)
	orderID := checkoutPaid(t, s, token)

	w := s.do(http.MethodGet, "/api/admin/orders?status=paid,shipped", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, orderID, gjson.Get(w.Body.String(), "items.0.id").String())
	assert.Equal(t, "Test User", gjson.Get(w.Body.String(), "items.0.customer_name").String())

	w = s.do(http.MethodPost, "/api/admin/orders/"+orderID+"/deliver", admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/api/admin/orders/"+orderID+"/teleport", admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/api/admin/orders/"+orderID+"/ship", admin, map[string]string{
		"carrier": "UPS", "tracking_number": "1Z999",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, orders.StatusShipped, gjson.Get(w.Body.String(), "status").String())

	w = s.do(http.MethodPost, "/api/admin/orders/bulk", admin, map[string]any{
		"ids": []string{orderID, "missing-order"}, "action": "deliver",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := gjson.Get(w.Body.String(), "results").Array()
	require.Len(t, res, 2)
	assert.True(t, res[0].Get("ok").Bool())
	assert.False(t, res[1].Get("ok").Bool())
	assert.Equal(t, "order not found", res[1].Get("error").String())

	w = s.do(http.MethodPost, "/api/admin/orders/"+orderID+"/refund", admin, map[string]any{"amount_cents": 1000})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/admin/orders/"+orderID+"/refund", admin,
		map[string]any{"amount_cents": 1000, "reason": "damaged"}, "Idempotency-Key", "refund-1")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, int64(1000), gjson.Get(w.Body.String(), "amount_cents").Int())

	w = s.do(http.MethodGet, "/api/admin/orders/"+orderID, admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Equal(t, "UPS", gjson.Get(body, "order.shipments.0.carrier").String())
	assert.GreaterOrEqual(t, len(gjson.Get(body, "events").Array()), 3)
	assert.Len(t, gjson.Get(body, "payments").Array(), 1)
	assert.Len(t, gjson.Get(body, "refunds").Array(), 1)
}

func TestChatSendIsRateLimited(t *testing.T) {
	s := newServer(t, func(d *apphttp.Deps) {
		d.ChatLimiter = middleware.NewRateLimiter("chat", 0.001, 1)
	})
	token := s.login("buyer@example.com", "")
	orderID := checkoutPaid(t, s, token)

	w := s.do(http.MethodPost, "/api/orders/"+orderID+"/messages", token, map[string]string{
		"body": "where is my parcel?", "client_msg_id": "m-1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/orders/"+orderID+"/messages", token, map[string]string{
		"body": "hello?", "client_msg_id": "m-2",
	})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	w = s.do(http.MethodGet, "/api/orders/"+orderID+"/messages", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, gjson.Get(w.Body.String(), "items").Array(), 1)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t)

	w := s.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", gjson.Get(w.Body.String(), "checks.db").String())

	s.do(http.MethodGet, "/api/products", "", nil)
	w = s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `shirly_http_requests_total{method="GET",route="/api/products",status="200"}`)

	w = s.do(http.MethodGet, "/api/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "route not found", gjson.Get(w.Body.String(), "error").String())
}

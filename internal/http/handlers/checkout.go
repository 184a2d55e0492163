package handlers

import (
	"github.com/gin-gonic/gin"

	"shirly.shop/app/internal/http/middleware"
	"shirly.shop/app/internal/modules/checkout"
	"shirly.shop/app/internal/modules/orders"
	"shirly.shop/app/pkg/view"
)

type CheckoutHandler struct {
	Checkout *checkout.Service
}

func NewCheckoutHandler(svc *checkout.Service) *CheckoutHandler {
	return &CheckoutHandler{Checkout: svc}
}

// POST /api/checkout -> {order_id, session_url}; the client redirects to session_url.
func (h *CheckoutHandler) Create(c *gin.Context) {
	var req view.CheckoutRequest
	if !bindJSON(c, &req) {
		return
	}
	key := idempotencyKey(c, req.IdempotencyKey)
	if key == "" {
		fail(c, orders.ErrMissingIdemKey)
		return
	}
	u := middleware.MustUser(c).User
	res, err := h.Checkout.Checkout(c.Request.Context(), checkout.Input{
		UserID:         u.ID,
		Email:          u.Email,
		AddressID:      req.AddressID,
		ShippingMethod: req.ShippingMethod,
		IdempotencyKey: key,
	})
	if err != nil {
		fail(c, err)
		return
	}
	created(c, res)
}

// POST /api/orders/:id/pay resumes payment of an unpaid order.
func (h *CheckoutHandler) Pay(c *gin.Context) {
	var req view.PayRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	key := idempotencyKey(c, req.IdempotencyKey)
	if key == "" {
		fail(c, orders.ErrMissingIdemKey)
		return
	}
	res, err := h.Checkout.Pay(c.Request.Context(), c.Param("id"), middleware.MustUser(c).User.ID, key)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, res)
}

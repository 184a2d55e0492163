package handlers

import (
	"github.com/gin-gonic/gin"

	"shirly.shop/app/internal/http/middleware"
	"shirly.shop/app/internal/modules/orders"
	"shirly.shop/app/internal/modules/shipping"
)

type OrdersHandler struct {
	Orders    *orders.Service
	Shipments *shipping.Repo
}

func NewOrdersHandler(o *orders.Service, sh *shipping.Repo) *OrdersHandler {
	return &OrdersHandler{Orders: o, Shipments: sh}
}

// GET /api/orders?status=&page=
func (h *OrdersHandler) List(c *gin.Context) {
	page, size := pageParams(c, 20)
	res, err := h.Orders.ListByUser(c.Request.Context(), orders.ListByUserParams{
		UserID:   middleware.MustUser(c).User.ID,
		Page:     page,
		PageSize: size,
		Status:   c.Query("status"),
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, orders.ListToView(res))
}

// GET /api/orders/:id
func (h *OrdersHandler) Show(c *gin.Context) {
	ctx := c.Request.Context()
	u := middleware.MustUser(c).User
	o, items, err := h.Orders.GetForUser(ctx, c.Param("id"), u.ID, u.IsAdmin())
	if err != nil {
		fail(c, err)
		return
	}
	shipments, err := h.Shipments.ListByOrder(ctx, o.ID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, orders.ToView(o, items, shipments))
}

// POST /api/orders/:id/cancel (unpaid orders only)
func (h *OrdersHandler) Cancel(c *gin.Context) {
	ctx := c.Request.Context()
	u := middleware.MustUser(c).User
	o, err := h.Orders.CancelByCustomer(ctx, c.Param("id"), u.ID)
	if err != nil {
		fail(c, err)
		return
	}
	items, err := h.Orders.Repo().Items(ctx, o.ID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, orders.ToView(o, items, nil))
}

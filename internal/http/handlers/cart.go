package handlers

import (
	"github.com/gin-gonic/gin"

	"shirly.shop/app/internal/http/middleware"
	"shirly.shop/app/internal/modules/cart"
	"shirly.shop/app/internal/modules/wishlist"
	"shirly.shop/app/pkg/view"
)

// CartHandler serves the cart and the wishlist; every mutation answers with
// the full, recomputed state so clients never keep stale totals.
type CartHandler struct {
	Cart     *cart.Service
	Wishlist *wishlist.Service
}

func NewCartHandler(c *cart.Service, w *wishlist.Service) *CartHandler {
	return &CartHandler{Cart: c, Wishlist: w}
}

func (h *CartHandler) Get(c *gin.Context) {
	page, err := h.Cart.Get(c.Request.Context(), middleware.MustUser(c).User.ID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, page)
}

// POST /api/cart {product_id, qty}
func (h *CartHandler) Add(c *gin.Context) {
	var req view.CartAddRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Qty == 0 {
		req.Qty = 1
	}
	page, err := h.Cart.Add(c.Request.Context(), middleware.MustUser(c).User.ID, req.ProductID, req.Qty)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, page)
}

// PATCH /api/cart/items/:productId {qty}; qty 0 removes the line.
func (h *CartHandler) SetQty(c *gin.Context) {
	var req view.CartQtyRequest
	if !bindJSON(c, &req) {
		return
	}
	page, err := h.Cart.SetQty(c.Request.Context(), middleware.MustUser(c).User.ID, c.Param("productId"), req.Qty)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, page)
}

func (h *CartHandler) Remove(c *gin.Context) {
	page, err := h.Cart.Remove(c.Request.Context(), middleware.MustUser(c).User.ID, c.Param("productId"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, page)
}

func (h *CartHandler) Clear(c *gin.Context) {
	page, err := h.Cart.Clear(c.Request.Context(), middleware.MustUser(c).User.ID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, page)
}

func (h *CartHandler) WishlistList(c *gin.Context) {
	items, err := h.Wishlist.List(c.Request.Context(), middleware.MustUser(c).User.ID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, items)
}

// POST /api/wishlist {product_id}
func (h *CartHandler) WishlistAdd(c *gin.Context) {
	var req view.WishlistAddRequest
	if !bindJSON(c, &req) {
		return
	}
	items, err := h.Wishlist.Add(c.Request.Context(), middleware.MustUser(c).User.ID, req.ProductID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, items)
}

func (h *CartHandler) WishlistRemove(c *gin.Context) {
	items, err := h.Wishlist.Remove(c.Request.Context(), middleware.MustUser(c).User.ID, c.Param("productId"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, items)
}

// POST /api/wishlist/:productId/move-to-cart
func (h *CartHandler) WishlistMoveToCart(c *gin.Context) {
	res, err := h.Wishlist.MoveToCart(c.Request.Context(), middleware.MustUser(c).User.ID, c.Param("productId"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, view.MoveToCartResult{Wishlist: res.Wishlist, Cart: res.Cart})
}

package handlers

import (
	"github.com/gin-gonic/gin"

	"shirly.shop/app/internal/http/middleware"
	"shirly.shop/app/internal/modules/reviews"
	"shirly.shop/app/pkg/view"
)

type ReviewsHandler struct {
	Reviews *reviews.Service
}

func NewReviewsHandler(r *reviews.Service) *ReviewsHandler {
	return &ReviewsHandler{Reviews: r}
}

// GET /api/products/:slug/reviews
func (h *ReviewsHandler) List(c *gin.Context) {
	page, size := pageParams(c, 10)
	list, err := h.Reviews.ListForProduct(c.Request.Context(), c.Param("slug"), page, size)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, list)
}

// POST /api/products/:slug/reviews
func (h *ReviewsHandler) Create(c *gin.Context) {
	var req view.ReviewRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	r, err := h.Reviews.Create(ctx, middleware.MustUser(c).User.ID, c.Param("slug"), reviews.Input(req))
	if err != nil {
		fail(c, err)
		return
	}
	h.respond(c, r, true)
}

// PATCH /api/reviews/:id
func (h *ReviewsHandler) Update(c *gin.Context) {
	var req view.ReviewRequest
	if !bindJSON(c, &req) {
		return
	}
	r, err := h.Reviews.Update(c.Request.Context(), middleware.MustUser(c).User.ID, c.Param("id"), reviews.Input(req))
	if err != nil {
		fail(c, err)
		return
	}
	h.respond(c, r, false)
}

// DELETE /api/reviews/:id (author, or any admin)
func (h *ReviewsHandler) Delete(c *gin.Context) {
	id := middleware.MustUser(c)
	if err := h.Reviews.Delete(c.Request.Context(), id.User.ID, id.User.IsAdmin(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	noContent(c)
}

func (h *ReviewsHandler) respond(c *gin.Context, r reviews.Review, isNew bool) {
	author, err := h.Reviews.Author(c.Request.Context(), r)
	if err != nil {
		fail(c, err)
		return
	}
	if isNew {
		created(c, reviews.ToView(r, author))
		return
	}
	ok(c, reviews.ToView(r, author))
}

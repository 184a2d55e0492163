package handlers

import (
	"github.com/gin-gonic/gin"

	"shirly.shop/app/internal/http/middleware"
	"shirly.shop/app/internal/modules/addresses"
	"shirly.shop/app/pkg/view"
)

type AddressesHandler struct {
	Addresses *addresses.Service
}

func NewAddressesHandler(a *addresses.Service) *AddressesHandler {
	return &AddressesHandler{Addresses: a}
}

func (h *AddressesHandler) List(c *gin.Context) {
	as, err := h.Addresses.List(c.Request.Context(), middleware.MustUser(c).User.ID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, addresses.ToViews(as))
}

func (h *AddressesHandler) Create(c *gin.Context) {
	var req view.AddressRequest
	if !bindJSON(c, &req) {
		return
	}
	a, err := h.Addresses.Create(c.Request.Context(), middleware.MustUser(c).User.ID, addresses.InputFromRequest(req))
	if err != nil {
		fail(c, err)
		return
	}
	created(c, a.View())
}

func (h *AddressesHandler) Update(c *gin.Context) {
	var req view.AddressRequest
	if !bindJSON(c, &req) {
		return
	}
	a, err := h.Addresses.Update(c.Request.Context(), middleware.MustUser(c).User.ID, c.Param("id"), addresses.InputFromRequest(req))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, a.View())
}

func (h *AddressesHandler) Delete(c *gin.Context) {
	if err := h.Addresses.Delete(c.Request.Context(), middleware.MustUser(c).User.ID, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	noContent(c)
}

func (h *AddressesHandler) SetDefault(c *gin.Context) {
	a, err := h.Addresses.SetDefault(c.Request.Context(), middleware.MustUser(c).User.ID, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, a.View())
}

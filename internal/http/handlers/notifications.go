package handlers

import (
	"github.com/gin-gonic/gin"

	"shirly.shop/app/internal/http/middleware"
	"shirly.shop/app/internal/modules/notifications"
	"shirly.shop/app/pkg/view"
)

type NotificationsHandler struct {
	Notifications *notifications.Service
}

func NewNotificationsHandler(n *notifications.Service) *NotificationsHandler {
	return &NotificationsHandler{Notifications: n}
}

// GET /api/notifications?unread=1&page=
func (h *NotificationsHandler) List(c *gin.Context) {
	page, size := pageParams(c, 20)
	list, err := h.Notifications.List(c.Request.Context(), notifications.ListParams{
		UserID:     middleware.MustUser(c).User.ID,
		UnreadOnly: c.Query("unread") == "1" || c.Query("unread") == "true",
		Page:       page,
		PageSize:   size,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, list)
}

func (h *NotificationsHandler) UnreadCount(c *gin.Context) {
	n, err := h.Notifications.UnreadCount(c.Request.Context(), middleware.MustUser(c).User.ID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, view.UnreadCount{Count: n})
}

func (h *NotificationsHandler) MarkRead(c *gin.Context) {
	if err := h.Notifications.MarkRead(c.Request.Context(), middleware.MustUser(c).User.ID, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	noContent(c)
}

func (h *NotificationsHandler) MarkAllRead(c *gin.Context) {
	n, err := h.Notifications.MarkAllRead(c.Request.Context(), middleware.MustUser(c).User.ID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"marked": n})
}

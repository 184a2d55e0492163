package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"shirly.shop/app/internal/modules/analytics"
)

type AnalyticsHandler struct {
	Analytics *analytics.Service
	Now       func() time.Time
}

// GET /api/admin/analytics?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *AnalyticsHandler) Dashboard(c *gin.Context) {
	now := time.Now().UTC()
	if h.Now != nil {
		now = h.Now()
	}
	from, to, err := analytics.ParseRange(c.Query("from"), c.Query("to"), now)
	if err != nil {
		fail(c, err)
		return
	}
	d, err := h.Analytics.Dashboard(c.Request.Context(), from, to)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, d)
}

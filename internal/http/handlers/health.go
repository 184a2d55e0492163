package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"shirly.shop/app/pkg/view"
)

// Check reports whether one dependency is reachable.
type Check func(ctx context.Context) error

type HealthHandler struct {
	Checks  map[string]Check
	Timeout time.Duration
}

// DBCheck pings the pool behind gdb.
func DBCheck(gdb *gorm.DB) Check {
	return func(ctx context.Context) error {
		sqlDB, err := gdb.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}

// GET /healthz
func (h *HealthHandler) Health(c *gin.Context) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	names := make([]string, 0, len(h.Checks))
	for n := range h.Checks {
		names = append(names, n)
	}
	sort.Strings(names)

	out := view.Health{Status: "ok", Checks: make(map[string]string, len(names))}
	for _, n := range names {
		if err := h.Checks[n](ctx); err != nil {
			out.Status = "degraded"
			out.Checks[n] = err.Error()
			continue
		}
		out.Checks[n] = "ok"
	}

	status := http.StatusOK
	if out.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, out)
}

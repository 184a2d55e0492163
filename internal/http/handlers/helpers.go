package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"shirly.shop/app/internal/http/middleware"
	"shirly.shop/app/internal/http/validation"
	"shirly.shop/app/internal/shared/apperr"
)

// HeaderIdempotencyKey may carry the key instead of the request body.
const HeaderIdempotencyKey = "Idempotency-Key"

// bindJSON decodes and validates the body into dst; on failure it records a
// 400 with per-field messages and returns false.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		if errors.Is(err, io.EOF) {
			middleware.Fail(c, apperr.InvalidErr("request body required", nil))
			return false
		}
		middleware.Fail(c, apperr.InvalidErr("validation failed", validation.FromBindError(err, dst)))
		return false
	}
	return true
}

// bindOptionalJSON is bindJSON for endpoints whose body may be empty.
func bindOptionalJSON(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return bindJSON(c, dst)
}

func parseInt(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}

func pageParams(c *gin.Context, defSize int) (page, size int) {
	page = parseInt(c.Query("page"), 1)
	if page < 1 {
		page = 1
	}
	size = parseInt(c.Query("page_size"), defSize)
	if size < 1 || size > 100 {
		size = defSize
	}
	return page, size
}

func idempotencyKey(c *gin.Context, fromBody string) string {
	if k := strings.TrimSpace(fromBody); k != "" {
		return k
	}
	return strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
}

func ok(c *gin.Context, v any) { c.JSON(http.StatusOK, v) }

func created(c *gin.Context, v any) { c.JSON(http.StatusCreated, v) }

func noContent(c *gin.Context) { c.Status(http.StatusNoContent) }

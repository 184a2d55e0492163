package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"shirly.shop/app/internal/modules/payments"
)

const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	Logger     *slog.Logger
	Provider   payments.Provider
	WebhookSvc *payments.WebhookService

	// OnResult observes each delivery: processed, duplicate, rejected or failed.
	OnResult func(provider, result string)
}

func NewWebhookHandler(logger *slog.Logger, p payments.Provider, svc *payments.WebhookService) *WebhookHandler {
	return &WebhookHandler{Logger: logger, Provider: p, WebhookSvc: svc}
}

// POST /webhooks/:provider
// 4xx tells the provider not to retry; 5xx asks it to.
func (h *WebhookHandler) Handle(c *gin.Context) {
	if c.Param("provider") != h.Provider.Name() {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "unknown provider"})
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		h.observe("rejected")
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	status, deduped := h.apply(c.Request.Context(), c.Request.Header, body)
	c.JSON(status, gin.H{"ok": status == http.StatusOK, "duplicate": deduped})
}

func (h *WebhookHandler) apply(ctx context.Context, headers http.Header, body []byte) (int, bool) {
	ev, err := h.Provider.VerifyAndParseWebhook(headers, body)
	if err != nil {
		h.observe("rejected")
		level := slog.LevelWarn
		if !errors.Is(err, payments.ErrInvalidSignature) && !errors.Is(err, payments.ErrInvalidPayload) {
			level = slog.LevelError
		}
		h.Logger.Log(ctx, level, "webhook rejected", "provider", h.Provider.Name(), "err", err)
		return http.StatusBadRequest, false
	}

	deduped, err := h.WebhookSvc.Handle(ctx, h.Provider.Name(), ev, body)
	if err != nil {
		h.observe("failed")
		h.Logger.ErrorContext(ctx, "webhook apply failed", "event_id", ev.EventID, "type", ev.Type, "err", err)
		return http.StatusInternalServerError, false
	}
	if deduped {
		h.observe("duplicate")
	} else {
		h.observe("processed")
	}
	return http.StatusOK, deduped
}

func (h *WebhookHandler) observe(result string) {
	if h.OnResult != nil {
		h.OnResult(h.Provider.Name(), result)
	}
}

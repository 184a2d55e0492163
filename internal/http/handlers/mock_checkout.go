package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"shirly.shop/app/internal/modules/payments"
	"shirly.shop/app/internal/shared/apperr"
)

// MockCheckoutHandler stands in for the provider's hosted payment page in
// development. Completing a session delivers the same signed webhook a real
// provider would and then sends the browser to the return URL.
type MockCheckoutHandler struct {
	Mock     *payments.MockProvider
	Webhooks *WebhookHandler
}

func NewMockCheckoutHandler(m *payments.MockProvider, wh *WebhookHandler) *MockCheckoutHandler {
	return &MockCheckoutHandler{Mock: m, Webhooks: wh}
}

// GET /mock-checkout/:ref                 -> session summary with action links
// GET /mock-checkout/:ref?outcome=success -> webhook + 303 to the return URL
// (success|fail|expire; add redirect=0 to get JSON instead).
func (h *MockCheckoutHandler) Show(c *gin.Context) {
	ref := c.Param("ref")
	outcome := c.Query("outcome")

	if outcome == "" {
		s, found := h.Mock.Session(ref)
		if !found {
			fail(c, apperr.NotFoundErr("checkout session not found or already completed"))
			return
		}
		base := c.Request.URL.Path + "?outcome="
		ok(c, gin.H{
			"session_ref":  s.Ref,
			"order_id":     s.OrderID,
			"amount_cents": s.AmountCents,
			"currency":     s.Currency,
			"expires_at":   s.ExpiresAt,
			"actions": gin.H{
				"pay":    base + "success",
				"fail":   base + "fail",
				"cancel": base + "expire",
			},
		})
		return
	}

	s, body, headers, err := h.Mock.Complete(ref, outcome)
	if err != nil {
		if errors.Is(err, payments.ErrUnknownSession) {
			fail(c, apperr.NotFoundErr("checkout session not found or already completed"))
			return
		}
		fail(c, apperr.InvalidErr(err.Error(), nil))
		return
	}

	status, _ := h.Webhooks.apply(c.Request.Context(), headers, body)
	if status != http.StatusOK {
		fail(c, apperr.UnavailableErr("payment could not be recorded, try again"))
		return
	}

	target := s.SuccessURL
	if outcome != "success" {
		target = s.CancelURL
	}
	if c.Query("redirect") == "0" {
		ok(c, gin.H{"order_id": s.OrderID, "outcome": outcome, "return_url": target})
		return
	}
	if _, err := url.Parse(target); err != nil || target == "" {
		ok(c, gin.H{"order_id": s.OrderID, "outcome": outcome})
		return
	}
	c.Redirect(http.StatusSeeOther, target)
}

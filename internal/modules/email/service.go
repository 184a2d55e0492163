// Package email renders customer-facing transactional mail.
package email

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"shirly.shop/app/internal/mailer"
	"shirly.shop/app/internal/modules/orders"
)

// Service sends best-effort: delivery errors are logged and never returned to
// the flow that triggered the mail.
type Service struct {
	mailer        mailer.Service
	from          string
	fromName      string
	storefrontURL string
	logger        *slog.Logger
}

func NewService(m mailer.Service, from, fromName, storefrontURL string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		mailer:        m,
		from:          from,
		fromName:      fromName,
		storefrontURL: strings.TrimRight(storefrontURL, "/"),
		logger:        logger,
	}
}

type Recipient struct {
	Email string
	Name  string
}

func (r Recipient) displayName() string {
	if n := strings.TrimSpace(r.Name); n != "" {
		return n
	}
	return "there"
}

func shortID(id string) string {
	if len(id) > 8 {
		return "#" + strings.ToUpper(id[:8])
	}
	return "#" + strings.ToUpper(id)
}

func (s *Service) orderLink(id string) string {
	return s.storefrontURL + "/orders/" + id
}

func (s *Service) OrderConfirmation(ctx context.Context, to Recipient, o orders.Order, items []orders.OrderItem) {
	data := map[string]any{
		"Name":    to.displayName(),
		"ShortID": shortID(o.ID),
		"Order":   o,
		"Items":   items,
		"Link":    s.orderLink(o.ID),
	}
	s.send(ctx, to, orderConfirmationTmpl, data, map[string]string{"X-Order-ID": o.ID})
}

var statusCopy = map[string][2]string{
	orders.StatusShipped:           {"shipped", "Your order is on its way."},
	orders.StatusDelivered:         {"delivered", "Your order has been delivered. Enjoy!"},
	orders.StatusCancelled:         {"cancelled", "Your order has been cancelled. Any reserved items were released."},
	orders.StatusRefunded:          {"refunded", "Your order has been refunded in full."},
	orders.StatusPartiallyRefunded: {"partially refunded", "Part of your order has been refunded."},
}

// StatusChanged mails the customer about a transition. Transitions without
// customer-facing copy (paid is covered by OrderConfirmation) are skipped.
func (s *Service) StatusChanged(ctx context.Context, to Recipient, ch orders.StatusChange) bool {
	c, ok := statusCopy[ch.To]
	if !ok {
		return false
	}
	data := map[string]any{
		"Name":     to.displayName(),
		"ShortID":  shortID(ch.Order.ID),
		"Order":    ch.Order,
		"To":       strings.ReplaceAll(ch.To, "_", " "),
		"Headline": c[0],
		"Message":  c[1],
		"Refunded": ch.Order.RefundedCents > 0,
		"Link":     s.orderLink(ch.Order.ID),
	}
	s.send(ctx, to, statusChangedTmpl, data, map[string]string{"X-Order-ID": ch.Order.ID})
	return true
}

func (s *Service) Welcome(ctx context.Context, to Recipient) {
	s.send(ctx, to, welcomeTmpl, map[string]any{
		"Name": to.displayName(),
		"Link": s.storefrontURL + "/",
	}, nil)
}

func (s *Service) send(ctx context.Context, to Recipient, t template, data any, headers map[string]string) {
	msg, err := render(t, data)
	if err != nil {
		s.logger.ErrorContext(ctx, "email render failed", "template", t.subject.Name(), "err", err)
		return
	}
	msg.From = s.from
	msg.FromName = s.fromName
	msg.To = []string{to.Email}
	msg.Headers = headers
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "email send failed", "to", to.Email, "subject", msg.Subject, "err", err)
	}
}

func render(t template, data any) (mailer.Email, error) {
	var subj, text, html bytes.Buffer
	if err := t.subject.Execute(&subj, data); err != nil {
		return mailer.Email{}, fmt.Errorf("subject: %w", err)
	}
	if err := t.text.Execute(&text, data); err != nil {
		return mailer.Email{}, fmt.Errorf("text: %w", err)
	}
	if err := t.html.Execute(&html, data); err != nil {
		return mailer.Email{}, fmt.Errorf("html: %w", err)
	}
	return mailer.Email{
		Subject:  strings.TrimSpace(subj.String()),
		TextBody: text.String(),
		HTMLBody: html.String(),
	}, nil
}

// Package lifecycle fans committed order status changes out to the customer:
// an in-app notification (which also reaches the realtime topic) and an email.
package lifecycle

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"shirly.shop/app/internal/modules/auth"
	"shirly.shop/app/internal/modules/email"
	"shirly.shop/app/internal/modules/notifications"
	"shirly.shop/app/internal/modules/orders"
)

const deliverTimeout = 30 * time.Second

type Sink struct {
	users  *auth.Service
	orders *orders.Repo
	notify *notifications.Service
	mail   *email.Service
	logger *slog.Logger

	// Async hands delivery to a goroutine; Wait drains them.
	Async bool
	wg    sync.WaitGroup
}

var _ orders.EventSink = (*Sink)(nil)

func New(users *auth.Service, repo *orders.Repo, notify *notifications.Service, mail *email.Service, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{users: users, orders: repo, notify: notify, mail: mail, logger: logger}
}

func (s *Sink) OrderStatusChanged(ctx context.Context, ch orders.StatusChange) {
	if !s.Async {
		s.deliver(ctx, ch)
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, deliverTimeout)
		defer cancel()
		s.deliver(ctx, ch)
	}()
}

// Wait blocks until in-flight async deliveries finish.
func (s *Sink) Wait() { s.wg.Wait() }

func (s *Sink) deliver(ctx context.Context, ch orders.StatusChange) {
	o := ch.Order
	log := s.logger.With("order_id", o.ID, "from", ch.From, "to", ch.To, "action", ch.Action)

	kind, title, body := describe(ch)
	if s.notify != nil {
		if _, err := s.notify.Notify(ctx, notifications.Input{
			UserID: o.UserID,
			Kind:   kind,
			Title:  title,
			Body:   body,
			Link:   "/orders/" + o.ID,
		}); err != nil {
			log.WarnContext(ctx, "order notification failed", "err", err)
		}
	}

	if s.mail == nil {
		return
	}
	to := email.Recipient{Email: o.CustomerEmail}
	if s.users != nil {
		if u, err := s.users.Get(ctx, o.UserID); err == nil {
			if to.Email == "" {
				to.Email = u.Email
			}
			to.Name = u.FirstName
		}
	}
	if to.Email == "" {
		log.InfoContext(ctx, "order email skipped: no address")
		return
	}

	if ch.To == orders.StatusPaid {
		items, err := s.orders.Items(ctx, o.ID)
		if err != nil {
			log.WarnContext(ctx, "load order items for confirmation", "err", err)
			return
		}
		s.mail.OrderConfirmation(ctx, to, o, items)
		return
	}
	s.mail.StatusChanged(ctx, to, ch)
}

func describe(ch orders.StatusChange) (kind, title, body string) {
	ref := "Order #" + strings.ToUpper(shortID(ch.Order.ID))
	switch ch.To {
	case orders.StatusPaid:
		return notifications.KindPayment, "Payment received", ref + " is paid and being prepared."
	case orders.StatusShipped:
		return notifications.KindOrderStatus, "Order shipped", ref + " is on its way."
	case orders.StatusDelivered:
		return notifications.KindOrderStatus, "Order delivered", ref + " was delivered."
	case orders.StatusCancelled:
		if ch.Action == orders.ActionExpire {
			return notifications.KindOrderStatus, "Checkout expired", ref + " was cancelled because payment was not completed."
		}
		return notifications.KindOrderStatus, "Order cancelled", ref + " was cancelled."
	case orders.StatusRefunded:
		return notifications.KindPayment, "Refund issued", ref + " was refunded in full."
	case orders.StatusPartiallyRefunded:
		return notifications.KindPayment, "Partial refund issued", ref + " was partially refunded."
	default:
		return notifications.KindOrderStatus, "Order updated", ref + " is now " + strings.ReplaceAll(ch.To, "_", " ") + "."
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

package payments

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"shirly.shop/app/internal/modules/orders"
)

// DefaultSessionTTL is how long a hosted checkout stays open.
const DefaultSessionTTL = 30 * time.Minute

type Service struct {
	db         *gorm.DB
	provider   Provider
	sink       orders.EventSink
	logger     *slog.Logger
	sessionTTL time.Duration
}

func NewService(db *gorm.DB, p Provider, sink orders.EventSink, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = discard{}
	}
	return &Service{db: db, provider: p, sink: sink, logger: logger, sessionTTL: DefaultSessionTTL}
}

func (s *Service) SetSessionTTL(d time.Duration) {
	if d > 0 {
		s.sessionTTL = d
	}
}

func (s *Service) Provider() Provider { return s.provider }

type StartCheckoutInput struct {
	OrderID        string
	ActorUserID    string
	IdempotencyKey string
	SuccessURL     string
	CancelURL      string
}

type StartCheckoutResult struct {
	OrderID    string
	PaymentID  string
	SessionURL string
	ExpiresAt  time.Time
	Idempotent bool
}

// StartCheckout opens a hosted checkout session for a created order. A repeated call
// with the same idempotency key returns the session already opened for it.
func (s *Service) StartCheckout(ctx context.Context, in StartCheckoutInput) (StartCheckoutResult, error) {
	if in.OrderID == "" || in.IdempotencyKey == "" {
		return StartCheckoutResult{}, ErrOrderNotPayable
	}

	// Phase 1: lock order, idempotency, initiated payment row.
	var (
		pay   Payment
		ord   orders.Order
		items []orders.OrderItem
		reuse bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := orders.LockInTx(ctx, tx, in.OrderID)
		if err != nil {
			return err
		}
		ord = o
		if ord.UserID != in.ActorUserID {
			return ErrForbidden
		}

		var existing Payment
		e := tx.WithContext(ctx).First(&existing, "order_id = ? AND idempotency_key = ?", ord.ID, in.IdempotencyKey).Error
		if e == nil {
			pay = existing
			reuse = true
			return nil
		}
		if !errors.Is(e, gorm.ErrRecordNotFound) {
			return e
		}

		if !ord.Payable() {
			return ErrOrderNotPayable
		}
		if err := tx.WithContext(ctx).Order("created_at ASC").Find(&items, "order_id = ?", ord.ID).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		pay = Payment{
			ID:             uuid.NewString(),
			OrderID:        ord.ID,
			Provider:       s.provider.Name(),
			Status:         StatusInitiated,
			AmountCents:    ord.TotalCents,
			Currency:       ord.Currency,
			IdempotencyKey: in.IdempotencyKey,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.WithContext(ctx).Create(&pay).Error; err != nil {
			if isDup(err) {
				return ErrOrderNotPayable
			}
			return err
		}
		return nil
	})
	if err != nil {
		return StartCheckoutResult{}, err
	}

	if reuse {
		res := StartCheckoutResult{OrderID: ord.ID, PaymentID: pay.ID, Idempotent: true}
		if pay.Status == StatusInitiated && pay.ProviderRef != nil && ord.CheckoutSessionRef != nil &&
			*ord.CheckoutSessionRef == *pay.ProviderRef && ord.CheckoutURL != nil {
			res.SessionURL = *ord.CheckoutURL
			if ord.CheckoutExpiresAt != nil {
				res.ExpiresAt = *ord.CheckoutExpiresAt
			}
			return res, nil
		}
		if pay.Status == StatusSucceeded {
			return res, nil
		}
		return StartCheckoutResult{}, ErrOrderNotPayable
	}

	// Phase 2: provider call outside the transaction.
	lines := make([]CheckoutLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, CheckoutLine{Name: it.ProductName, UnitAmountCents: it.UnitPriceCents, Qty: it.Quantity})
	}
	resp, perr := s.provider.CreateCheckoutSession(ctx, CheckoutSessionRequest{
		OrderID:        ord.ID,
		CustomerEmail:  ord.CustomerEmail,
		AmountCents:    ord.TotalCents,
		Currency:       ord.Currency,
		Lines:          lines,
		ShippingCents:  ord.ShippingCents,
		IdempotencyKey: ord.ID + ":" + in.IdempotencyKey,
		SuccessURL:     in.SuccessURL,
		CancelURL:      in.CancelURL,
		ExpiresAt:      time.Now().UTC().Add(s.sessionTTL),
	})

	// Phase 3: persist the outcome.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		if perr != nil {
			return tx.WithContext(ctx).Model(&Payment{}).
				Where("id = ?", pay.ID).
				Updates(map[string]any{
					"status":        StatusFailed,
					"error_message": truncate(perr.Error(), 250),
					"updated_at":    now,
				}).Error
		}
		if err := tx.WithContext(ctx).Model(&Payment{}).
			Where("id = ?", pay.ID).
			Updates(map[string]any{"provider_ref": resp.SessionRef, "updated_at": now}).Error; err != nil {
			return err
		}
		return tx.WithContext(ctx).Model(&orders.Order{}).
			Where("id = ? AND status = ?", ord.ID, orders.StatusCreated).
			Updates(map[string]any{
				"checkout_session_ref": resp.SessionRef,
				"checkout_url":         resp.URL,
				"checkout_expires_at":  resp.ExpiresAt.UTC(),
				"updated_at":           now,
			}).Error
	})
	if perr != nil {
		s.logger.ErrorContext(ctx, "checkout session failed", "order_id", ord.ID, "provider", s.provider.Name(), "err", perr)
		return StartCheckoutResult{}, perr
	}
	if err != nil {
		return StartCheckoutResult{}, err
	}

	s.logger.InfoContext(ctx, "checkout session started", "order_id", ord.ID, "payment_id", pay.ID, "provider", s.provider.Name())
	return StartCheckoutResult{
		OrderID:    ord.ID,
		PaymentID:  pay.ID,
		SessionURL: resp.URL,
		ExpiresAt:  resp.ExpiresAt,
	}, nil
}

// ListForOrder returns every payment attempt and refund of an order, oldest first.
func (s *Service) ListForOrder(ctx context.Context, orderID string) ([]Payment, []Refund, error) {
	var ps []Payment
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&ps, "order_id = ?", orderID).Error; err != nil {
		return nil, nil, err
	}
	var rs []Refund
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&rs, "order_id = ?", orderID).Error; err != nil {
		return nil, nil, err
	}
	return ps, rs, nil
}

type discard struct{}

func (discard) OrderStatusChanged(context.Context, orders.StatusChange) {}

package payments

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shirly.shop/app/internal/modules/orders"
)

var refundableStatuses = map[string]bool{
	orders.StatusPaid:              true,
	orders.StatusShipped:           true,
	orders.StatusDelivered:         true,
	orders.StatusPartiallyRefunded: true,
}

type RefundService struct {
	db       *gorm.DB
	provider Provider
	sink     orders.EventSink
	logger   *slog.Logger
}

func NewRefundService(db *gorm.DB, p Provider, sink orders.EventSink, logger *slog.Logger) *RefundService {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = discard{}
	}
	return &RefundService{db: db, provider: p, sink: sink, logger: logger}
}

type RefundOrderInput struct {
	OrderID        string
	ActorUserID    string
	IdempotencyKey string
	AmountCents    int // 0 => full remaining
	Reason         string
}

type RefundOrderResult struct {
	RefundID    string
	Status      string
	AmountCents int
	Idempotent  bool
}

func (s *RefundService) RefundOrder(ctx context.Context, in RefundOrderInput) (RefundOrderResult, error) {
	if in.OrderID == "" || in.ActorUserID == "" || strings.TrimSpace(in.IdempotencyKey) == "" {
		return RefundOrderResult{}, ErrNotRefundable
	}
	if in.AmountCents < 0 {
		return RefundOrderResult{}, ErrNotRefundable
	}

	// Phase 1: lock order, find captured payment, create initiated refund.
	var (
		ord   orders.Order
		pay   Payment
		ref   Refund
		reuse bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := orders.LockInTx(ctx, tx, in.OrderID)
		if err != nil {
			return err
		}
		ord = o

		if err := tx.WithContext(ctx).
			Order("updated_at DESC").
			First(&pay, "order_id = ? AND status = ?", ord.ID, StatusSucceeded).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoSucceededPayment
			}
			return err
		}

		var existing Refund
		e := tx.WithContext(ctx).First(&existing, "payment_id = ? AND idempotency_key = ?", pay.ID, in.IdempotencyKey).Error
		if e == nil {
			ref = existing
			reuse = true
			return nil
		}
		if !errors.Is(e, gorm.ErrRecordNotFound) {
			return e
		}

		if !refundableStatuses[ord.Status] {
			return ErrNotRefundable
		}
		var pending int64
		if err := tx.WithContext(ctx).Model(&Refund{}).
			Where("order_id = ? AND status = ?", ord.ID, StatusInitiated).
			Select("COALESCE(SUM(amount_cents), 0)").
			Scan(&pending).Error; err != nil {
			return err
		}
		remaining := ord.TotalCents - ord.RefundedCents - int(pending)
		if remaining <= 0 {
			return ErrNotRefundable
		}
		amount := in.AmountCents
		if amount == 0 || amount > remaining {
			amount = remaining
		}

		now := time.Now().UTC()
		var reason *string
		if r := strings.TrimSpace(in.Reason); r != "" {
			reason = ptr(truncate(r, 255))
		}
		ref = Refund{
			ID:             uuid.NewString(),
			OrderID:        ord.ID,
			PaymentID:      pay.ID,
			Provider:       s.provider.Name(),
			Status:         StatusInitiated,
			AmountCents:    amount,
			Currency:       ord.Currency,
			IdempotencyKey: in.IdempotencyKey,
			Reason:         reason,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		return tx.WithContext(ctx).Create(&ref).Error
	})
	if err != nil {
		return RefundOrderResult{}, err
	}
	if reuse {
		return RefundOrderResult{RefundID: ref.ID, Status: ref.Status, AmountCents: ref.AmountCents, Idempotent: true}, nil
	}

	// Phase 2: provider refund outside the transaction.
	chargeRef := ""
	if pay.ChargeRef != nil {
		chargeRef = *pay.ChargeRef
	}
	resp, perr := s.provider.RefundPayment(ctx, RefundRequest{
		OrderID:        ord.ID,
		PaymentID:      pay.ID,
		PaymentRef:     chargeRef,
		AmountCents:    ref.AmountCents,
		Currency:       ref.Currency,
		IdempotencyKey: ref.ID,
		Reason:         in.Reason,
	})

	// Phase 3: finalize.
	var ch *orders.StatusChange
	status := resp.Status
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r Refund
		if err := tx.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&r, "id = ?", ref.ID).Error; err != nil {
			return err
		}
		if resp.ProviderRef != "" {
			if err := tx.WithContext(ctx).Model(&Refund{}).
				Where("id = ?", r.ID).
				Updates(map[string]any{"provider_ref": resp.ProviderRef, "updated_at": time.Now().UTC()}).Error; err != nil {
				return err
			}
		}
		if r.Status != StatusInitiated {
			// a webhook settled it first
			status = r.Status
			return nil
		}

		switch {
		case perr != nil || resp.Status == StatusFailed:
			msg := "refund failed"
			if perr != nil {
				msg = perr.Error()
			}
			status = StatusFailed
			return failRefundInTx(ctx, tx, r, in.ActorUserID, msg)
		case resp.Status == StatusSucceeded:
			c, err := settleRefundInTx(ctx, tx, r, in.ActorUserID)
			if err != nil {
				return err
			}
			ch = &c
			return nil
		default:
			// pending at the provider; a refund webhook settles it
			status = StatusInitiated
			return nil
		}
	})
	if err != nil {
		return RefundOrderResult{}, err
	}
	if ch != nil {
		s.sink.OrderStatusChanged(ctx, *ch)
	}

	s.logger.InfoContext(ctx, "refund processed", "order_id", ord.ID, "refund_id", ref.ID, "status", status, "amount_cents", ref.AmountCents)
	return RefundOrderResult{RefundID: ref.ID, Status: status, AmountCents: ref.AmountCents}, nil
}

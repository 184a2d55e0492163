package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shirly.shop/app/internal/modules/orders"
)

const (
	ActionPay          = "pay"
	ActionLatePayment  = "late_payment"
	ActionPaymentFail  = "payment_failed"
	ActionRefund       = "refund"
	ActionRefundFailed = "refund_failed"
)

type WebhookService struct {
	db     *gorm.DB
	sink   orders.EventSink
	logger *slog.Logger
}

func NewWebhookService(db *gorm.DB, sink orders.EventSink, logger *slog.Logger) *WebhookService {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = discard{}
	}
	return &WebhookService{db: db, sink: sink, logger: logger}
}

// Handle applies a verified provider event exactly once per (provider, event id).
// A returned error means nothing was committed and the provider should retry.
func (s *WebhookService) Handle(ctx context.Context, providerName string, ev WebhookEvent, rawBody []byte) (deduped bool, err error) {
	if ev.EventID == "" {
		return false, ErrInvalidPayload
	}
	payload := datatypes.JSON(rawBody)
	if len(payload) == 0 {
		payload = datatypes.JSON("{}")
	}

	var changes []orders.StatusChange
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cnt int64
		if err := tx.WithContext(ctx).Model(&ProviderEvent{}).
			Where("provider = ? AND event_id = ?", providerName, ev.EventID).
			Count(&cnt).Error; err != nil {
			return err
		}
		if cnt > 0 {
			deduped = true
			return nil
		}

		now := time.Now().UTC()
		pe := ProviderEvent{
			ID:          uuid.NewString(),
			Provider:    providerName,
			EventID:     ev.EventID,
			EventType:   ev.Type,
			PayloadJSON: payload,
			ReceivedAt:  now,
		}
		if err := tx.WithContext(ctx).Create(&pe).Error; err != nil {
			if isDup(err) {
				deduped = true
				return nil
			}
			return err
		}

		var (
			chs      []orders.StatusChange
			applyErr error
		)
		switch ev.Type {
		case EventPaymentSucceeded:
			chs, applyErr = s.applyPaymentSucceeded(ctx, tx, providerName, ev)
		case EventPaymentFailed:
			applyErr = s.applyPaymentFailed(ctx, tx, providerName, ev)
		case EventCheckoutExpired:
			chs, applyErr = s.applyCheckoutExpired(ctx, tx, providerName, ev)
		case EventRefundSucceeded:
			chs, applyErr = s.applyRefundSucceeded(ctx, tx, providerName, ev)
		case EventRefundFailed:
			applyErr = s.applyRefundFailed(ctx, tx, providerName, ev)
		default:
			s.logger.InfoContext(ctx, "webhook event ignored", "provider", providerName, "event_id", ev.EventID, "type", ev.Type)
		}
		upd := map[string]any{"processed_at": now}
		switch {
		case errors.Is(applyErr, ErrUnmatchedEvent):
			// retrying cannot help; keep the event for inspection and acknowledge it
			s.logger.WarnContext(ctx, "webhook event matches no payment", "provider", providerName, "event_id", ev.EventID, "type", ev.Type, "err", applyErr)
			upd["process_error"] = truncate(applyErr.Error(), 255)
		case applyErr != nil:
			return applyErr
		default:
			changes = chs
		}

		return tx.WithContext(ctx).Model(&ProviderEvent{}).
			Where("id = ?", pe.ID).
			Updates(upd).Error
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "webhook event apply failed", "provider", providerName, "event_id", ev.EventID, "type", ev.Type, "err", err)
		return false, err
	}
	if deduped {
		s.logger.InfoContext(ctx, "webhook event deduplicated", "provider", providerName, "event_id", ev.EventID, "type", ev.Type)
		return true, nil
	}

	for _, ch := range changes {
		s.sink.OrderStatusChanged(ctx, ch)
	}
	s.logger.InfoContext(ctx, "webhook event processed", "provider", providerName, "event_id", ev.EventID, "type", ev.Type)
	return false, nil
}

func lockPaymentForEvent(ctx context.Context, tx *gorm.DB, provider string, ev WebhookEvent) (Payment, error) {
	q := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
	var (
		p   Payment
		err error
	)
	switch {
	case ev.SessionRef != "":
		err = q.First(&p, "provider = ? AND provider_ref = ?", provider, ev.SessionRef).Error
	case ev.PaymentRef != "":
		err = q.First(&p, "provider = ? AND charge_ref = ?", provider, ev.PaymentRef).Error
	default:
		return Payment{}, fmt.Errorf("%w: no session or payment reference", ErrUnmatchedEvent)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Payment{}, fmt.Errorf("%w: session %q payment %q", ErrUnmatchedEvent, ev.SessionRef, ev.PaymentRef)
	}
	return p, err
}

func (s *WebhookService) applyPaymentSucceeded(ctx context.Context, tx *gorm.DB, provider string, ev WebhookEvent) ([]orders.StatusChange, error) {
	p, err := lockPaymentForEvent(ctx, tx, provider, ev)
	if err != nil {
		return nil, err
	}
	if p.Status == StatusSucceeded {
		return nil, nil
	}

	now := time.Now().UTC()
	upd := map[string]any{
		"status":        StatusSucceeded,
		"error_message": nil,
		"updated_at":    now,
	}
	if ev.PaymentRef != "" {
		upd["charge_ref"] = ev.PaymentRef
	}
	if err := tx.WithContext(ctx).Model(&Payment{}).Where("id = ?", p.ID).Updates(upd).Error; err != nil {
		return nil, err
	}

	// Money came in whatever the order state is.
	if err := orders.EnsureFinancialEntryInTx(ctx, tx, orders.FinancialEntry{
		OrderID:     p.OrderID,
		Event:       "payment_succeeded",
		AmountCents: p.AmountCents,
		Currency:    p.Currency,
		RefType:     "payment",
		RefID:       p.ID,
		CreatedAt:   now,
	}); err != nil {
		return nil, err
	}

	o, err := orders.LockInTx(ctx, tx, p.OrderID)
	if err != nil {
		return nil, err
	}
	if o.Status != orders.StatusCreated {
		// Paid after cancellation or paid twice; needs a manual refund.
		s.logger.WarnContext(ctx, "payment for non-payable order", "order_id", o.ID, "status", o.Status, "payment_id", p.ID)
		return nil, orders.RecordEventInTx(ctx, tx, o.ID, orders.ActorSystem, ActionLatePayment, o.Status, o.Status, "payment_id="+p.ID)
	}

	res := tx.WithContext(ctx).Model(&orders.Order{}).
		Where("id = ? AND status = ?", o.ID, orders.StatusCreated).
		Updates(map[string]any{
			"status":     orders.StatusPaid,
			"paid_at":    now,
			"updated_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if err := orders.RecordEventInTx(ctx, tx, o.ID, orders.ActorSystem, ActionPay, orders.StatusCreated, orders.StatusPaid, "payment_id="+p.ID); err != nil {
		return nil, err
	}
	o.Status = orders.StatusPaid
	o.PaidAt = &now
	o.UpdatedAt = now
	return []orders.StatusChange{{Order: o, From: orders.StatusCreated, To: orders.StatusPaid, Action: ActionPay, Actor: orders.ActorSystem}}, nil
}

func (s *WebhookService) applyPaymentFailed(ctx context.Context, tx *gorm.DB, provider string, ev WebhookEvent) error {
	p, err := lockPaymentForEvent(ctx, tx, provider, ev)
	if err != nil {
		return err
	}
	if p.Status != StatusInitiated {
		return nil
	}
	if err := tx.WithContext(ctx).Model(&Payment{}).
		Where("id = ?", p.ID).
		Updates(map[string]any{
			"status":        StatusFailed,
			"error_message": "provider webhook: failed",
			"updated_at":    time.Now().UTC(),
		}).Error; err != nil {
		return err
	}
	o, err := orders.LockInTx(ctx, tx, p.OrderID)
	if err != nil {
		return err
	}
	return orders.RecordEventInTx(ctx, tx, o.ID, orders.ActorSystem, ActionPaymentFail, o.Status, o.Status, "payment_id="+p.ID)
}

func (s *WebhookService) applyCheckoutExpired(ctx context.Context, tx *gorm.DB, provider string, ev WebhookEvent) ([]orders.StatusChange, error) {
	if ev.SessionRef == "" {
		return nil, errors.New("missing session_ref")
	}
	if err := tx.WithContext(ctx).Model(&Payment{}).
		Where("provider = ? AND provider_ref = ? AND status = ?", provider, ev.SessionRef, StatusInitiated).
		Updates(map[string]any{
			"status":        StatusFailed,
			"error_message": "checkout expired",
			"updated_at":    time.Now().UTC(),
		}).Error; err != nil {
		return nil, err
	}

	var o orders.Order
	err := tx.WithContext(ctx).First(&o, "checkout_session_ref = ?", ev.SessionRef).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// superseded by a newer session
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if o.Status != orders.StatusCreated {
		return nil, nil
	}
	ch, err := orders.ExpireInTx(ctx, tx, o.ID, "checkout session expired")
	if errors.Is(err, orders.ErrInvalidTransition) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []orders.StatusChange{ch}, nil
}

func lockRefundByRef(ctx context.Context, tx *gorm.DB, provider, ref string) (Refund, error) {
	if ref == "" {
		return Refund{}, errors.New("missing refund_ref")
	}
	var r Refund
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&r, "provider = ? AND provider_ref = ?", provider, ref).Error
	return r, err
}

func (s *WebhookService) applyRefundSucceeded(ctx context.Context, tx *gorm.DB, provider string, ev WebhookEvent) ([]orders.StatusChange, error) {
	r, err := lockRefundByRef(ctx, tx, provider, ev.RefundRef)
	if err != nil {
		return nil, err
	}
	if r.Status == StatusSucceeded {
		return nil, nil
	}
	ch, err := settleRefundInTx(ctx, tx, r, orders.ActorSystem)
	if err != nil {
		return nil, err
	}
	return []orders.StatusChange{ch}, nil
}

func (s *WebhookService) applyRefundFailed(ctx context.Context, tx *gorm.DB, provider string, ev WebhookEvent) error {
	r, err := lockRefundByRef(ctx, tx, provider, ev.RefundRef)
	if err != nil {
		return err
	}
	if r.Status != StatusInitiated {
		return nil
	}
	return failRefundInTx(ctx, tx, r, orders.ActorSystem, "provider webhook: failed")
}

// settleRefundInTx marks r succeeded and moves the order's refunded total and status.
func settleRefundInTx(ctx context.Context, tx *gorm.DB, r Refund, actor string) (orders.StatusChange, error) {
	now := time.Now().UTC()
	if err := tx.WithContext(ctx).Model(&Refund{}).
		Where("id = ?", r.ID).
		Updates(map[string]any{
			"status":        StatusSucceeded,
			"error_message": nil,
			"updated_at":    now,
		}).Error; err != nil {
		return orders.StatusChange{}, err
	}

	o, err := orders.LockInTx(ctx, tx, r.OrderID)
	if err != nil {
		return orders.StatusChange{}, err
	}

	from := o.Status
	refunded := o.RefundedCents + r.AmountCents
	upd := map[string]any{"updated_at": now}
	to := orders.StatusPartiallyRefunded
	if refunded >= o.TotalCents {
		refunded = o.TotalCents
		to = orders.StatusRefunded
		upd["refunded_at"] = now
		o.RefundedAt = &now
	}
	upd["refunded_cents"] = refunded
	upd["status"] = to
	if err := tx.WithContext(ctx).Model(&orders.Order{}).Where("id = ?", o.ID).Updates(upd).Error; err != nil {
		return orders.StatusChange{}, err
	}

	if err := orders.EnsureFinancialEntryInTx(ctx, tx, orders.FinancialEntry{
		OrderID:     o.ID,
		Event:       "refund_succeeded",
		AmountCents: -r.AmountCents,
		Currency:    r.Currency,
		RefType:     "refund",
		RefID:       r.ID,
		CreatedAt:   now,
	}); err != nil {
		return orders.StatusChange{}, err
	}
	if err := orders.RecordEventInTx(ctx, tx, o.ID, actor, ActionRefund, from, to, "refund_id="+r.ID); err != nil {
		return orders.StatusChange{}, err
	}

	o.Status = to
	o.RefundedCents = refunded
	o.UpdatedAt = now
	return orders.StatusChange{Order: o, From: from, To: to, Action: ActionRefund, Actor: actor}, nil
}

func failRefundInTx(ctx context.Context, tx *gorm.DB, r Refund, actor, msg string) error {
	now := time.Now().UTC()
	if err := tx.WithContext(ctx).Model(&Refund{}).
		Where("id = ?", r.ID).
		Updates(map[string]any{
			"status":        StatusFailed,
			"error_message": truncate(msg, 250),
			"updated_at":    now,
		}).Error; err != nil {
		return err
	}
	if err := orders.EnsureFinancialEntryInTx(ctx, tx, orders.FinancialEntry{
		OrderID:     r.OrderID,
		Event:       "refund_failed",
		AmountCents: 0,
		Currency:    r.Currency,
		RefType:     "refund",
		RefID:       r.ID,
		CreatedAt:   now,
	}); err != nil {
		return err
	}
	var o orders.Order
	if err := tx.WithContext(ctx).First(&o, "id = ?", r.OrderID).Error; err != nil {
		return err
	}
	return orders.RecordEventInTx(ctx, tx, o.ID, actor, ActionRefundFailed, o.Status, o.Status, "refund failed: "+msg)
}

package payments

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"shirly.shop/app/internal/modules/orders"
)

// ExpireStaleCheckouts cancels created orders whose hosted checkout expired (or that never
// started one within unpaidTTL) and restores their stock. It returns how many were cancelled.
func (s *Service) ExpireStaleCheckouts(ctx context.Context, now time.Time, unpaidTTL time.Duration) (int, error) {
	ids, err := orders.NewService(s.db, nil, s.logger).ListExpiredUnpaid(ctx, now, unpaidTTL, 200)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		var ch orders.StatusChange
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			c, err := orders.ExpireInTx(ctx, tx, id, "checkout expired")
			if err != nil {
				return err
			}
			ch = c
			return tx.WithContext(ctx).Model(&Payment{}).
				Where("order_id = ? AND status = ?", id, StatusInitiated).
				Updates(map[string]any{
					"status":        StatusFailed,
					"error_message": "checkout expired",
					"updated_at":    time.Now().UTC(),
				}).Error
		})
		if errors.Is(err, orders.ErrInvalidTransition) {
			// paid in the meantime
			continue
		}
		if err != nil {
			s.logger.ErrorContext(ctx, "expire checkout failed", "order_id", id, "err", err)
			continue
		}
		n++
		s.sink.OrderStatusChanged(ctx, ch)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "expired stale checkouts", "count", n)
	}
	return n, nil
}

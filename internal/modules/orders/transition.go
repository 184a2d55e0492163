package orders

import (
	"context"
	"time"

	"gorm.io/gorm"

	"shirly.shop/app/internal/modules/inventory"
	"shirly.shop/app/internal/modules/shipping"
)

const (
	ActionShip    = "ship"
	ActionDeliver = "deliver"
	ActionCancel  = "cancel"
	// ActionExpire cancels an order whose hosted checkout was never completed.
	ActionExpire = "expire"
)

func nextStatus(from, action string) (string, error) {
	switch action {
	case ActionCancel, ActionExpire:
		if from == StatusCreated {
			return StatusCancelled, nil
		}
		return "", ErrInvalidTransition
	case ActionShip:
		if from == StatusPaid {
			return StatusShipped, nil
		}
		return "", ErrInvalidTransition
	case ActionDeliver:
		if from == StatusShipped {
			return StatusDelivered, nil
		}
		return "", ErrInvalidTransition
	default:
		return "", ErrInvalidTransition
	}
}

type transition struct {
	OrderID        string
	Actor          string
	Action         string
	Note           string
	Carrier        string
	TrackingNumber string
	// OwnerID, when set, restricts the transition to that customer's order.
	OwnerID string
}

// applyInTx locks the order, validates the move and writes status, side effects and audit.
func applyInTx(ctx context.Context, tx *gorm.DB, in transition) (StatusChange, error) {
	o, err := LockInTx(ctx, tx, in.OrderID)
	if err != nil {
		return StatusChange{}, err
	}
	if in.OwnerID != "" && o.UserID != in.OwnerID {
		return StatusChange{}, ErrNotFound
	}

	from := o.Status
	to, err := nextStatus(from, in.Action)
	if err != nil {
		return StatusChange{}, err
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"status":     to,
		"updated_at": now,
	}
	switch to {
	case StatusShipped:
		updates["shipped_at"] = now
		if _, err := shipping.CreateInTx(ctx, tx, o.ID, in.Carrier, in.TrackingNumber); err != nil {
			return StatusChange{}, err
		}
	case StatusDelivered:
		updates["delivered_at"] = now
	case StatusCancelled:
		updates["cancelled_at"] = now
		if err := restoreStockInTx(ctx, tx, o.ID); err != nil {
			return StatusChange{}, err
		}
	}

	res := tx.WithContext(ctx).
		Model(&Order{}).
		Where("id = ? AND status = ?", o.ID, from). // optimistic guard
		Updates(updates)
	if res.Error != nil {
		return StatusChange{}, res.Error
	}
	if res.RowsAffected != 1 {
		return StatusChange{}, ErrInvalidTransition
	}

	if err := RecordEventInTx(ctx, tx, o.ID, in.Actor, in.Action, from, to, in.Note); err != nil {
		return StatusChange{}, err
	}

	o.Status = to
	o.UpdatedAt = now
	return StatusChange{Order: o, From: from, To: to, Action: in.Action, Actor: in.Actor}, nil
}

func restoreStockInTx(ctx context.Context, tx *gorm.DB, orderID string) error {
	var items []OrderItem
	if err := tx.WithContext(ctx).Find(&items, "order_id = ?", orderID).Error; err != nil {
		return err
	}
	lines := make([]inventory.Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, inventory.Line{ProductID: it.ProductID, Qty: it.Quantity})
	}
	return inventory.RestoreInTx(ctx, tx, lines)
}

// ExpireInTx cancels an unpaid order and restores its stock. Used when the hosted
// checkout session expires or the order sits unpaid for too long.
func ExpireInTx(ctx context.Context, tx *gorm.DB, orderID, note string) (StatusChange, error) {
	return applyInTx(ctx, tx, transition{OrderID: orderID, Actor: ActorSystem, Action: ActionExpire, Note: note})
}

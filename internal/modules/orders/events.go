package orders

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StatusChange is emitted after a status transition has been committed.
type StatusChange struct {
	Order  Order
	From   string
	To     string
	Action string
	Actor  string
}

// EventSink reacts to committed status changes (customer notifications, emails).
// Implementations must not block for long and must not fail the caller.
type EventSink interface {
	OrderStatusChanged(ctx context.Context, ch StatusChange)
}

type nopSink struct{}

func (nopSink) OrderStatusChanged(context.Context, StatusChange) {}

// RecordEventInTx appends an audit row for a transition.
func RecordEventInTx(ctx context.Context, tx *gorm.DB, orderID, actor, action, from, to, note string) error {
	if actor == "" {
		actor = ActorSystem
	}
	var notePtr *string
	if n := strings.TrimSpace(note); n != "" {
		if len(n) > 255 {
			n = n[:255]
		}
		notePtr = &n
	}
	ev := OrderEvent{
		ID:          uuid.NewString(),
		OrderID:     orderID,
		ActorUserID: actor,
		Action:      action,
		FromStatus:  from,
		ToStatus:    to,
		Note:        notePtr,
		CreatedAt:   time.Now().UTC(),
	}
	return tx.WithContext(ctx).Create(&ev).Error
}

// EnsureFinancialEntryInTx inserts e unless an entry for the same ref and event exists.
func EnsureFinancialEntryInTx(ctx context.Context, tx *gorm.DB, e FinancialEntry) error {
	var cnt int64
	if err := tx.WithContext(ctx).
		Model(&FinancialEntry{}).
		Where("ref_type = ? AND ref_id = ? AND event = ?", e.RefType, e.RefID, e.Event).
		Count(&cnt).Error; err != nil {
		return err
	}
	if cnt > 0 {
		return nil
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return tx.WithContext(ctx).Create(&e).Error
}

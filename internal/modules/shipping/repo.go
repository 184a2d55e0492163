package shipping

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

func (r *Repo) ListByOrder(ctx context.Context, orderID string) ([]Shipment, error) {
	orderID = strings.ToLower(strings.TrimSpace(orderID))

	var shipments []Shipment
	err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Find(&shipments, "order_id = ?", orderID).Error
	return shipments, err
}

// CreateInTx records a hand-over to a carrier as part of the ship transition.
func CreateInTx(ctx context.Context, tx *gorm.DB, orderID, carrier, tracking string) (Shipment, error) {
	s := Shipment{
		ID:             uuid.NewString(),
		OrderID:        orderID,
		Carrier:        strings.TrimSpace(carrier),
		TrackingNumber: strings.TrimSpace(tracking),
		CreatedAt:      time.Now().UTC(),
	}
	return s, tx.WithContext(ctx).Create(&s).Error
}

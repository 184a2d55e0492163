package shipping

import "time"

type Shipment struct {
	ID             string    `gorm:"type:char(36);primaryKey"`
	OrderID        string    `gorm:"type:char(36);not null;index:ix_shipments_order_id"`
	Carrier        string    `gorm:"type:varchar(64);not null;default:''"`
	TrackingNumber string    `gorm:"type:varchar(128);not null;default:''"`
	CreatedAt      time.Time `gorm:"not null"`
}

func (Shipment) TableName() string { return "shipments" }

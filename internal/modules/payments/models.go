package payments

import (
	"time"

	"gorm.io/datatypes"
)

const (
	StatusInitiated = "initiated"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Payment is one hosted checkout attempt for an order. ProviderRef is the checkout
// session; ChargeRef is the captured payment it produced, used for refunds.
type Payment struct {
	ID             string    `gorm:"type:char(36);primaryKey"`
	OrderID        string    `gorm:"type:char(36);not null;index:ix_payments_order_id;uniqueIndex:ux_payments_order_idem,priority:1"`
	Provider       string    `gorm:"type:varchar(64);not null;index:ix_payments_provider_ref,priority:1"`
	ProviderRef    *string   `gorm:"type:varchar(255);index:ix_payments_provider_ref,priority:2"`
	ChargeRef      *string   `gorm:"type:varchar(255)"`
	Status         string    `gorm:"type:varchar(32);not null"`
	AmountCents    int       `gorm:"not null"`
	Currency       string    `gorm:"type:char(3);not null"`
	IdempotencyKey string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_payments_order_idem,priority:2"`
	ErrorMessage   *string   `gorm:"type:varchar(255)"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

func (Payment) TableName() string { return "payments" }

type Refund struct {
	ID        string `gorm:"type:char(36);primaryKey"`
	OrderID   string `gorm:"type:char(36);not null;index:ix_refunds_order_id"`
	PaymentID string `gorm:"type:char(36);not null;index:ix_refunds_payment_id;uniqueIndex:ux_refunds_payment_idem,priority:1"`

	Provider    string  `gorm:"type:varchar(64);not null;index:ix_refunds_provider_ref,priority:1"`
	ProviderRef *string `gorm:"type:varchar(255);index:ix_refunds_provider_ref,priority:2"`

	Status         string `gorm:"type:varchar(32);not null"`
	AmountCents    int    `gorm:"not null"`
	Currency       string `gorm:"type:char(3);not null"`
	IdempotencyKey string `gorm:"type:varchar(64);not null;uniqueIndex:ux_refunds_payment_idem,priority:2"`

	Reason       *string `gorm:"type:varchar(255)"`
	ErrorMessage *string `gorm:"type:varchar(255)"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Refund) TableName() string { return "refunds" }

type ProviderEvent struct {
	ID          string         `gorm:"type:char(36);primaryKey"`
	Provider    string         `gorm:"type:varchar(64);not null;uniqueIndex:ux_provider_events_provider_event,priority:1"`
	EventID     string         `gorm:"type:varchar(128);not null;uniqueIndex:ux_provider_events_provider_event,priority:2"`
	EventType   string         `gorm:"type:varchar(64);not null"`
	PayloadJSON datatypes.JSON `gorm:"type:json;not null"`

	ReceivedAt   time.Time  `gorm:"not null"`
	ProcessedAt  *time.Time
	ProcessError *string    `gorm:"type:varchar(255)"`
}

func (ProviderEvent) TableName() string { return "provider_events" }

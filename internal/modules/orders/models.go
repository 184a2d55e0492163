package orders

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"shirly.shop/app/pkg/view"
)

const (
	StatusCreated           = "created"
	StatusPaid              = "paid"
	StatusShipped           = "shipped"
	StatusDelivered         = "delivered"
	StatusCancelled         = "cancelled"
	StatusRefunded          = "refunded"
	StatusPartiallyRefunded = "partially_refunded"
)

// AllStatuses in lifecycle order.
var AllStatuses = []string{
	StatusCreated, StatusPaid, StatusShipped, StatusDelivered,
	StatusCancelled, StatusRefunded, StatusPartiallyRefunded,
}

// ActorSystem marks events not caused by a person (webhooks, jobs).
const ActorSystem = "system"

type Order struct {
	ID            string `gorm:"type:char(36);primaryKey"`
	UserID        string `gorm:"type:char(36);not null;index:ix_orders_user_created,priority:1;uniqueIndex:ux_orders_user_idem,priority:1"`
	CustomerEmail string `gorm:"type:varchar(255);not null;default:'';index:ix_orders_customer_email"`
	Status        string `gorm:"type:varchar(32);not null;index:ix_orders_status"`
	Currency      string `gorm:"type:char(3);not null"`

	SubtotalCents int `gorm:"not null"`
	ShippingCents int `gorm:"not null;default:0"`
	TaxCents      int `gorm:"not null;default:0"`
	DiscountCents int `gorm:"not null;default:0"`
	TotalCents    int `gorm:"not null"`
	RefundedCents int `gorm:"not null;default:0"`

	ShippingMethod  string         `gorm:"type:varchar(16);not null;default:standard"`
	ShippingAddress datatypes.JSON `gorm:"type:json"`
	IdempotencyKey  string         `gorm:"type:varchar(64);not null;uniqueIndex:ux_orders_user_idem,priority:2"`

	CheckoutSessionRef *string    `gorm:"type:varchar(255);index:ix_orders_checkout_ref"`
	CheckoutURL        *string    `gorm:"type:varchar(1024)"`
	CheckoutExpiresAt  *time.Time

	PaidAt      *time.Time
	ShippedAt   *time.Time
	DeliveredAt *time.Time
	CancelledAt *time.Time
	RefundedAt  *time.Time

	CreatedAt time.Time `gorm:"not null;index:ix_orders_user_created,priority:2;index:ix_orders_created_at"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Order) TableName() string { return "orders" }

func (o Order) Address() (*view.Address, error) {
	if len(o.ShippingAddress) == 0 {
		return nil, nil
	}
	var a view.Address
	if err := json.Unmarshal(o.ShippingAddress, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Payable reports whether a hosted checkout may still be started or completed.
func (o Order) Payable() bool { return o.Status == StatusCreated }

type OrderItem struct {
	ID             string    `gorm:"type:char(36);primaryKey"`
	OrderID        string    `gorm:"type:char(36);not null;index:ix_order_items_order_id"`
	ProductID      string    `gorm:"type:char(36);not null;index:ix_order_items_product_id"`
	ProductName    string    `gorm:"type:varchar(255);not null"`
	ProductSlug    string    `gorm:"type:varchar(255);not null"`
	UnitPriceCents int       `gorm:"not null"`
	Currency       string    `gorm:"type:char(3);not null"`
	Quantity       int       `gorm:"not null"`
	LineTotalCents int       `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null"`
}

func (OrderItem) TableName() string { return "order_items" }

type OrderEvent struct {
	ID          string    `gorm:"type:char(36);primaryKey"`
	OrderID     string    `gorm:"type:char(36);not null;index:ix_order_events_order_id"`
	ActorUserID string    `gorm:"type:varchar(36);not null"`
	Action      string    `gorm:"type:varchar(32);not null"`
	FromStatus  string    `gorm:"type:varchar(32);not null"`
	ToStatus    string    `gorm:"type:varchar(32);not null"`
	Note        *string   `gorm:"type:varchar(255)"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (OrderEvent) TableName() string { return "order_events" }

// FinancialEntry is an append-only money movement: positive in, negative out.
type FinancialEntry struct {
	ID          string    `gorm:"type:char(36);primaryKey"`
	OrderID     string    `gorm:"type:char(36);not null;index:ix_order_fin_entries_order_created,priority:1"`
	Event       string    `gorm:"type:varchar(32);not null"`
	AmountCents int       `gorm:"not null"`
	Currency    string    `gorm:"type:char(3);not null"`
	RefType     string    `gorm:"type:varchar(16);not null;index:ix_order_fin_entries_ref,priority:1"`
	RefID       string    `gorm:"type:char(36);not null;index:ix_order_fin_entries_ref,priority:2"`
	CreatedAt   time.Time `gorm:"not null;index:ix_order_fin_entries_order_created,priority:2"`
}

func (FinancialEntry) TableName() string { return "order_financial_entries" }

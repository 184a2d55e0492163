package cart

import "time"

const StatusOpen = "open"

type Cart struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	UserID    string    `gorm:"type:char(36);not null;uniqueIndex:ux_carts_user_id"`
	Status    string    `gorm:"type:varchar(16);not null;default:open"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Items []CartItem `gorm:"foreignKey:CartID"`
}

func (Cart) TableName() string { return "carts" }

type CartItem struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	CartID    string    `gorm:"type:char(36);not null;uniqueIndex:ux_cart_items_cart_product,priority:1"`
	ProductID string    `gorm:"type:char(36);not null;uniqueIndex:ux_cart_items_cart_product,priority:2"`
	Quantity  int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (CartItem) TableName() string { return "cart_items" }

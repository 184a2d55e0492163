package wishlist

import "time"

type Item struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	UserID    string    `gorm:"type:char(36);not null;uniqueIndex:ux_wishlist_items_user_product,priority:1"`
	ProductID string    `gorm:"type:char(36);not null;uniqueIndex:ux_wishlist_items_user_product,priority:2;index:ix_wishlist_items_product_id"`
	CreatedAt time.Time `gorm:"not null"`
}

func (Item) TableName() string { return "wishlist_items" }

package reviews

import "time"

type Review struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	ProductID string    `gorm:"type:char(36);not null;uniqueIndex:ux_reviews_product_user,priority:1;index:ix_reviews_product_created,priority:1"`
	UserID    string    `gorm:"type:char(36);not null;uniqueIndex:ux_reviews_product_user,priority:2"`
	Rating    int       `gorm:"not null"`
	Title     string    `gorm:"type:varchar(120);not null;default:''"`
	Body      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null;index:ix_reviews_product_created,priority:2"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Review) TableName() string { return "reviews" }

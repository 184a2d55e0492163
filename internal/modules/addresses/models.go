package addresses

import (
	"time"

	"shirly.shop/app/pkg/view"
)

type Address struct {
	ID         string    `gorm:"type:char(36);primaryKey"`
	UserID     string    `gorm:"type:char(36);not null;index:ix_addresses_user_id"`
	FullName   string    `gorm:"type:varchar(120);not null"`
	Line1      string    `gorm:"type:varchar(255);not null"`
	Line2      string    `gorm:"type:varchar(255);not null;default:''"`
	City       string    `gorm:"type:varchar(120);not null"`
	Region     string    `gorm:"type:varchar(120);not null;default:''"`
	PostalCode string    `gorm:"type:varchar(20);not null"`
	Country    string    `gorm:"type:char(2);not null"`
	Phone      string    `gorm:"type:varchar(32);not null;default:''"`
	IsDefault  bool      `gorm:"not null;default:false"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

func (Address) TableName() string { return "addresses" }

func (a Address) View() view.Address {
	return view.Address{
		ID:         a.ID,
		FullName:   a.FullName,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		Region:     a.Region,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		Phone:      a.Phone,
		IsDefault:  a.IsDefault,
	}
}

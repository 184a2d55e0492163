package products

import "time"

const (
	StatusActive   = "active"
	StatusDraft    = "draft"
	StatusArchived = "archived"
)

type Category struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	Name      string    `gorm:"type:varchar(120);not null"`
	Slug      string    `gorm:"type:varchar(140);not null;uniqueIndex:ux_categories_slug"`
	CreatedAt time.Time `gorm:"not null"`
}

func (Category) TableName() string { return "categories" }

type Product struct {
	ID          string    `gorm:"type:char(36);primaryKey"`
	CategoryID  *string   `gorm:"type:char(36);index:ix_products_category_id"`
	Name        string    `gorm:"type:varchar(255);not null"`
	Slug        string    `gorm:"type:varchar(255);not null;uniqueIndex:ux_products_slug"`
	Description string    `gorm:"type:text;not null"`
	PriceCents  int       `gorm:"not null"`
	Currency    string    `gorm:"type:char(3);not null;default:USD"`
	Stock       int       `gorm:"not null;default:0"`
	Status      string    `gorm:"type:varchar(16);not null;default:draft;index:ix_products_status"`
	RatingAvg   float64   `gorm:"not null;default:0"`
	RatingCount int       `gorm:"not null;default:0"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`

	Category *Category `gorm:"foreignKey:CategoryID"`
	Images   []Image   `gorm:"foreignKey:ProductID"`
}

func (Product) TableName() string { return "products" }

// Available reports whether the product can be put into a cart right now.
func (p Product) Available() bool { return p.Status == StatusActive && p.Stock > 0 }

func (p Product) PrimaryImageURL() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0].URL
}

type Image struct {
	ID         string    `gorm:"type:char(36);primaryKey"`
	ProductID  string    `gorm:"type:char(36);not null;index:ix_product_images_product_id"`
	StorageKey string    `gorm:"type:varchar(512);not null"`
	URL        string    `gorm:"type:varchar(1024);not null"`
	Position   int       `gorm:"not null;default:0"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (Image) TableName() string { return "product_images" }

package products

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

type Sort string

const (
	SortNewest    Sort = "newest"
	SortPriceAsc  Sort = "price_asc"
	SortPriceDesc Sort = "price_desc"
	SortRating    Sort = "rating"
)

type ListFilter struct {
	Query         string
	CategorySlug  string
	MinPriceCents *int
	MaxPriceCents *int
	InStockOnly   bool
	Sort          Sort
	Page          int
	PageSize      int

	// Statuses restricts the listing; empty means active only.
	Statuses []string
}

func (f *ListFilter) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 || f.PageSize > 100 {
		f.PageSize = 24
	}
	f.Query = strings.TrimSpace(f.Query)
	if len(f.Statuses) == 0 {
		f.Statuses = []string{StatusActive}
	}
}

func (r *Repo) List(ctx context.Context, f ListFilter) ([]Product, int64, error) {
	f.normalize()

	q := r.db.WithContext(ctx).Model(&Product{}).Where("products.status IN ?", f.Statuses)
	if f.Query != "" {
		like := "%" + strings.ToLower(f.Query) + "%"
		q = q.Where("(LOWER(products.name) LIKE ? OR LOWER(products.description) LIKE ?)", like, like)
	}
	if f.CategorySlug != "" {
		q = q.Joins("JOIN categories ON categories.id = products.category_id").
			Where("categories.slug = ?", f.CategorySlug)
	}
	if f.MinPriceCents != nil {
		q = q.Where("products.price_cents >= ?", *f.MinPriceCents)
	}
	if f.MaxPriceCents != nil {
		q = q.Where("products.price_cents <= ?", *f.MaxPriceCents)
	}
	if f.InStockOnly {
		q = q.Where("products.stock > 0")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	switch f.Sort {
	case SortPriceAsc:
		q = q.Order("products.price_cents ASC").Order("products.id ASC")
	case SortPriceDesc:
		q = q.Order("products.price_cents DESC").Order("products.id ASC")
	case SortRating:
		q = q.Order("products.rating_avg DESC").Order("products.rating_count DESC").Order("products.id ASC")
	default:
		q = q.Order("products.created_at DESC").Order("products.id DESC")
	}

	var items []Product
	err := q.
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		Preload("Category").
		Limit(f.PageSize).
		Offset((f.Page - 1) * f.PageSize).
		Find(&items).Error
	return items, total, err
}

func (r *Repo) Get(ctx context.Context, id string) (Product, error) {
	return r.first(ctx, r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *Repo) GetBySlug(ctx context.Context, slug string, onlyActive bool) (Product, error) {
	q := r.db.WithContext(ctx).Where("slug = ?", slug)
	if onlyActive {
		q = q.Where("status = ?", StatusActive)
	}
	return r.first(ctx, q)
}

func (r *Repo) first(_ context.Context, q *gorm.DB) (Product, error) {
	var p Product
	err := q.
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		Preload("Category").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Product{}, ErrNotFound
	}
	return p, err
}

// GetMany returns the products with the given ids keyed by id, whatever their status.
func (r *Repo) GetMany(ctx context.Context, ids []string) (map[string]Product, error) {
	out := make(map[string]Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var items []Product
	if err := r.db.WithContext(ctx).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		Where("id IN ?", ids).
		Find(&items).Error; err != nil {
		return nil, err
	}
	for _, p := range items {
		out[p.ID] = p
	}
	return out, nil
}

func (r *Repo) Create(ctx context.Context, p *Product) error {
	now := time.Now().UTC()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt, p.UpdatedAt = now, now
	err := r.db.WithContext(ctx).Omit("Category", "Images").Create(p).Error
	if IsDuplicateKey(err) {
		return ErrSlugTaken
	}
	return err
}

func (r *Repo) Update(ctx context.Context, id string, fields map[string]any) error {
	fields["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&Product{}).Where("id = ?", id).Updates(fields)
	if IsDuplicateKey(res.Error) {
		return ErrSlugTaken
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) SlugExists(ctx context.Context, slug, exceptID string) (bool, error) {
	var n int64
	q := r.db.WithContext(ctx).Model(&Product{}).Where("slug = ?", slug)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	err := q.Count(&n).Error
	return n > 0, err
}

func (r *Repo) AddImage(ctx context.Context, productID, storageKey, url string) (Image, error) {
	var maxPos struct{ Max *int }
	if err := r.db.WithContext(ctx).Model(&Image{}).
		Select("MAX(position) AS max").
		Where("product_id = ?", productID).
		Scan(&maxPos).Error; err != nil {
		return Image{}, err
	}
	pos := 0
	if maxPos.Max != nil {
		pos = *maxPos.Max + 1
	}

	im := Image{
		ID:         uuid.NewString(),
		ProductID:  productID,
		StorageKey: storageKey,
		URL:        url,
		Position:   pos,
		CreatedAt:  time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&im).Error; err != nil {
		return Image{}, err
	}
	return im, nil
}

func (r *Repo) GetImage(ctx context.Context, productID, imageID string) (Image, error) {
	var im Image
	err := r.db.WithContext(ctx).First(&im, "id = ? AND product_id = ?", imageID, productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Image{}, ErrImageNotFound
	}
	return im, err
}

func (r *Repo) DeleteImage(ctx context.Context, productID, imageID string) error {
	return r.db.WithContext(ctx).
		Where("id = ? AND product_id = ?", imageID, productID).
		Delete(&Image{}).Error
}

func (r *Repo) ListCategories(ctx context.Context) ([]Category, error) {
	var cs []Category
	err := r.db.WithContext(ctx).Order("name ASC").Find(&cs).Error
	return cs, err
}

func (r *Repo) CategoryBySlug(ctx context.Context, slug string) (Category, error) {
	var c Category
	err := r.db.WithContext(ctx).First(&c, "slug = ?", slug).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Category{}, ErrCategoryNotFound
	}
	return c, err
}

func (r *Repo) CreateCategory(ctx context.Context, c *Category) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()
	err := r.db.WithContext(ctx).Create(c).Error
	if IsDuplicateKey(err) {
		return ErrSlugTaken
	}
	return err
}

func (r *Repo) DeleteCategory(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&Product{}).Where("category_id = ? AND status <> ?", id, StatusArchived).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrCategoryInUse
		}
		if err := tx.Model(&Product{}).Where("category_id = ?", id).Update("category_id", nil).Error; err != nil {
			return err
		}
		res := tx.Delete(&Category{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrCategoryNotFound
		}
		return nil
	})
}

func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return false
}

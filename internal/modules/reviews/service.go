package reviews

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"shirly.shop/app/internal/modules/auth"
	"shirly.shop/app/internal/modules/orders"
	"shirly.shop/app/internal/modules/products"
	"shirly.shop/app/pkg/view"
)

type Service struct {
	db       *gorm.DB
	products *products.Repo
	orders   *orders.Repo
}

func NewService(db *gorm.DB, productsRepo *products.Repo, ordersRepo *orders.Repo) *Service {
	return &Service{db: db, products: productsRepo, orders: ordersRepo}
}

type Input struct {
	Rating int
	Title  string
	Body   string
}

func (in Input) normalize() (Input, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return in, ErrInvalidRating
	}
	in.Title = strings.TrimSpace(in.Title)
	if utf8.RuneCountInString(in.Title) > 120 {
		in.Title = string([]rune(in.Title)[:120])
	}
	in.Body = strings.TrimSpace(in.Body)
	return in, nil
}

// ListForProduct pages a product's reviews newest first.
func (s *Service) ListForProduct(ctx context.Context, slug string, page, pageSize int) (view.ReviewList, error) {
	p, err := s.products.GetBySlug(ctx, slug, true)
	if errors.Is(err, products.ErrNotFound) {
		return view.ReviewList{}, ErrProductNotFound
	}
	if err != nil {
		return view.ReviewList{}, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 50 {
		pageSize = 10
	}

	q := s.db.WithContext(ctx).Model(&Review{}).Where("product_id = ?", p.ID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return view.ReviewList{}, err
	}
	var rows []Review
	if err := q.Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error; err != nil {
		return view.ReviewList{}, err
	}
	names, err := s.authorNames(ctx, rows)
	if err != nil {
		return view.ReviewList{}, err
	}

	items := make([]view.Review, 0, len(rows))
	for _, r := range rows {
		items = append(items, ToView(r, names[r.UserID]))
	}
	return view.ReviewList{
		Items:       items,
		RatingAvg:   p.RatingAvg,
		RatingCount: p.RatingCount,
		PageMeta:    view.NewPageMeta(page, pageSize, total),
	}, nil
}

// Create requires a paid (or later) order of the product; one review per user and product.
func (s *Service) Create(ctx context.Context, userID, productSlug string, in Input) (Review, error) {
	in, err := in.normalize()
	if err != nil {
		return Review{}, err
	}
	p, err := s.products.GetBySlug(ctx, productSlug, false)
	if errors.Is(err, products.ErrNotFound) {
		return Review{}, ErrProductNotFound
	}
	if err != nil {
		return Review{}, err
	}
	ok, err := s.orders.HasPurchased(ctx, userID, p.ID)
	if err != nil {
		return Review{}, err
	}
	if !ok {
		return Review{}, ErrNotPurchased
	}

	now := time.Now().UTC()
	r := Review{
		ID:        uuid.NewString(),
		ProductID: p.ID,
		UserID:    userID,
		Rating:    in.Rating,
		Title:     in.Title,
		Body:      in.Body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&r).Error; err != nil {
			if isDup(err) {
				return ErrAlreadyReviewed
			}
			return err
		}
		return recomputeRatingInTx(ctx, tx, p.ID)
	})
	return r, err
}

// Update lets the author change their review.
func (s *Service) Update(ctx context.Context, userID, id string, in Input) (Review, error) {
	in, err := in.normalize()
	if err != nil {
		return Review{}, err
	}
	var r Review
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&r, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if r.UserID != userID {
			return ErrForbidden
		}
		r.Rating, r.Title, r.Body = in.Rating, in.Title, in.Body
		r.UpdatedAt = time.Now().UTC()
		if err := tx.Save(&r).Error; err != nil {
			return err
		}
		return recomputeRatingInTx(ctx, tx, r.ProductID)
	})
	return r, err
}

// Delete removes a review; admins may remove any.
func (s *Service) Delete(ctx context.Context, userID string, isAdmin bool, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r Review
		if err := tx.First(&r, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if !isAdmin && r.UserID != userID {
			return ErrForbidden
		}
		if err := tx.Delete(&r).Error; err != nil {
			return err
		}
		return recomputeRatingInTx(ctx, tx, r.ProductID)
	})
}

func (s *Service) Author(ctx context.Context, r Review) (string, error) {
	names, err := s.authorNames(ctx, []Review{r})
	return names[r.UserID], err
}

func recomputeRatingInTx(ctx context.Context, tx *gorm.DB, productID string) error {
	tx = tx.WithContext(ctx)
	var agg struct {
		Avg float64
		Cnt int
	}
	if err := tx.Model(&Review{}).
		Select("COALESCE(AVG(rating), 0) AS avg, COUNT(*) AS cnt").
		Where("product_id = ?", productID).
		Scan(&agg).Error; err != nil {
		return err
	}
	return tx.Model(&products.Product{}).
		Where("id = ?", productID).
		Updates(map[string]any{
			"rating_avg":   math.Round(agg.Avg*100) / 100,
			"rating_count": agg.Cnt,
		}).Error
}

func (s *Service) authorNames(ctx context.Context, rows []Review) (map[string]string, error) {
	out := make(map[string]string, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.UserID)
	}
	var users []auth.User
	if err := s.db.WithContext(ctx).Select("id", "first_name", "last_name").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = publicName(u)
	}
	return out, nil
}

// publicName never exposes the email address.
func publicName(u auth.User) string {
	first := strings.TrimSpace(u.FirstName)
	last := strings.TrimSpace(u.LastName)
	switch {
	case first == "":
		return "Customer"
	case last == "":
		return first
	default:
		r, _ := utf8.DecodeRuneInString(last)
		return first + " " + string(r) + "."
	}
}

func ToView(r Review, author string) view.Review {
	if author == "" {
		author = "Customer"
	}
	return view.Review{
		ID:         r.ID,
		ProductID:  r.ProductID,
		UserID:     r.UserID,
		AuthorName: author,
		Rating:     r.Rating,
		Title:      r.Title,
		Body:       r.Body,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

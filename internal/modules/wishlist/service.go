package wishlist

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shirly.shop/app/internal/modules/cart"
	"shirly.shop/app/internal/modules/products"
	"shirly.shop/app/pkg/view"
)

type Service struct {
	db       *gorm.DB
	products *products.Repo
	cart     *cart.Service
}

func NewService(db *gorm.DB, productsRepo *products.Repo, cartSvc *cart.Service) *Service {
	return &Service{db: db, products: productsRepo, cart: cartSvc}
}

// List returns the wishlist newest first. Products that were deleted are skipped;
// archived or sold out ones stay and report available=false.
func (s *Service) List(ctx context.Context, userID string) ([]view.WishlistItem, error) {
	var items []Item
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&items).Error; err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	ps, err := s.products.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]view.WishlistItem, 0, len(items))
	for _, it := range items {
		p, ok := ps[it.ProductID]
		if !ok {
			continue
		}
		out = append(out, view.WishlistItem{Product: products.ToView(p), AddedAt: it.CreatedAt})
	}
	return out, nil
}

// Add is idempotent: adding a product twice keeps the first entry.
func (s *Service) Add(ctx context.Context, userID, productID string) ([]view.WishlistItem, error) {
	p, err := s.products.Get(ctx, productID)
	if errors.Is(err, products.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.Status == products.StatusDraft {
		return nil, ErrProductNotFound
	}

	it := Item{ID: uuid.NewString(), UserID: userID, ProductID: productID, CreatedAt: time.Now().UTC()}
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&it).Error; err != nil {
		return nil, err
	}
	return s.List(ctx, userID)
}

func (s *Service) Remove(ctx context.Context, userID, productID string) ([]view.WishlistItem, error) {
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&Item{}).Error; err != nil {
		return nil, err
	}
	return s.List(ctx, userID)
}

func (s *Service) Contains(ctx context.Context, userID, productID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Item{}).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Count(&n).Error
	return n > 0, err
}

type MoveResult struct {
	Wishlist []view.WishlistItem
	Cart     view.CartPage
}

// MoveToCart adds one unit to the cart, then drops the wishlist entry. If the cart
// rejects the product the wishlist is left untouched.
func (s *Service) MoveToCart(ctx context.Context, userID, productID string) (MoveResult, error) {
	ok, err := s.Contains(ctx, userID, productID)
	if err != nil {
		return MoveResult{}, err
	}
	if !ok {
		return MoveResult{}, ErrNotInWishlist
	}

	page, err := s.cart.Add(ctx, userID, productID, 1)
	if err != nil {
		return MoveResult{}, err
	}
	wl, err := s.Remove(ctx, userID, productID)
	if err != nil {
		return MoveResult{}, err
	}
	return MoveResult{Wishlist: wl, Cart: page}, nil
}

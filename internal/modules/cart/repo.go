package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

func (r *Repo) WithTx(tx *gorm.DB) *Repo { return &Repo{db: tx} }

func (r *Repo) GetOrCreateUserCart(ctx context.Context, userID string) (Cart, error) {
	var c Cart
	err := r.db.WithContext(ctx).First(&c, "user_id = ?", userID).Error
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Cart{}, err
	}

	now := time.Now().UTC()
	c = Cart{ID: uuid.NewString(), UserID: userID, Status: StatusOpen, CreatedAt: now, UpdatedAt: now}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&c).Error; err != nil {
		return Cart{}, err
	}
	// a concurrent request may have won the insert
	err = r.db.WithContext(ctx).First(&c, "user_id = ?", userID).Error
	return c, err
}

func (r *Repo) Items(ctx context.Context, cartID string) ([]CartItem, error) {
	var items []CartItem
	err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("created_at ASC").Order("id ASC").
		Find(&items).Error
	return items, err
}

func (r *Repo) Item(ctx context.Context, cartID, productID string) (CartItem, bool, error) {
	var it CartItem
	err := r.db.WithContext(ctx).First(&it, "cart_id = ? AND product_id = ?", cartID, productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return CartItem{}, false, nil
	}
	return it, err == nil, err
}

func (r *Repo) AddItem(ctx context.Context, cartID string, productID string, qty int) error {
	now := time.Now().UTC()
	item := CartItem{
		ID:        uuid.NewString(),
		CartID:    cartID,
		ProductID: productID,
		Quantity:  qty,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return r.db.WithContext(ctx).Create(&item).Error
}

func (r *Repo) UpdateItemQty(ctx context.Context, cartID string, productID string, qty int) error {
	if qty <= 0 {
		return r.RemoveItem(ctx, cartID, productID)
	}
	return r.db.WithContext(ctx).Model(&CartItem{}).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		Updates(map[string]any{"quantity": qty, "updated_at": time.Now().UTC()}).Error
}

func (r *Repo) RemoveItem(ctx context.Context, cartID string, productID string) error {
	return r.db.WithContext(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		Delete(&CartItem{}).Error
}

func (r *Repo) ClearCart(ctx context.Context, cartID string) error {
	return r.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&CartItem{}).Error
}

func (r *Repo) Touch(ctx context.Context, cartID string) error {
	return r.db.WithContext(ctx).Model(&Cart{}).Where("id = ?", cartID).Update("updated_at", time.Now().UTC()).Error
}

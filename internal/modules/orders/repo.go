package orders

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

// DB returns the underlying database connection for direct queries.
func (r *Repo) DB() *gorm.DB { return r.db }

type ListByUserParams struct {
	UserID   string
	Page     int
	PageSize int
	Status   string // optional filter
}

type ListByUserResult struct {
	Items    []ListByUserItem
	Total    int64
	Page     int
	PageSize int
}

type ListByUserItem struct {
	Order Order
	Count int
}

func (r *Repo) ListByUser(ctx context.Context, in ListByUserParams) (ListByUserResult, error) {
	page := in.Page
	if page < 1 {
		page = 1
	}
	size := in.PageSize
	if size < 1 || size > 100 {
		size = 20
	}
	status := strings.TrimSpace(in.Status)

	q := r.db.WithContext(ctx).Model(&Order{}).Where("user_id = ?", in.UserID)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return ListByUserResult{}, err
	}

	var orders []Order
	if err := q.
		Order("created_at DESC").Order("id DESC").
		Limit(size).
		Offset((page - 1) * size).
		Find(&orders).Error; err != nil {
		return ListByUserResult{}, err
	}

	counts, err := r.itemCounts(ctx, orders)
	if err != nil {
		return ListByUserResult{}, err
	}
	items := make([]ListByUserItem, len(orders))
	for i, o := range orders {
		items[i] = ListByUserItem{Order: o, Count: counts[o.ID]}
	}

	return ListByUserResult{Items: items, Total: total, Page: page, PageSize: size}, nil
}

func (r *Repo) itemCounts(ctx context.Context, orders []Order) (map[string]int, error) {
	out := make(map[string]int, len(orders))
	if len(orders) == 0 {
		return out, nil
	}
	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	var rows []struct {
		OrderID string
		Qty     int
	}
	if err := r.db.WithContext(ctx).Model(&OrderItem{}).
		Select("order_id, SUM(quantity) AS qty").
		Where("order_id IN ?", ids).
		Group("order_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.OrderID] = row.Qty
	}
	return out, nil
}

func (r *Repo) Get(ctx context.Context, id string) (Order, error) {
	var o Order
	err := r.db.WithContext(ctx).First(&o, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Order{}, ErrNotFound
	}
	return o, err
}

func (r *Repo) GetWithItems(ctx context.Context, id string) (Order, []OrderItem, error) {
	o, err := r.Get(ctx, id)
	if err != nil {
		return Order{}, nil, err
	}
	items, err := r.Items(ctx, id)
	if err != nil {
		return Order{}, nil, err
	}
	return o, items, nil
}

func (r *Repo) Items(ctx context.Context, orderID string) ([]OrderItem, error) {
	var items []OrderItem
	err := r.db.WithContext(ctx).Order("created_at ASC").Order("id ASC").Find(&items, "order_id = ?", orderID).Error
	return items, err
}

func (r *Repo) FindByIdempotencyKey(ctx context.Context, userID, key string) (Order, bool, error) {
	var o Order
	err := r.db.WithContext(ctx).First(&o, "user_id = ? AND idempotency_key = ?", userID, key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Order{}, false, nil
	}
	return o, err == nil, err
}

// LockInTx loads the order with a row lock.
func LockInTx(ctx context.Context, tx *gorm.DB, id string) (Order, error) {
	var o Order
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&o, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Order{}, ErrNotFound
	}
	return o, err
}

// HasPurchased reports whether the user owns a paid (or later) order containing productID.
func (r *Repo) HasPurchased(ctx context.Context, userID, productID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Table("order_items").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.user_id = ? AND order_items.product_id = ?", userID, productID).
		Where("orders.status IN ?", []string{StatusPaid, StatusShipped, StatusDelivered, StatusPartiallyRefunded}).
		Count(&n).Error
	return n > 0, err
}

package orders

import (
	"context"
	"strings"
	"time"
)

type AdminListParams struct {
	Q        string
	Statuses []string
	From     *time.Time
	To       *time.Time
	MinTotal *int
	MaxTotal *int
	Sort     string // created_at|total|status|customer
	Desc     bool
	Page     int
	PageSize int
}

type AdminListResult struct {
	Items    []Order
	Total    int64
	Page     int
	PageSize int
}

var adminSortColumns = map[string]string{
	"created_at": "created_at",
	"total":      "total_cents",
	"status":     "status",
	"customer":   "customer_email",
}

func (r *Repo) AdminList(ctx context.Context, in AdminListParams) (AdminListResult, error) {
	page := in.Page
	if page < 1 {
		page = 1
	}
	size := in.PageSize
	if size < 1 || size > 100 {
		size = 30
	}

	q := strings.TrimSpace(in.Q)

	base := r.db.WithContext(ctx).Model(&Order{})
	if len(in.Statuses) > 0 {
		base = base.Where("status IN ?", in.Statuses)
	}
	if q != "" {
		like := "%" + strings.ToLower(q) + "%"
		base = base.Where("(LOWER(id) LIKE ? OR LOWER(customer_email) LIKE ?)", like, like)
	}
	if in.From != nil {
		base = base.Where("created_at >= ?", in.From.UTC())
	}
	if in.To != nil {
		base = base.Where("created_at < ?", in.To.UTC())
	}
	if in.MinTotal != nil {
		base = base.Where("total_cents >= ?", *in.MinTotal)
	}
	if in.MaxTotal != nil {
		base = base.Where("total_cents <= ?", *in.MaxTotal)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return AdminListResult{}, err
	}

	col, ok := adminSortColumns[in.Sort]
	if !ok {
		col = "created_at"
		in.Desc = in.Sort == "" || in.Desc
	}
	dir := " ASC"
	if in.Desc {
		dir = " DESC"
	}

	var items []Order
	if err := base.
		Order(col + dir).Order("id" + dir).
		Limit(size).
		Offset((page - 1) * size).
		Find(&items).Error; err != nil {
		return AdminListResult{}, err
	}

	return AdminListResult{Items: items, Total: total, Page: page, PageSize: size}, nil
}

type AdminDetail struct {
	Order     Order
	Items     []OrderItem
	Events    []OrderEvent
	Financial []FinancialEntry
}

func (r *Repo) AdminGetDetail(ctx context.Context, orderID string) (AdminDetail, error) {
	o, items, err := r.GetWithItems(ctx, orderID)
	if err != nil {
		return AdminDetail{}, err
	}
	var ev []OrderEvent
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").Order("id DESC").
		Find(&ev, "order_id = ?", orderID).Error; err != nil {
		return AdminDetail{}, err
	}
	fin, err := r.AdminListFinancial(ctx, orderID)
	if err != nil {
		return AdminDetail{}, err
	}
	return AdminDetail{Order: o, Items: items, Events: ev, Financial: fin}, nil
}

func (r *Repo) AdminListFinancial(ctx context.Context, orderID string) ([]FinancialEntry, error) {
	var out []FinancialEntry
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&out, "order_id = ?", orderID).Error
	return out, err
}

// Package analytics computes the admin dashboard figures.
package analytics

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"shirly.shop/app/internal/modules/auth"
	"shirly.shop/app/internal/modules/orders"
	"shirly.shop/app/pkg/view"
)

const (
	dayLayout = "2006-01-02"
	maxRange  = 366 * 24 * time.Hour
	topN      = 5
)

var ErrInvalidRange = errors.New("invalid date range")

// revenueStatuses are the orders whose money was captured.
var revenueStatuses = []string{
	orders.StatusPaid, orders.StatusShipped, orders.StatusDelivered,
	orders.StatusPartiallyRefunded, orders.StatusRefunded,
}

type Service struct {
	db       *gorm.DB
	currency string
}

func NewService(db *gorm.DB, currency string) *Service {
	if currency == "" {
		currency = "USD"
	}
	return &Service{db: db, currency: currency}
}

// ParseRange reads YYYY-MM-DD bounds (inclusive days, UTC). Empty values default to
// the last 30 days ending today.
func ParseRange(fromStr, toStr string, now time.Time) (time.Time, time.Time, error) {
	today := now.UTC().Truncate(24 * time.Hour)
	to := today
	if toStr != "" {
		t, err := time.Parse(dayLayout, toStr)
		if err != nil {
			return time.Time{}, time.Time{}, ErrInvalidRange
		}
		to = t
	}
	from := to.AddDate(0, 0, -29)
	if fromStr != "" {
		f, err := time.Parse(dayLayout, fromStr)
		if err != nil {
			return time.Time{}, time.Time{}, ErrInvalidRange
		}
		from = f
	}
	if from.After(to) || to.Sub(from) > maxRange {
		return time.Time{}, time.Time{}, ErrInvalidRange
	}
	return from, to, nil
}

// Dashboard aggregates orders created in the days [from, to]. The independent queries
// run concurrently.
func (s *Service) Dashboard(ctx context.Context, from, to time.Time) (view.Dashboard, error) {
	from = from.UTC().Truncate(24 * time.Hour)
	to = to.UTC().Truncate(24 * time.Hour)
	if from.After(to) {
		return view.Dashboard{}, ErrInvalidRange
	}
	end := to.AddDate(0, 0, 1)

	d := view.Dashboard{
		From:     from.Format(dayLayout),
		To:       to.Format(dayLayout),
		Currency: s.currency,
	}

	g, gctx := errgroup.WithContext(ctx)
	db := s.db.WithContext(gctx)
	inRange := func() *gorm.DB {
		return db.Model(&orders.Order{}).Where("created_at >= ? AND created_at < ?", from, end)
	}

	g.Go(func() error {
		return inRange().Count(&d.Orders).Error
	})
	g.Go(func() error {
		return inRange().Distinct("user_id").Count(&d.Customers).Error
	})
	g.Go(func() error {
		return db.Model(&auth.User{}).
			Where("role = ? AND created_at >= ? AND created_at < ?", auth.RoleCustomer, from, end).
			Count(&d.NewCustomers).Error
	})
	g.Go(func() error {
		var rows []struct {
			CreatedAt     time.Time
			TotalCents    int64
			RefundedCents int64
		}
		if err := inRange().
			Select("created_at", "total_cents", "refunded_cents").
			Where("status IN ?", revenueStatuses).
			Find(&rows).Error; err != nil {
			return err
		}
		byDay := make(map[string]int64, len(rows))
		for _, r := range rows {
			net := r.TotalCents - r.RefundedCents
			d.RevenueCents += net
			byDay[r.CreatedAt.UTC().Format(dayLayout)] += net
		}
		d.PaidOrders = int64(len(rows))
		if d.PaidOrders > 0 {
			d.AvgOrderValueCents = d.RevenueCents / d.PaidOrders
		}
		d.RevenueByDay = zeroFilled(from, to, byDay)
		return nil
	})
	g.Go(func() error {
		var rows []struct {
			Status string
			N      int64
		}
		if err := inRange().Select("status, COUNT(*) AS n").Group("status").Scan(&rows).Error; err != nil {
			return err
		}
		counts := make(map[string]int64, len(rows))
		for _, r := range rows {
			counts[r.Status] = r.N
		}
		d.OrdersByStatus = view.Series{Labels: orders.AllStatuses, Values: make([]int64, len(orders.AllStatuses))}
		for i, st := range orders.AllStatuses {
			d.OrdersByStatus.Values[i] = counts[st]
		}
		return nil
	})
	g.Go(func() error {
		var rows []struct {
			ProductID    string
			Name         string
			Qty          int64
			RevenueCents int64
		}
		if err := db.Table("order_items").
			Select("order_items.product_id AS product_id, MAX(order_items.product_name) AS name, SUM(order_items.quantity) AS qty, SUM(order_items.line_total_cents) AS revenue_cents").
			Joins("JOIN orders ON orders.id = order_items.order_id").
			Where("orders.created_at >= ? AND orders.created_at < ? AND orders.status IN ?", from, end, revenueStatuses).
			Group("order_items.product_id").
			Order("qty DESC, revenue_cents DESC").
			Limit(topN).
			Scan(&rows).Error; err != nil {
			return err
		}
		d.TopProducts = make([]view.TopProduct, 0, len(rows))
		for _, r := range rows {
			d.TopProducts = append(d.TopProducts, view.TopProduct(r))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return view.Dashboard{}, err
	}
	return d, nil
}

func zeroFilled(from, to time.Time, byDay map[string]int64) view.Series {
	var s view.Series
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		k := day.Format(dayLayout)
		s.Labels = append(s.Labels, k)
		s.Values = append(s.Values, byDay[k])
	}
	return s
}

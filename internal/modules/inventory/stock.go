package inventory

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const productsTable = "products"

type Line struct {
	ProductID string
	Qty       int
}

// DeductInTx runs inside the caller's transaction. Rows are locked in id order so
// concurrent checkouts touching the same products cannot deadlock each other.
func DeductInTx(ctx context.Context, tx *gorm.DB, lines []Line) error {
	want, ids := collapse(lines)
	if len(ids) == 0 {
		return nil
	}

	type row struct {
		ID     string `gorm:"column:id"`
		Stock  int    `gorm:"column:stock"`
		Status string `gorm:"column:status"`
	}
	var rows []row

	if err := tx.WithContext(ctx).
		Table(productsTable).
		Select("id", "stock", "status").
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return err
	}

	avail := make(map[string]int, len(rows))
	for _, r := range rows {
		if r.Status != "active" {
			continue
		}
		avail[r.ID] = r.Stock
	}

	var oos []OutOfStockItem
	for _, id := range ids {
		req := want[id]
		av, ok := avail[id]
		if !ok || av < req {
			oos = append(oos, OutOfStockItem{ProductID: id, Requested: req, Available: av})
		}
	}
	if len(oos) > 0 {
		return &OutOfStockError{Items: oos}
	}

	for _, id := range ids {
		req := want[id]
		res := tx.WithContext(ctx).
			Table(productsTable).
			Where("id = ? AND stock >= ?", id, req).
			UpdateColumn("stock", gorm.Expr("stock - ?", req))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return &OutOfStockError{Items: []OutOfStockItem{{ProductID: id, Requested: req, Available: 0}}}
		}
	}

	return nil
}

// RestoreInTx puts quantities back, e.g. when an unpaid order is cancelled.
func RestoreInTx(ctx context.Context, tx *gorm.DB, lines []Line) error {
	want, ids := collapse(lines)
	for _, id := range ids {
		if err := tx.WithContext(ctx).
			Table(productsTable).
			Where("id = ?", id).
			UpdateColumn("stock", gorm.Expr("stock + ?", want[id])).Error; err != nil {
			return err
		}
	}
	return nil
}

func Deduct(ctx context.Context, db *gorm.DB, lines []Line) error {
	return WithTxRetry(ctx, db, 3, func(tx *gorm.DB) error {
		return DeductInTx(ctx, tx, lines)
	})
}

func collapse(lines []Line) (map[string]int, []string) {
	want := make(map[string]int, len(lines))
	for _, ln := range lines {
		q := ln.Qty
		if q < 1 {
			q = 1
		}
		want[ln.ProductID] += q
	}
	ids := make([]string, 0, len(want))
	for id := range want {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return want, ids
}

// WithTxRetry retries fn in a fresh transaction on deadlock or lock wait timeout.
func WithTxRetry(ctx context.Context, db *gorm.DB, attempts int, fn func(tx *gorm.DB) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error

	for i := 0; i < attempts; i++ {
		err := db.WithContext(ctx).Transaction(fn)
		if err == nil {
			return nil
		}
		lastErr = err

		if IsRetryable(err) && i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(50*(i+1)) * time.Millisecond):
			}
			continue
		}
		return err
	}
	return lastErr
}

func IsRetryable(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		// 1213: deadlock, 1205: lock wait timeout
		return me.Number == 1213 || me.Number == 1205
	}
	return false
}

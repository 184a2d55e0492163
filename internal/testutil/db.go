// Package testutil provides an in-memory database with the full schema for tests.
package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"shirly.shop/app/internal/db"
	"shirly.shop/app/internal/modules/auth"
	"shirly.shop/app/internal/modules/products"
)

var seq atomic.Int64

// DB returns a fresh, migrated in-memory SQLite database private to t.
func DB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), seq.Add(1))
	gdb, err := gorm.Open(sqlite.Open(dsn), db.GormConfig())
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	// one connection keeps the shared-cache database alive and serializes writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))
	return gdb
}

// CreateUser inserts a user with password "password123".
func CreateUser(t testing.TB, gdb *gorm.DB, email, role string) auth.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	if role == "" {
		role = auth.RoleCustomer
	}
	now := time.Now().UTC()
	u := auth.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    "Test",
		LastName:     "User",
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, gdb.Create(&u).Error)
	return u
}

type ProductOpt func(*products.Product)

func WithStock(n int) ProductOpt     { return func(p *products.Product) { p.Stock = n } }
func WithStatus(s string) ProductOpt { return func(p *products.Product) { p.Status = s } }
func WithCurrency(c string) ProductOpt {
	return func(p *products.Product) { p.Currency = c }
}

// CreateProduct inserts an active product with stock 10 unless overridden.
func CreateProduct(t testing.TB, gdb *gorm.DB, name string, priceCents int, opts ...ProductOpt) products.Product {
	t.Helper()
	p := products.Product{
		Name:        name,
		Slug:        fmt.Sprintf("p-%d", seq.Add(1)),
		Description: name + " description",
		PriceCents:  priceCents,
		Currency:    "USD",
		Stock:       10,
		Status:      products.StatusActive,
	}
	for _, o := range opts {
		o(&p)
	}
	require.NoError(t, products.NewRepo(gdb).Create(context.Background(), &p))
	return p
}

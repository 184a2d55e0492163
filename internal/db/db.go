// Package db opens the MySQL connection and owns the schema migration.
package db

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"shirly.shop/app/internal/config"
	"shirly.shop/app/internal/modules/addresses"
	"shirly.shop/app/internal/modules/auth"
	"shirly.shop/app/internal/modules/cart"
	"shirly.shop/app/internal/modules/chat"
	"shirly.shop/app/internal/modules/notifications"
	"shirly.shop/app/internal/modules/orders"
	"shirly.shop/app/internal/modules/payments"
	"shirly.shop/app/internal/modules/products"
	"shirly.shop/app/internal/modules/reviews"
	"shirly.shop/app/internal/modules/shipping"
	"shirly.shop/app/internal/modules/wishlist"
)

// datetimePrecision makes time columns datetime(3) on MySQL. Models carry no
// column type for times so the SQLite test dialect maps them natively.
var datetimePrecision = 3

func Open(cfg config.DBConfig, l *slog.Logger) (*gorm.DB, error) {
	dialector := mysql.New(mysql.Config{DSN: cfg.DSN, DefaultDatetimePrecision: &datetimePrecision})
	gdb, err := gorm.Open(dialector, GormConfig())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if l != nil {
		l.Info("database connected", "max_open_conns", cfg.MaxOpenConns)
	}
	return gdb, nil
}

// GormConfig is shared by the production and test dialects.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}
}

// Models lists every persisted type in dependency order.
func Models() []any {
	return []any{
		&auth.User{},
		&auth.Session{},
		&products.Category{},
		&products.Product{},
		&products.Image{},
		&cart.Cart{},
		&cart.CartItem{},
		&wishlist.Item{},
		&addresses.Address{},
		&orders.Order{},
		&orders.OrderItem{},
		&orders.OrderEvent{},
		&orders.FinancialEntry{},
		&shipping.Shipment{},
		&payments.Payment{},
		&payments.Refund{},
		&payments.ProviderEvent{},
		&chat.Message{},
		&reviews.Review{},
		&notifications.Notification{},
	}
}

func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(Models()...)
}

package orders

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"shirly.shop/app/internal/modules/cart"
	"shirly.shop/app/internal/modules/inventory"
	"shirly.shop/app/internal/modules/shipping"
	"shirly.shop/app/pkg/view"
)

type Service struct {
	db     *gorm.DB
	repo   *Repo
	sink   EventSink
	logger *slog.Logger
}

func NewService(db *gorm.DB, sink EventSink, logger *slog.Logger) *Service {
	if sink == nil {
		sink = nopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, repo: NewRepo(db), sink: sink, logger: logger}
}

func (s *Service) Repo() *Repo { return s.repo }

type CreateInput struct {
	UserID         string
	Email          string
	Address        view.Address
	ShippingMethod string
	IdempotencyKey string
}

// CreateFromCart turns the user's cart into an order in one transaction: it snapshots
// the lines, deducts stock, prices shipping and empties the cart. A repeated call with
// the same idempotency key returns the existing order and reports existed=true.
func (s *Service) CreateFromCart(ctx context.Context, in CreateInput) (Order, bool, error) {
	key := strings.TrimSpace(in.IdempotencyKey)
	if key == "" {
		return Order{}, false, ErrMissingIdemKey
	}
	if strings.TrimSpace(in.Address.Line1) == "" {
		return Order{}, false, ErrMissingAddress
	}
	method := shipping.NormalizeMethod(in.ShippingMethod)

	if o, found, err := s.repo.FindByIdempotencyKey(ctx, in.UserID, key); err != nil {
		return Order{}, false, err
	} else if found {
		return o, true, nil
	}

	addr := in.Address
	addr.ID = ""
	addr.IsDefault = false
	addrJSON, err := json.Marshal(addr)
	if err != nil {
		return Order{}, false, err
	}

	var created Order
	err = inventory.WithTxRetry(ctx, s.db, 3, func(tx *gorm.DB) error {
		cartID, lines, err := cart.OrderableLinesInTx(ctx, tx, in.UserID)
		if err != nil {
			return err
		}

		stock := make([]inventory.Line, 0, len(lines))
		subtotal := 0
		for _, ln := range lines {
			stock = append(stock, inventory.Line{ProductID: ln.Product.ID, Qty: ln.Qty})
			subtotal += ln.Product.PriceCents * ln.Qty
		}
		if err := inventory.DeductInTx(ctx, tx, stock); err != nil {
			return err
		}

		shipCents, err := shipping.Quote(method, subtotal)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		created = Order{
			ID:              uuid.NewString(),
			UserID:          in.UserID,
			CustomerEmail:   strings.ToLower(strings.TrimSpace(in.Email)),
			Status:          StatusCreated,
			Currency:        lines[0].Product.Currency,
			SubtotalCents:   subtotal,
			ShippingCents:   shipCents,
			TotalCents:      subtotal + shipCents,
			ShippingMethod:  method,
			ShippingAddress: addrJSON,
			IdempotencyKey:  key,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := tx.WithContext(ctx).Create(&created).Error; err != nil {
			return err
		}

		items := make([]OrderItem, 0, len(lines))
		for _, ln := range lines {
			items = append(items, OrderItem{
				ID:             uuid.NewString(),
				OrderID:        created.ID,
				ProductID:      ln.Product.ID,
				ProductName:    ln.Product.Name,
				ProductSlug:    ln.Product.Slug,
				UnitPriceCents: ln.Product.PriceCents,
				Currency:       ln.Product.Currency,
				Quantity:       ln.Qty,
				LineTotalCents: ln.Product.PriceCents * ln.Qty,
				CreatedAt:      now,
			})
		}
		if err := tx.WithContext(ctx).Create(&items).Error; err != nil {
			return err
		}

		if err := RecordEventInTx(ctx, tx, created.ID, in.UserID, "create", "", StatusCreated, ""); err != nil {
			return err
		}
		return cart.ClearInTx(ctx, tx, cartID)
	})
	if err != nil {
		if isDup(err) {
			// lost a race against a concurrent request with the same key
			if o, found, ferr := s.repo.FindByIdempotencyKey(ctx, in.UserID, key); ferr == nil && found {
				return o, true, nil
			}
		}
		return Order{}, false, err
	}

	s.logger.InfoContext(ctx, "order created", "order_id", created.ID, "user_id", in.UserID, "total_cents", created.TotalCents)
	return created, false, nil
}

func (s *Service) ListByUser(ctx context.Context, in ListByUserParams) (ListByUserResult, error) {
	return s.repo.ListByUser(ctx, in)
}

// GetForUser returns the order if userID owns it; admins may read any order.
// Foreign orders look like missing ones.
func (s *Service) GetForUser(ctx context.Context, id, userID string, isAdmin bool) (Order, []OrderItem, error) {
	o, items, err := s.repo.GetWithItems(ctx, id)
	if err != nil {
		return Order{}, nil, err
	}
	if !isAdmin && o.UserID != userID {
		return Order{}, nil, ErrNotFound
	}
	return o, items, nil
}

// CancelByCustomer cancels the user's own order while it is still unpaid.
func (s *Service) CancelByCustomer(ctx context.Context, id, userID string) (Order, error) {
	var ch StatusChange
	err := inventory.WithTxRetry(ctx, s.db, 3, func(tx *gorm.DB) error {
		var err error
		ch, err = applyInTx(ctx, tx, transition{OrderID: id, Actor: userID, Action: ActionCancel, OwnerID: userID})
		return err
	})
	if errors.Is(err, ErrInvalidTransition) {
		return Order{}, ErrNotCancellable
	}
	if err != nil {
		return Order{}, err
	}
	s.sink.OrderStatusChanged(ctx, ch)
	return ch.Order, nil
}

// SetCheckoutSession remembers the hosted checkout the customer is sent to.
func (s *Service) SetCheckoutSession(ctx context.Context, orderID, ref, url string, expiresAt time.Time) error {
	exp := expiresAt.UTC()
	return s.db.WithContext(ctx).Model(&Order{}).
		Where("id = ? AND status = ?", orderID, StatusCreated).
		Updates(map[string]any{
			"checkout_session_ref": ref,
			"checkout_url":         url,
			"checkout_expires_at":  exp,
			"updated_at":           time.Now().UTC(),
		}).Error
}

// ListExpiredUnpaid returns ids of created orders whose checkout expired, or which never
// got one and are older than unpaidTTL.
func (s *Service) ListExpiredUnpaid(ctx context.Context, now time.Time, unpaidTTL time.Duration, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	now = now.UTC()
	var ids []string
	err := s.db.WithContext(ctx).Model(&Order{}).
		Where("status = ?", StatusCreated).
		Where("(checkout_expires_at IS NOT NULL AND checkout_expires_at < ?) OR (checkout_expires_at IS NULL AND created_at < ?)",
			now, now.Add(-unpaidTTL)).
		Order("created_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

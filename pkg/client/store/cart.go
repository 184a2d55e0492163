package store

import (
	"context"

	"shirly.shop/app/pkg/client"
	"shirly.shop/app/pkg/view"
)

// Totals is what the cart badge and summary show.
type Totals struct {
	Count         int
	SubtotalCents int
	Currency      string
}

type CartStore struct {
	state
	c    *client.Client
	page view.CartPage
}

func NewCartStore(c *client.Client, n Notifier) *CartStore {
	return &CartStore{state: state{notify: orNop(n)}, c: c}
}

// Sync replaces local lines with the server's.
func (s *CartStore) Sync(ctx context.Context) error {
	return s.apply(func() (view.CartPage, error) { return s.c.Cart(ctx) })
}

func (s *CartStore) Add(ctx context.Context, productID string, qty int) error {
	err := s.apply(func() (view.CartPage, error) { return s.c.AddToCart(ctx, productID, qty) })
	if err == nil {
		s.notify.Success("Added to cart.")
	}
	return err
}

func (s *CartStore) SetQty(ctx context.Context, productID string, qty int) error {
	return s.apply(func() (view.CartPage, error) { return s.c.SetCartQty(ctx, productID, qty) })
}

func (s *CartStore) Remove(ctx context.Context, productID string) error {
	return s.apply(func() (view.CartPage, error) { return s.c.RemoveFromCart(ctx, productID) })
}

func (s *CartStore) Clear(ctx context.Context) error {
	return s.apply(func() (view.CartPage, error) { return s.c.ClearCart(ctx) })
}

// Replace installs a page obtained elsewhere (e.g. a wishlist move).
func (s *CartStore) Replace(p view.CartPage) {
	s.mu.Lock()
	s.page = p
	s.mu.Unlock()
}

func (s *CartStore) apply(call func() (view.CartPage, error)) error {
	return s.run(func() error {
		p, err := call()
		if err != nil {
			return err
		}
		s.Replace(p)
		return nil
	})
}

func (s *CartStore) Lines() []view.CartItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]view.CartItem(nil), s.page.Items...)
}

// Totals recomputes from the local lines rather than trusting the last
// server totals; unavailable lines do not count.
func (s *CartStore) Totals() Totals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return computeTotals(s.page.Items)
}

func computeTotals(items []view.CartItem) Totals {
	var t Totals
	for _, it := range items {
		if !it.Available || it.Qty <= 0 {
			continue
		}
		if t.Currency == "" {
			t.Currency = it.Currency
		}
		t.Count += it.Qty
		t.SubtotalCents += it.Qty * it.UnitPriceCents
	}
	return t
}

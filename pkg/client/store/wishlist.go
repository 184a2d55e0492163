package store

import (
	"context"

	"shirly.shop/app/pkg/client"
	"shirly.shop/app/pkg/view"
)

type WishlistStore struct {
	state
	c     *client.Client
	cart  *CartStore
	items []view.WishlistItem
}

// NewWishlistStore takes the cart store that MoveToCart keeps in step; it may
// be nil.
func NewWishlistStore(c *client.Client, cart *CartStore, n Notifier) *WishlistStore {
	return &WishlistStore{state: state{notify: orNop(n)}, c: c, cart: cart}
}

func (s *WishlistStore) Sync(ctx context.Context) error {
	return s.apply(func() ([]view.WishlistItem, error) { return s.c.Wishlist(ctx) })
}

func (s *WishlistStore) Add(ctx context.Context, productID string) error {
	return s.apply(func() ([]view.WishlistItem, error) { return s.c.AddToWishlist(ctx, productID) })
}

func (s *WishlistStore) Remove(ctx context.Context, productID string) error {
	return s.apply(func() ([]view.WishlistItem, error) { return s.c.RemoveFromWishlist(ctx, productID) })
}

func (s *WishlistStore) MoveToCart(ctx context.Context, productID string) error {
	return s.run(func() error {
		res, err := s.c.MoveToCart(ctx, productID)
		if err != nil {
			return err
		}
		s.set(res.Wishlist)
		if s.cart != nil {
			s.cart.Replace(res.Cart)
		}
		s.notify.Success("Moved to cart.")
		return nil
	})
}

func (s *WishlistStore) apply(call func() ([]view.WishlistItem, error)) error {
	return s.run(func() error {
		items, err := call()
		if err != nil {
			return err
		}
		s.set(items)
		return nil
	})
}

func (s *WishlistStore) set(items []view.WishlistItem) {
	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
}

func (s *WishlistStore) Items() []view.WishlistItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]view.WishlistItem(nil), s.items...)
}

func (s *WishlistStore) Contains(productID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, it := range s.items {
		if it.Product.ID == productID {
			return true
		}
	}
	return false
}

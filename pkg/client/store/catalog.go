package store

import (
	"context"

	"shirly.shop/app/pkg/client"
	"shirly.shop/app/pkg/view"
)

// CatalogStore caches the product listing, product details, categories and
// the user's addresses.
type CatalogStore struct {
	state
	c *client.Client

	list       view.ProductList
	query      client.ProductQuery
	bySlug     map[string]view.Product
	categories []view.Category
	addresses  []view.Address
}

func NewCatalogStore(c *client.Client, n Notifier) *CatalogStore {
	return &CatalogStore{state: state{notify: orNop(n)}, c: c, bySlug: make(map[string]view.Product)}
}

func (s *CatalogStore) Search(ctx context.Context, q client.ProductQuery) (view.ProductList, error) {
	var out view.ProductList
	err := s.run(func() error {
		l, err := s.c.Products(ctx, q)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.list, s.query, out = l, q, l
		for _, p := range l.Items {
			s.bySlug[p.Slug] = p
		}
		s.mu.Unlock()
		return nil
	})
	return out, err
}

// Listing returns the last search result and the query that produced it.
func (s *CatalogStore) Listing() (view.ProductList, client.ProductQuery) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list, s.query
}

// Product answers from cache when the listing already carried it.
func (s *CatalogStore) Product(ctx context.Context, slug string) (view.Product, error) {
	s.mu.RLock()
	p, ok := s.bySlug[slug]
	s.mu.RUnlock()
	if ok {
		return p, nil
	}
	err := s.run(func() error {
		var err error
		p, err = s.c.Product(ctx, slug)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.bySlug[slug] = p
		s.mu.Unlock()
		return nil
	})
	return p, err
}

// Categories are fetched once per store.
func (s *CatalogStore) Categories(ctx context.Context) ([]view.Category, error) {
	s.mu.RLock()
	cached := s.categories
	s.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}
	var out []view.Category
	err := s.run(func() error {
		cs, err := s.c.Categories(ctx)
		if err != nil {
			return err
		}
		if cs == nil {
			cs = []view.Category{}
		}
		s.mu.Lock()
		s.categories, out = cs, cs
		s.mu.Unlock()
		return nil
	})
	return out, err
}

func (s *CatalogStore) SyncAddresses(ctx context.Context) error {
	return s.run(func() error {
		as, err := s.c.Addresses(ctx)
		if err != nil {
			return err
		}
		s.setAddresses(as)
		return nil
	})
}

func (s *CatalogStore) AddAddress(ctx context.Context, in view.AddressRequest) error {
	return s.run(func() error {
		if _, err := s.c.CreateAddress(ctx, in); err != nil {
			return err
		}
		as, err := s.c.Addresses(ctx)
		if err != nil {
			return err
		}
		s.setAddresses(as)
		s.notify.Success("Address saved.")
		return nil
	})
}

func (s *CatalogStore) setAddresses(as []view.Address) {
	s.mu.Lock()
	s.addresses = as
	s.mu.Unlock()
}

func (s *CatalogStore) Addresses() []view.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]view.Address(nil), s.addresses...)
}

// DefaultAddress is the address checkout uses when none is chosen.
func (s *CatalogStore) DefaultAddress() (view.Address, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.addresses {
		if a.IsDefault {
			return a, true
		}
	}
	return view.Address{}, false
}

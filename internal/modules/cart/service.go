package cart

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"shirly.shop/app/internal/modules/products"
	"shirly.shop/app/pkg/view"
)

type Service struct {
	db       *gorm.DB
	repo     *Repo
	products *products.Repo
}

func NewService(db *gorm.DB, productsRepo *products.Repo) *Service {
	return &Service{db: db, repo: NewRepo(db), products: productsRepo}
}

// Line is an orderable cart line.
type Line struct {
	Product products.Product
	Qty     int
}

func (s *Service) Get(ctx context.Context, userID string) (view.CartPage, error) {
	if userID == "" {
		return view.CartPage{}, errors.New("missing userID")
	}
	c, err := s.repo.GetOrCreateUserCart(ctx, userID)
	if err != nil {
		return view.CartPage{}, err
	}
	return s.build(ctx, c.ID)
}

func (s *Service) Add(ctx context.Context, userID, productID string, qty int) (view.CartPage, error) {
	if qty == 0 {
		qty = 1
	}
	if qty < 1 || qty > MaxQty {
		return view.CartPage{}, ErrInvalidQty
	}

	p, err := s.products.Get(ctx, productID)
	if errors.Is(err, products.ErrNotFound) {
		return view.CartPage{}, ErrProductUnavailable
	}
	if err != nil {
		return view.CartPage{}, err
	}
	if !p.Available() {
		return view.CartPage{}, ErrProductUnavailable
	}

	c, err := s.repo.GetOrCreateUserCart(ctx, userID)
	if err != nil {
		return view.CartPage{}, err
	}

	cur, err := s.cartCurrency(ctx, c.ID, productID)
	if err != nil {
		return view.CartPage{}, err
	}
	if cur != "" && !strings.EqualFold(cur, p.Currency) {
		return view.CartPage{}, ErrMixedCurrency
	}

	existing, found, err := s.repo.Item(ctx, c.ID, productID)
	if err != nil {
		return view.CartPage{}, err
	}
	if found {
		err = s.repo.UpdateItemQty(ctx, c.ID, productID, clampQty(existing.Quantity+qty, p.Stock))
	} else {
		err = s.repo.AddItem(ctx, c.ID, productID, clampQty(qty, p.Stock))
	}
	if err != nil {
		return view.CartPage{}, err
	}
	_ = s.repo.Touch(ctx, c.ID)
	return s.build(ctx, c.ID)
}

// SetQty replaces the quantity of a line; zero or less removes it.
func (s *Service) SetQty(ctx context.Context, userID, productID string, qty int) (view.CartPage, error) {
	if qty > MaxQty {
		return view.CartPage{}, ErrInvalidQty
	}
	c, err := s.repo.GetOrCreateUserCart(ctx, userID)
	if err != nil {
		return view.CartPage{}, err
	}
	if _, found, err := s.repo.Item(ctx, c.ID, productID); err != nil {
		return view.CartPage{}, err
	} else if !found {
		return view.CartPage{}, ErrItemNotFound
	}

	if qty > 0 {
		p, err := s.products.Get(ctx, productID)
		if err != nil && !errors.Is(err, products.ErrNotFound) {
			return view.CartPage{}, err
		}
		if err == nil && p.Stock > 0 {
			qty = clampQty(qty, p.Stock)
		}
	}
	if err := s.repo.UpdateItemQty(ctx, c.ID, productID, qty); err != nil {
		return view.CartPage{}, err
	}
	_ = s.repo.Touch(ctx, c.ID)
	return s.build(ctx, c.ID)
}

func (s *Service) Remove(ctx context.Context, userID, productID string) (view.CartPage, error) {
	c, err := s.repo.GetOrCreateUserCart(ctx, userID)
	if err != nil {
		return view.CartPage{}, err
	}
	if err := s.repo.RemoveItem(ctx, c.ID, productID); err != nil {
		return view.CartPage{}, err
	}
	return s.build(ctx, c.ID)
}

func (s *Service) Clear(ctx context.Context, userID string) (view.CartPage, error) {
	c, err := s.repo.GetOrCreateUserCart(ctx, userID)
	if err != nil {
		return view.CartPage{}, err
	}
	if err := s.repo.ClearCart(ctx, c.ID); err != nil {
		return view.CartPage{}, err
	}
	return s.build(ctx, c.ID)
}

// OrderableLinesInTx reads the user's cart inside tx and returns the lines that can be
// ordered. Unavailable lines are skipped; an empty result is ErrEmpty.
func OrderableLinesInTx(ctx context.Context, tx *gorm.DB, userID string) (string, []Line, error) {
	var c Cart
	if err := tx.WithContext(ctx).First(&c, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrEmpty
		}
		return "", nil, err
	}
	repo := NewRepo(tx)
	items, err := repo.Items(ctx, c.ID)
	if err != nil {
		return "", nil, err
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	byID, err := products.NewRepo(tx).GetMany(ctx, ids)
	if err != nil {
		return "", nil, err
	}

	lines := make([]Line, 0, len(items))
	currency := ""
	for _, it := range items {
		p, ok := byID[it.ProductID]
		if !ok || p.Status != products.StatusActive {
			continue
		}
		if currency == "" {
			currency = p.Currency
		} else if !strings.EqualFold(currency, p.Currency) {
			return "", nil, ErrMixedCurrency
		}
		lines = append(lines, Line{Product: p, Qty: it.Quantity})
	}
	if len(lines) == 0 {
		return "", nil, ErrEmpty
	}
	return c.ID, lines, nil
}

func ClearInTx(ctx context.Context, tx *gorm.DB, cartID string) error {
	return NewRepo(tx).ClearCart(ctx, cartID)
}

func (s *Service) cartCurrency(ctx context.Context, cartID, exceptProductID string) (string, error) {
	items, err := s.repo.Items(ctx, cartID)
	if err != nil {
		return "", err
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it.ProductID != exceptProductID {
			ids = append(ids, it.ProductID)
		}
	}
	byID, err := s.products.GetMany(ctx, ids)
	if err != nil {
		return "", err
	}
	for _, id := range ids {
		if p, ok := byID[id]; ok && p.Status == products.StatusActive {
			return p.Currency, nil
		}
	}
	return "", nil
}

func (s *Service) build(ctx context.Context, cartID string) (view.CartPage, error) {
	items, err := s.repo.Items(ctx, cartID)
	if err != nil {
		return view.CartPage{}, err
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	byID, err := s.products.GetMany(ctx, ids)
	if err != nil {
		return view.CartPage{}, err
	}

	rows := make([]row, 0, len(items))
	for _, it := range items {
		p, ok := byID[it.ProductID]
		if !ok {
			// product row is gone entirely; drop the dangling line
			_ = s.repo.RemoveItem(ctx, cartID, it.ProductID)
			continue
		}
		rows = append(rows, row{product: p, qty: it.Quantity})
	}
	return buildPage(rows), nil
}

type row struct {
	product products.Product
	qty     int
}

// buildPage recomputes totals from current product prices. Lines that cannot be
// ordered stay visible but do not count towards the totals.
func buildPage(rows []row) view.CartPage {
	vm := view.CartPage{Items: make([]view.CartItem, 0, len(rows))}

	for _, r := range rows {
		if r.qty <= 0 {
			continue
		}
		p := r.product
		available := p.Status == products.StatusActive && p.Stock >= r.qty
		if available && vm.Currency != "" && !strings.EqualFold(vm.Currency, p.Currency) {
			available = false
		}

		line := p.PriceCents * r.qty
		vm.Items = append(vm.Items, view.CartItem{
			ProductID:      p.ID,
			ProductName:    p.Name,
			ProductSlug:    p.Slug,
			ImageURL:       p.PrimaryImageURL(),
			Qty:            r.qty,
			UnitPriceCents: p.PriceCents,
			LineTotalCents: line,
			Currency:       p.Currency,
			Stock:          p.Stock,
			Available:      available,
		})
		if !available {
			continue
		}
		if vm.Currency == "" {
			vm.Currency = p.Currency
		}
		vm.Count += r.qty
		vm.SubtotalCents += line
	}

	vm.TotalCents = vm.SubtotalCents
	return vm
}

func clampQty(qty, stock int) int {
	if qty > MaxQty {
		qty = MaxQty
	}
	if stock > 0 && qty > stock {
		qty = stock
	}
	if qty < 1 {
		qty = 1
	}
	return qty
}

package products

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"shirly.shop/app/internal/shared/slug"
	"shirly.shop/app/internal/storage"
)

type Service struct {
	repo    *Repo
	storage storage.Storage
	logger  *slog.Logger
}

func NewService(repo *Repo, st storage.Storage, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, storage: st, logger: logger}
}

func (s *Service) Repo() *Repo { return s.repo }

type Page struct {
	Items    []Product
	Total    int64
	Page     int
	PageSize int
}

func (s *Service) List(ctx context.Context, f ListFilter) (Page, error) {
	f.normalize()
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return Page{}, err
	}
	return Page{Items: items, Total: total, Page: f.Page, PageSize: f.PageSize}, nil
}

func (s *Service) GetBySlug(ctx context.Context, slug string) (Product, error) {
	return s.repo.GetBySlug(ctx, slug, true)
}

// GetForAdmin resolves either an id or a slug regardless of status.
func (s *Service) GetForAdmin(ctx context.Context, idOrSlug string) (Product, error) {
	p, err := s.repo.Get(ctx, idOrSlug)
	if errors.Is(err, ErrNotFound) {
		return s.repo.GetBySlug(ctx, idOrSlug, false)
	}
	return p, err
}

func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

type ProductInput struct {
	Name         string
	Slug         string
	Description  string
	PriceCents   int
	Currency     string
	Stock        int
	Status       string
	CategorySlug string
}

func (s *Service) Create(ctx context.Context, in ProductInput) (Product, error) {
	if in.PriceCents <= 0 {
		return Product{}, ErrInvalidPrice
	}
	if in.Stock < 0 {
		return Product{}, ErrInvalidStock
	}
	if in.Status == "" {
		in.Status = StatusDraft
	}
	if !validStatus(in.Status) {
		return Product{}, ErrInvalidStatus
	}

	sl, err := s.uniqueSlug(ctx, in.Slug, in.Name, "")
	if err != nil {
		return Product{}, err
	}

	p := Product{
		Name:        strings.TrimSpace(in.Name),
		Slug:        sl,
		Description: strings.TrimSpace(in.Description),
		PriceCents:  in.PriceCents,
		Currency:    currencyOr(in.Currency),
		Stock:       in.Stock,
		Status:      in.Status,
	}
	if in.CategorySlug != "" {
		c, err := s.repo.CategoryBySlug(ctx, in.CategorySlug)
		if err != nil {
			return Product{}, err
		}
		p.CategoryID = &c.ID
	}

	if err := s.repo.Create(ctx, &p); err != nil {
		return Product{}, err
	}
	s.logger.InfoContext(ctx, "product created", "product_id", p.ID, "slug", p.Slug)
	return s.repo.Get(ctx, p.ID)
}

type ProductPatch struct {
	Name         *string
	Slug         *string
	Description  *string
	PriceCents   *int
	Currency     *string
	Stock        *int
	Status       *string
	CategorySlug *string
}

func (s *Service) Update(ctx context.Context, id string, in ProductPatch) (Product, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return Product{}, err
	}

	fields := map[string]any{}
	if in.Name != nil {
		fields["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Slug != nil {
		sl := slug.FromName(*in.Slug, "")
		if sl == "" {
			return Product{}, ErrSlugTaken
		}
		taken, err := s.repo.SlugExists(ctx, sl, id)
		if err != nil {
			return Product{}, err
		}
		if taken {
			return Product{}, ErrSlugTaken
		}
		fields["slug"] = sl
	}
	if in.Description != nil {
		fields["description"] = strings.TrimSpace(*in.Description)
	}
	if in.PriceCents != nil {
		if *in.PriceCents <= 0 {
			return Product{}, ErrInvalidPrice
		}
		fields["price_cents"] = *in.PriceCents
	}
	if in.Currency != nil {
		fields["currency"] = currencyOr(*in.Currency)
	}
	if in.Stock != nil {
		if *in.Stock < 0 {
			return Product{}, ErrInvalidStock
		}
		fields["stock"] = *in.Stock
	}
	if in.Status != nil {
		if !validStatus(*in.Status) {
			return Product{}, ErrInvalidStatus
		}
		fields["status"] = *in.Status
	}
	if in.CategorySlug != nil {
		if *in.CategorySlug == "" {
			fields["category_id"] = nil
		} else {
			c, err := s.repo.CategoryBySlug(ctx, *in.CategorySlug)
			if err != nil {
				return Product{}, err
			}
			fields["category_id"] = c.ID
		}
	}

	if err := s.repo.Update(ctx, id, fields); err != nil {
		return Product{}, err
	}
	return s.repo.Get(ctx, id)
}

// Archive hides the product from the storefront. Rows stay for order history.
func (s *Service) Archive(ctx context.Context, id string) error {
	return s.repo.Update(ctx, id, map[string]any{"status": StatusArchived})
}

func (s *Service) AddImage(ctx context.Context, productID string, r io.Reader, in storage.PutInput) (Image, error) {
	if _, err := s.repo.Get(ctx, productID); err != nil {
		return Image{}, err
	}
	put, err := s.storage.Put(ctx, r, in)
	if err != nil {
		return Image{}, err
	}
	im, err := s.repo.AddImage(ctx, productID, put.Key, put.URL)
	if err != nil {
		_ = s.storage.Delete(ctx, put.Key)
		return Image{}, err
	}
	return im, nil
}

func (s *Service) DeleteImage(ctx context.Context, productID, imageID string) error {
	im, err := s.repo.GetImage(ctx, productID, imageID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteImage(ctx, productID, imageID); err != nil {
		return err
	}
	if err := s.storage.Delete(ctx, im.StorageKey); err != nil {
		s.logger.WarnContext(ctx, "image blob delete failed", "key", im.StorageKey, "err", err)
	}
	return nil
}

func (s *Service) CreateCategory(ctx context.Context, name, slugIn string) (Category, error) {
	sl := slug.FromName(slugIn, "")
	if sl == "" {
		sl = slug.FromName(name, "category")
	}
	c := Category{Name: strings.TrimSpace(name), Slug: sl}
	if err := s.repo.CreateCategory(ctx, &c); err != nil {
		return Category{}, err
	}
	return c, nil
}

func (s *Service) DeleteCategory(ctx context.Context, slugOrID string) error {
	c, err := s.repo.CategoryBySlug(ctx, slugOrID)
	if errors.Is(err, ErrCategoryNotFound) {
		return s.repo.DeleteCategory(ctx, slugOrID)
	}
	if err != nil {
		return err
	}
	return s.repo.DeleteCategory(ctx, c.ID)
}

func (s *Service) uniqueSlug(ctx context.Context, requested, name, exceptID string) (string, error) {
	base := slug.FromName(requested, "")
	explicit := base != ""
	if !explicit {
		base = slug.FromName(name, "product")
	}
	candidate := base
	for i := 2; i < 50; i++ {
		taken, err := s.repo.SlugExists(ctx, candidate, exceptID)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		if explicit {
			return "", ErrSlugTaken
		}
		candidate = slug.WithSuffix(base, strconv.Itoa(i))
	}
	return "", ErrSlugTaken
}

func validStatus(s string) bool {
	return s == StatusActive || s == StatusDraft || s == StatusArchived
}

func currencyOr(c string) string {
	c = strings.ToUpper(strings.TrimSpace(c))
	if len(c) != 3 {
		return "USD"
	}
	return c
}

package products

import "shirly.shop/app/pkg/view"

func ToView(p Product) view.Product {
	out := view.Product{
		ID:          p.ID,
		Slug:        p.Slug,
		Name:        p.Name,
		Description: p.Description,
		PriceCents:  p.PriceCents,
		Currency:    p.Currency,
		Stock:       p.Stock,
		Status:      p.Status,
		Available:   p.Available(),
		RatingAvg:   p.RatingAvg,
		RatingCount: p.RatingCount,
		Images:      make([]view.ProductImage, 0, len(p.Images)),
		CreatedAt:   p.CreatedAt,
	}
	if p.Category != nil {
		c := CategoryToView(*p.Category)
		out.Category = &c
	}
	for _, img := range p.Images {
		out.Images = append(out.Images, view.ProductImage{ID: img.ID, URL: img.URL, Position: img.Position})
	}
	return out
}

func CategoryToView(c Category) view.Category {
	return view.Category{ID: c.ID, Name: c.Name, Slug: c.Slug}
}

func PageToView(pg Page) view.ProductList {
	items := make([]view.Product, 0, len(pg.Items))
	for _, p := range pg.Items {
		items = append(items, ToView(p))
	}
	return view.ProductList{Items: items, PageMeta: view.NewPageMeta(pg.Page, pg.PageSize, pg.Total)}
}

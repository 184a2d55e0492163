package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"shirly.shop/app/internal/modules/products"
	"shirly.shop/app/internal/shared/apperr"
	"shirly.shop/app/internal/storage"
	"shirly.shop/app/pkg/view"
)

type ProductsHandler struct {
	Products *products.Service
}

func NewProductsHandler(svc *products.Service) *ProductsHandler {
	return &ProductsHandler{Products: svc}
}

func optCents(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

func listFilter(c *gin.Context) products.ListFilter {
	page, size := pageParams(c, 24)
	return products.ListFilter{
		Query:         c.Query("q"),
		CategorySlug:  c.Query("category"),
		MinPriceCents: optCents(c.Query("min_price")),
		MaxPriceCents: optCents(c.Query("max_price")),
		InStockOnly:   c.Query("in_stock") == "1" || c.Query("in_stock") == "true",
		Sort:          products.Sort(c.DefaultQuery("sort", string(products.SortNewest))),
		Page:          page,
		PageSize:      size,
	}
}

// GET /api/products?q=&category=&min_price=&max_price=&in_stock=&sort=&page=
func (h *ProductsHandler) List(c *gin.Context) {
	pg, err := h.Products.List(c.Request.Context(), listFilter(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, products.PageToView(pg))
}

// GET /api/products/:slug
func (h *ProductsHandler) Show(c *gin.Context) {
	p, err := h.Products.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, products.ToView(p))
}

// GET /api/categories
func (h *ProductsHandler) Categories(c *gin.Context) {
	cs, err := h.Products.ListCategories(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]view.Category, 0, len(cs))
	for _, cat := range cs {
		out = append(out, products.CategoryToView(cat))
	}
	ok(c, out)
}

// GET /api/admin/products lists every status unless ?status= narrows it.
func (h *ProductsHandler) AdminList(c *gin.Context) {
	f := listFilter(c)
	f.Statuses = []string{products.StatusActive, products.StatusDraft, products.StatusArchived}
	if s := c.Query("status"); s != "" {
		f.Statuses = strings.Split(s, ",")
	}
	pg, err := h.Products.List(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, products.PageToView(pg))
}

// GET /api/admin/products/:id accepts an id or a slug.
func (h *ProductsHandler) AdminShow(c *gin.Context) {
	p, err := h.Products.GetForAdmin(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, products.ToView(p))
}

// POST /api/admin/products
func (h *ProductsHandler) Create(c *gin.Context) {
	var req view.ProductRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.Products.Create(c.Request.Context(), products.ProductInput(req))
	if err != nil {
		fail(c, err)
		return
	}
	created(c, products.ToView(p))
}

// PATCH /api/admin/products/:id
func (h *ProductsHandler) Update(c *gin.Context) {
	var req view.ProductPatchRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.Products.Update(c.Request.Context(), c.Param("id"), products.ProductPatch(req))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, products.ToView(p))
}

// DELETE /api/admin/products/:id archives; order history keeps referencing it.
func (h *ProductsHandler) Archive(c *gin.Context) {
	if err := h.Products.Archive(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	noContent(c)
}

// POST /api/admin/products/:id/images (multipart field "image")
func (h *ProductsHandler) UploadImage(c *gin.Context) {
	fh, err := c.FormFile("image")
	if err != nil {
		fail(c, apperr.InvalidErr("image file required", map[string]string{"image": "This field is required."}))
		return
	}
	if fh.Size > storage.MaxImageBytes {
		fail(c, apperr.InvalidErr("image too large", map[string]string{"image": "Max 5 MB."}))
		return
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, err)
		return
	}
	defer f.Close()

	img, err := h.Products.AddImage(c.Request.Context(), c.Param("id"), f, storage.PutInput{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
	})
	if err != nil {
		fail(c, err)
		return
	}
	created(c, view.ProductImage{ID: img.ID, URL: img.URL, Position: img.Position})
}

// DELETE /api/admin/products/:id/images/:imageId
func (h *ProductsHandler) DeleteImage(c *gin.Context) {
	if err := h.Products.DeleteImage(c.Request.Context(), c.Param("id"), c.Param("imageId")); err != nil {
		fail(c, err)
		return
	}
	noContent(c)
}

// POST /api/admin/categories
func (h *ProductsHandler) CreateCategory(c *gin.Context) {
	var req view.CategoryRequest
	if !bindJSON(c, &req) {
		return
	}
	cat, err := h.Products.CreateCategory(c.Request.Context(), req.Name, req.Slug)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, products.CategoryToView(cat))
}

// DELETE /api/admin/categories/:slug
func (h *ProductsHandler) DeleteCategory(c *gin.Context) {
	if err := h.Products.DeleteCategory(c.Request.Context(), c.Param("slug")); err != nil {
		fail(c, err)
		return
	}
	noContent(c)
}

// Package admintable is the client-side admin order grid: filter, sort and
// paginate a loaded set of orders, select rows, and apply bulk transitions.
package admintable

import (
	"context"
	"slices"
	"strings"
	"time"

	"shirly.shop/app/pkg/client"
	"shirly.shop/app/pkg/view"
)

type SortField string

const (
	SortCreatedAt SortField = "created_at"
	SortTotal     SortField = "total"
	SortStatus    SortField = "status"
	SortCustomer  SortField = "customer"
)

// Filter narrows the rows. Zero fields match everything; To is exclusive.
type Filter struct {
	Query    string
	Statuses []string
	From     time.Time
	To       time.Time
	MinTotal *int
	MaxTotal *int
}

func (f Filter) match(o view.AdminOrder) bool {
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, o.Status) {
		return false
	}
	if !f.From.IsZero() && o.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !o.CreatedAt.Before(f.To) {
		return false
	}
	if f.MinTotal != nil && o.TotalCents < *f.MinTotal {
		return false
	}
	if f.MaxTotal != nil && o.TotalCents > *f.MaxTotal {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		return strings.HasPrefix(strings.ToLower(o.ID), q) ||
			strings.Contains(strings.ToLower(o.CustomerEmail), q) ||
			strings.Contains(strings.ToLower(o.CustomerName), q)
	}
	return true
}

type Sort struct {
	Field SortField
	Desc  bool
}

// Bulker applies one action to many orders; *client.Client is one.
type Bulker interface {
	BulkTransition(ctx context.Context, in view.BulkRequest) (view.BulkResponse, error)
}

type Page struct {
	Rows       []view.AdminOrder
	Number     int
	TotalPages int
	Total      int
}

type Table struct {
	rows     []view.AdminOrder
	filter   Filter
	sort     Sort
	selected map[string]bool
	view     []view.AdminOrder
}

func New(rows []view.AdminOrder) *Table {
	t := &Table{
		rows:     slices.Clone(rows),
		sort:     Sort{Field: SortCreatedAt, Desc: true},
		selected: map[string]bool{},
	}
	t.refresh()
	return t
}

// Fetch loads every page the server returns for q.
func Fetch(ctx context.Context, c *client.Client, q client.AdminOrderQuery) ([]view.AdminOrder, error) {
	if q.PageSize == 0 {
		q.PageSize = 100
	}
	var out []view.AdminOrder
	for page := 1; ; page++ {
		q.Page = page
		l, err := c.AdminOrders(ctx, q)
		if err != nil {
			return nil, err
		}
		out = append(out, l.Items...)
		if page >= l.TotalPages || len(l.Items) == 0 {
			return out, nil
		}
	}
}

func (t *Table) SetFilter(f Filter) {
	t.filter = f
	t.refresh()
}

func (t *Table) SetSort(s Sort) {
	if s.Field == "" {
		s.Field = SortCreatedAt
	}
	t.sort = s
	t.refresh()
}

// Len is the number of rows passing the filter.
func (t *Table) Len() int { return len(t.view) }

func (t *Table) refresh() {
	t.view = t.view[:0]
	for _, o := range t.rows {
		if t.filter.match(o) {
			t.view = append(t.view, o)
		}
	}
	cmp := compareBy(t.sort.Field)
	slices.SortStableFunc(t.view, func(a, b view.AdminOrder) int {
		c := cmp(a, b)
		if c == 0 {
			c = strings.Compare(a.ID, b.ID)
		}
		if t.sort.Desc {
			return -c
		}
		return c
	})
}

func compareBy(f SortField) func(a, b view.AdminOrder) int {
	switch f {
	case SortTotal:
		return func(a, b view.AdminOrder) int { return a.TotalCents - b.TotalCents }
	case SortStatus:
		return func(a, b view.AdminOrder) int { return strings.Compare(a.Status, b.Status) }
	case SortCustomer:
		return func(a, b view.AdminOrder) int {
			return strings.Compare(strings.ToLower(customer(a)), strings.ToLower(customer(b)))
		}
	default:
		return func(a, b view.AdminOrder) int { return a.CreatedAt.Compare(b.CreatedAt) }
	}
}

func customer(o view.AdminOrder) string {
	if o.CustomerName != "" {
		return o.CustomerName
	}
	return o.CustomerEmail
}

// Page returns the n-th page (1-based, clamped to the valid range).
func (t *Table) Page(n, size int) Page {
	if size <= 0 {
		size = 30
	}
	pages := view.PagesTotal(int64(len(t.view)), size)
	n = max(1, min(n, pages))
	start := min((n-1)*size, len(t.view))
	end := min(start+size, len(t.view))
	return Page{
		Rows:       slices.Clone(t.view[start:end]),
		Number:     n,
		TotalPages: pages,
		Total:      len(t.view),
	}
}

func (t *Table) Select(id string, on bool) {
	if on {
		t.selected[id] = true
	} else {
		delete(t.selected, id)
	}
}

func (t *Table) SelectAllOnPage(n, size int) {
	for _, o := range t.Page(n, size).Rows {
		t.selected[o.ID] = true
	}
}

func (t *Table) Clear() { clear(t.selected) }

func (t *Table) IsSelected(id string) bool { return t.selected[id] }

// Selected returns the selected ids in table order; rows hidden by the filter
// are not included.
func (t *Table) Selected() []string {
	var ids []string
	for _, o := range t.view {
		if t.selected[o.ID] {
			ids = append(ids, o.ID)
		}
	}
	return ids
}

// BulkApply runs action on the selected rows. Rows that succeeded take their
// new status and leave the selection; failed rows stay selected.
func (t *Table) BulkApply(ctx context.Context, b Bulker, action, note string) ([]view.BulkResult, error) {
	ids := t.Selected()
	if len(ids) == 0 {
		return nil, nil
	}
	res, err := b.BulkTransition(ctx, view.BulkRequest{IDs: ids, Action: action, Note: note})
	if err != nil {
		return nil, err
	}
	status := make(map[string]string, len(res.Results))
	for _, r := range res.Results {
		if r.OK {
			status[r.ID] = r.Status
			delete(t.selected, r.ID)
		}
	}
	for i := range t.rows {
		if s, ok := status[t.rows[i].ID]; ok {
			t.rows[i].Status = s
		}
	}
	t.refresh()
	return res.Results, nil
}

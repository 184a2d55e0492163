package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"shirly.shop/app/internal/http/middleware"
	"shirly.shop/app/internal/modules/auth"
	"shirly.shop/app/internal/modules/orders"
	"shirly.shop/app/internal/modules/payments"
	"shirly.shop/app/internal/modules/shipping"
	"shirly.shop/app/internal/shared/apperr"
	"shirly.shop/app/pkg/view"
)

const dayLayout = "2006-01-02"

// AdminOrdersHandler serves the back-office order desk.
type AdminOrdersHandler struct {
	Orders    *orders.AdminService
	Payments  *payments.Service
	Refunds   *payments.RefundService
	Users     *auth.Service
	Shipments *shipping.Repo
}

// GET /api/admin/orders?q=&status=paid,shipped&from=&to=&min_total=&max_total=&sort=&desc=&page=&page_size=
func (h *AdminOrdersHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	params, fields := adminListParams(c)
	if len(fields) > 0 {
		middleware.Fail(c, apperr.InvalidErr("invalid filter", fields))
		return
	}

	res, err := h.Orders.List(ctx, params)
	if err != nil {
		fail(c, err)
		return
	}

	ids := make([]string, 0, len(res.Items))
	for _, o := range res.Items {
		ids = append(ids, o.UserID)
	}
	names, err := h.Users.DisplayNames(ctx, ids)
	if err != nil {
		fail(c, err)
		return
	}

	out := view.AdminOrderList{
		Items:    make([]view.AdminOrder, 0, len(res.Items)),
		PageMeta: view.NewPageMeta(res.Page, res.PageSize, res.Total),
	}
	for _, o := range res.Items {
		out.Items = append(out.Items, orders.AdminToView(o, names[o.UserID]))
	}
	ok(c, out)
}

func adminListParams(c *gin.Context) (orders.AdminListParams, map[string]string) {
	page, size := pageParams(c, 30)
	p := orders.AdminListParams{
		Q:        strings.TrimSpace(c.Query("q")),
		Sort:     c.Query("sort"),
		Desc:     c.Query("desc") == "1" || c.Query("desc") == "true",
		Page:     page,
		PageSize: size,
	}
	for _, s := range strings.Split(c.Query("status"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			p.Statuses = append(p.Statuses, s)
		}
	}

	fields := map[string]string{}
	if v := c.Query("from"); v != "" {
		t, err := parseBound(v, false)
		if err != nil {
			fields["from"] = "must be YYYY-MM-DD or RFC3339"
		} else {
			p.From = &t
		}
	}
	if v := c.Query("to"); v != "" {
		t, err := parseBound(v, true)
		if err != nil {
			fields["to"] = "must be YYYY-MM-DD or RFC3339"
		} else {
			p.To = &t
		}
	}
	if v := c.Query("min_total"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			fields["min_total"] = "must be a non-negative amount in cents"
		} else {
			p.MinTotal = &n
		}
	}
	if v := c.Query("max_total"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			fields["max_total"] = "must be a non-negative amount in cents"
		} else {
			p.MaxTotal = &n
		}
	}
	return p, fields
}

// parseBound accepts a day or a timestamp. A day used as an upper bound covers
// the whole day.
func parseBound(s string, upper bool) (time.Time, error) {
	if t, err := time.Parse(dayLayout, s); err == nil {
		if upper {
			t = t.AddDate(0, 0, 1)
		}
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	return t.UTC(), err
}

// GET /api/admin/orders/:id
func (h *AdminOrdersHandler) Detail(c *gin.Context) {
	ctx := c.Request.Context()
	d, err := h.Orders.Detail(ctx, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	pays, refunds, err := h.Payments.ListForOrder(ctx, d.Order.ID)
	if err != nil {
		fail(c, err)
		return
	}
	shipments, err := h.Shipments.ListByOrder(ctx, d.Order.ID)
	if err != nil {
		fail(c, err)
		return
	}
	names, err := h.Users.DisplayNames(ctx, []string{d.Order.UserID})
	if err != nil {
		fail(c, err)
		return
	}

	ao := orders.AdminToView(d.Order, names[d.Order.UserID])
	ao.Order = orders.ToView(d.Order, d.Items, shipments)
	ok(c, view.AdminOrderDetail{
		Order:    ao,
		Events:   orders.EventsToView(d.Events),
		Ledger:   orders.LedgerToView(d.Financial),
		Payments: payments.PaymentsToView(pays),
		Refunds:  payments.RefundsToView(refunds),
	})
}

// POST /api/admin/orders/:id/:action  (ship|deliver|cancel)
func (h *AdminOrdersHandler) Transition(c *gin.Context) {
	var req view.TransitionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	action := c.Param("action")
	switch action {
	case orders.ActionShip, orders.ActionDeliver, orders.ActionCancel:
	default:
		middleware.Fail(c, apperr.NotFoundErr("unknown action"))
		return
	}

	o, err := h.Orders.Transition(c.Request.Context(), orders.TransitionInput{
		OrderID:        c.Param("id"),
		ActorUserID:    middleware.MustUser(c).User.ID,
		Action:         action,
		Note:           req.Note,
		Carrier:        req.Carrier,
		TrackingNumber: req.TrackingNumber,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, orders.AdminToView(o, ""))
}

// POST /api/admin/orders/bulk
func (h *AdminOrdersHandler) Bulk(c *gin.Context) {
	var req view.BulkRequest
	if !bindJSON(c, &req) {
		return
	}
	results := h.Orders.BulkTransition(c.Request.Context(), req.IDs, req.Action, middleware.MustUser(c).User.ID, req.Note)

	out := view.BulkResponse{Results: make([]view.BulkResult, 0, len(results))}
	for _, r := range results {
		out.Results = append(out.Results, view.BulkResult{
			ID:     r.OrderID,
			OK:     r.Err == nil,
			Status: r.Status,
			Error:  orders.PublicError(r.Err),
		})
	}
	ok(c, out)
}

// POST /api/admin/orders/:id/refund
func (h *AdminOrdersHandler) Refund(c *gin.Context) {
	var req view.RefundRequest
	if !bindJSON(c, &req) {
		return
	}
	key := idempotencyKey(c, req.IdempotencyKey)
	if key == "" {
		fail(c, orders.ErrMissingIdemKey)
		return
	}
	res, err := h.Refunds.RefundOrder(c.Request.Context(), payments.RefundOrderInput{
		OrderID:        c.Param("id"),
		ActorUserID:    middleware.MustUser(c).User.ID,
		IdempotencyKey: key,
		AmountCents:    req.AmountCents,
		Reason:         req.Reason,
	})
	if err != nil {
		fail(c, err)
		return
	}
	out := view.RefundResult{
		RefundID:    res.RefundID,
		Status:      res.Status,
		AmountCents: res.AmountCents,
		Idempotent:  res.Idempotent,
	}
	if res.Idempotent {
		ok(c, out)
		return
	}
	created(c, out)
}

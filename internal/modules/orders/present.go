package orders

import (
	"shirly.shop/app/internal/modules/shipping"
	"shirly.shop/app/pkg/view"
)

func ToView(o Order, items []OrderItem, shipments []shipping.Shipment) view.Order {
	vo := view.Order{
		ID:             o.ID,
		UserID:         o.UserID,
		Status:         o.Status,
		Currency:       o.Currency,
		SubtotalCents:  o.SubtotalCents,
		ShippingCents:  o.ShippingCents,
		TaxCents:       o.TaxCents,
		DiscountCents:  o.DiscountCents,
		TotalCents:     o.TotalCents,
		RefundedCents:  o.RefundedCents,
		ShippingMethod: o.ShippingMethod,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
		PaidAt:         o.PaidAt,
	}
	if a, err := o.Address(); err == nil {
		vo.ShippingAddress = a
	}
	if o.Payable() && o.CheckoutURL != nil {
		vo.CheckoutURL = *o.CheckoutURL
	}
	for _, it := range items {
		vo.ItemCount += it.Quantity
		vo.Items = append(vo.Items, view.OrderItem{
			ProductID:      it.ProductID,
			ProductName:    it.ProductName,
			ProductSlug:    it.ProductSlug,
			UnitPriceCents: it.UnitPriceCents,
			Qty:            it.Quantity,
			LineTotalCents: it.LineTotalCents,
		})
	}
	for _, sh := range shipments {
		vo.Shipments = append(vo.Shipments, view.Shipment{
			Carrier:        sh.Carrier,
			TrackingNumber: sh.TrackingNumber,
			CreatedAt:      sh.CreatedAt,
		})
	}
	return vo
}

func ListToView(res ListByUserResult) view.OrderList {
	out := view.OrderList{
		Items:    make([]view.Order, 0, len(res.Items)),
		PageMeta: view.NewPageMeta(res.Page, res.PageSize, res.Total),
	}
	for _, it := range res.Items {
		vo := ToView(it.Order, nil, nil)
		vo.ItemCount = it.Count
		out.Items = append(out.Items, vo)
	}
	return out
}

func AdminToView(o Order, customerName string) view.AdminOrder {
	return view.AdminOrder{
		Order:         ToView(o, nil, nil),
		CustomerEmail: o.CustomerEmail,
		CustomerName:  customerName,
	}
}

func EventsToView(evs []OrderEvent) []view.OrderEvent {
	out := make([]view.OrderEvent, 0, len(evs))
	for _, e := range evs {
		ve := view.OrderEvent{
			Action:      e.Action,
			From:        e.FromStatus,
			To:          e.ToStatus,
			ActorUserID: e.ActorUserID,
			At:          e.CreatedAt,
		}
		if e.Note != nil {
			ve.Note = *e.Note
		}
		out = append(out, ve)
	}
	return out
}

func LedgerToView(entries []FinancialEntry) []view.FinancialEntry {
	out := make([]view.FinancialEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, view.FinancialEntry{
			Event:       e.Event,
			AmountCents: e.AmountCents,
			Currency:    e.Currency,
			RefType:     e.RefType,
			RefID:       e.RefID,
			At:          e.CreatedAt,
		})
	}
	return out
}

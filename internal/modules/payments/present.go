package payments

import "shirly.shop/app/pkg/view"

func PaymentsToView(ps []Payment) []view.Payment {
	out := make([]view.Payment, 0, len(ps))
	for _, p := range ps {
		out = append(out, view.Payment{
			ID:          p.ID,
			Provider:    p.Provider,
			Status:      p.Status,
			AmountCents: p.AmountCents,
			Currency:    p.Currency,
			CreatedAt:   p.CreatedAt,
		})
	}
	return out
}

func RefundsToView(rs []Refund) []view.Refund {
	out := make([]view.Refund, 0, len(rs))
	for _, r := range rs {
		vr := view.Refund{
			ID:          r.ID,
			PaymentID:   r.PaymentID,
			Status:      r.Status,
			AmountCents: r.AmountCents,
			Currency:    r.Currency,
			CreatedAt:   r.CreatedAt,
		}
		if r.Reason != nil {
			vr.Reason = *r.Reason
		}
		out = append(out, vr)
	}
	return out
}

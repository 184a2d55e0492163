package view

// Series is chart-ready: Labels[i] pairs with Values[i].
type Series struct {
	Labels []string `json:"labels"`
	Values []int64  `json:"values"`
}

type TopProduct struct {
	ProductID    string `json:"product_id"`
	Name         string `json:"name"`
	Qty          int64  `json:"qty"`
	RevenueCents int64  `json:"revenue_cents"`
}

type Dashboard struct {
	From               string       `json:"from"`
	To                 string       `json:"to"`
	Currency           string       `json:"currency"`
	RevenueCents       int64        `json:"revenue_cents"`
	Orders             int64        `json:"orders"`
	PaidOrders         int64        `json:"paid_orders"`
	AvgOrderValueCents int64        `json:"avg_order_value_cents"`
	Customers          int64        `json:"customers"`
	NewCustomers       int64        `json:"new_customers"`
	RevenueByDay       Series       `json:"revenue_by_day"`
	OrdersByStatus     Series       `json:"orders_by_status"`
	TopProducts        []TopProduct `json:"top_products"`
}

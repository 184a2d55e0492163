// Package checkout turns a cart into an order and hands the customer to the
// payment provider's hosted checkout page.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"shirly.shop/app/internal/modules/addresses"
	"shirly.shop/app/internal/modules/orders"
	"shirly.shop/app/internal/modules/payments"
	"shirly.shop/app/pkg/view"
)

type Service struct {
	orders        *orders.Service
	payments      *payments.Service
	addresses     *addresses.Service
	storefrontURL string
	logger        *slog.Logger
}

func NewService(o *orders.Service, p *payments.Service, a *addresses.Service, storefrontURL string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{orders: o, payments: p, addresses: a, storefrontURL: storefrontURL, logger: logger}
}

type Input struct {
	UserID         string
	Email          string
	AddressID      string // empty => default address
	ShippingMethod string
	IdempotencyKey string
}

// Checkout creates the order (or finds the one created earlier with the same key)
// and starts its hosted checkout. Retrying with the same key is safe.
func (s *Service) Checkout(ctx context.Context, in Input) (view.CheckoutResult, error) {
	var (
		addr addresses.Address
		err  error
	)
	if in.AddressID != "" {
		addr, err = s.addresses.Get(ctx, in.UserID, in.AddressID)
	} else {
		addr, err = s.addresses.Default(ctx, in.UserID)
	}
	if errors.Is(err, addresses.ErrNotFound) {
		return view.CheckoutResult{}, orders.ErrMissingAddress
	}
	if err != nil {
		return view.CheckoutResult{}, err
	}

	o, existed, err := s.orders.CreateFromCart(ctx, orders.CreateInput{
		UserID:         in.UserID,
		Email:          in.Email,
		Address:        addr.View(),
		ShippingMethod: in.ShippingMethod,
		IdempotencyKey: in.IdempotencyKey,
	})
	if err != nil {
		return view.CheckoutResult{}, err
	}
	if existed {
		s.logger.InfoContext(ctx, "checkout replayed", "order_id", o.ID, "user_id", in.UserID)
	}

	return s.Pay(ctx, o.ID, in.UserID, in.IdempotencyKey)
}

// Pay starts (or resumes) the hosted checkout of an existing unpaid order.
func (s *Service) Pay(ctx context.Context, orderID, userID, idemKey string) (view.CheckoutResult, error) {
	res, err := s.payments.StartCheckout(ctx, payments.StartCheckoutInput{
		OrderID:        orderID,
		ActorUserID:    userID,
		IdempotencyKey: idemKey,
		SuccessURL:     s.returnURL(orderID, "success"),
		CancelURL:      s.returnURL(orderID, "cancel"),
	})
	if err != nil {
		return view.CheckoutResult{OrderID: orderID}, err
	}
	return view.CheckoutResult{
		OrderID:    res.OrderID,
		PaymentID:  res.PaymentID,
		SessionURL: res.SessionURL,
		ExpiresAt:  res.ExpiresAt,
	}, nil
}

func (s *Service) returnURL(orderID, outcome string) string {
	return fmt.Sprintf("%s/orders/%s?checkout=%s", s.storefrontURL, url.PathEscape(orderID), outcome)
}

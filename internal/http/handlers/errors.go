package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"

	"shirly.shop/app/internal/http/middleware"
	"shirly.shop/app/internal/modules/addresses"
	"shirly.shop/app/internal/modules/analytics"
	"shirly.shop/app/internal/modules/auth"
	"shirly.shop/app/internal/modules/cart"
	"shirly.shop/app/internal/modules/chat"
	"shirly.shop/app/internal/modules/inventory"
	"shirly.shop/app/internal/modules/notifications"
	"shirly.shop/app/internal/modules/orders"
	"shirly.shop/app/internal/modules/payments"
	"shirly.shop/app/internal/modules/products"
	"shirly.shop/app/internal/modules/reviews"
	"shirly.shop/app/internal/modules/shipping"
	"shirly.shop/app/internal/modules/wishlist"
	"shirly.shop/app/internal/shared/apperr"
	"shirly.shop/app/internal/storage"
)

// fail maps module errors to their public HTTP shape and records them.
func fail(c *gin.Context, err error) {
	middleware.Fail(c, toAppErr(err))
}

func toAppErr(err error) error {
	if _, ok := apperr.As(err); ok {
		return err
	}

	var oos *inventory.OutOfStockError
	if errors.As(err, &oos) {
		fields := make(map[string]string, len(oos.Items))
		for _, it := range oos.Items {
			fields[it.ProductID] = fmt.Sprintf("only %d left", it.Available)
		}
		return (&apperr.AppError{Kind: apperr.Conflict, PublicMsg: "some items are out of stock", Fields: fields}).WithCause(err)
	}

	for _, m := range notFound {
		if errors.Is(err, m) {
			return apperr.NotFoundErr(m.Error()).WithCause(err)
		}
	}
	for _, m := range invalid {
		if errors.Is(err, m) {
			return apperr.InvalidErr(m.Error(), nil).WithCause(err)
		}
	}
	for _, m := range conflict {
		if errors.Is(err, m) {
			return apperr.ConflictErr(m.Error()).WithCause(err)
		}
	}
	for _, m := range forbidden {
		if errors.Is(err, m) {
			return apperr.ForbiddenErr(m.Error()).WithCause(err)
		}
	}

	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return apperr.UnauthorizedErr(err.Error())
	case errors.Is(err, auth.ErrUnauthenticated):
		return apperr.UnauthorizedErr("authentication required")
	case errors.Is(err, orders.ErrInvalidTransition):
		return apperr.ConflictErr("action not allowed in current status").WithCause(err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperr.UnavailableErr("request timed out").WithCause(err)
	}
	return apperr.Wrap(err)
}

var notFound = []error{
	products.ErrNotFound, products.ErrCategoryNotFound, products.ErrImageNotFound,
	cart.ErrItemNotFound,
	orders.ErrNotFound,
	addresses.ErrNotFound,
	wishlist.ErrProductNotFound, wishlist.ErrNotInWishlist,
	reviews.ErrNotFound, reviews.ErrProductNotFound,
	chat.ErrOrderNotFound,
	notifications.ErrNotFound,
	auth.ErrUserNotFound,
}

var invalid = []error{
	products.ErrInvalidPrice, products.ErrInvalidStock, products.ErrInvalidStatus,
	cart.ErrInvalidQty, cart.ErrEmpty,
	orders.ErrMissingAddress, orders.ErrMissingIdemKey,
	addresses.ErrInvalid,
	auth.ErrWeakPassword,
	reviews.ErrInvalidRating,
	chat.ErrEmptyBody, chat.ErrBodyTooLong, chat.ErrClientMsgIDTooLong,
	shipping.ErrUnknownMethod,
	analytics.ErrInvalidRange,
	storage.ErrUnsupportedType,
}

var conflict = []error{
	products.ErrSlugTaken, products.ErrCategoryInUse,
	cart.ErrMixedCurrency, cart.ErrProductUnavailable,
	orders.ErrNotCancellable, orders.ErrNotActionable,
	payments.ErrOrderNotPayable, payments.ErrNotRefundable, payments.ErrNoSucceededPayment,
	auth.ErrEmailTaken,
	reviews.ErrAlreadyReviewed,
}

var forbidden = []error{
	payments.ErrForbidden,
	reviews.ErrForbidden, reviews.ErrNotPurchased,
	chat.ErrForbidden,
}

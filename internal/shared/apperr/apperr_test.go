package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{InvalidErr("bad", nil), http.StatusBadRequest},
		{NotFoundErr("nope"), http.StatusNotFound},
		{UnauthorizedErr("login"), http.StatusUnauthorized},
		{ForbiddenErr("no"), http.StatusForbidden},
		{ConflictErr("dup"), http.StatusConflict},
		{RateLimitedErr("slow down"), http.StatusTooManyRequests},
		{UnavailableErr("later"), http.StatusServiceUnavailable},
		{Wrap(errors.New("db down")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
		{fmt.Errorf("ctx: %w", ConflictErr("dup")), http.StatusConflict},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), tc.err.Error())
	}
}

func TestPublicMessageHidesInternals(t *testing.T) {
	err := Wrap(errors.New("dial tcp 10.0.0.1:3306: refused"))
	assert.Equal(t, genericMsg, PublicMessage(err))
	assert.Contains(t, err.Error(), "refused")

	assert.Equal(t, "Order not found.", PublicMessage(NotFoundErr("Order not found.")))
	assert.Equal(t, genericMsg, PublicMessage(errors.New("raw")))
}

func TestWrapKeepsAppError(t *testing.T) {
	orig := ForbiddenErr("nope")
	assert.Same(t, orig, Wrap(orig))
	assert.Nil(t, Wrap(nil))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NotFoundErr("missing").WithCause(cause)
	assert.ErrorIs(t, err, cause)
}

func TestUnknownKindIsInternal(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, Kind("teapot").Status())
	assert.Equal(t, "teapot", (&AppError{Kind: "teapot"}).Error())
}

package apperr

import (
	"errors"
	"net/http"
	"strings"
)

const genericMsg = "Something went wrong. Please try again."

func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	switch {
	case e.Err != nil:
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	case e.PublicMsg != "":
		b.WriteString(": ")
		b.WriteString(e.PublicMsg)
	}
	return b.String()
}

func (e *AppError) Unwrap() error { return e.Err }

// WithCause attaches an internal error for logging without changing the public message.
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

func newErr(k Kind, msg string) *AppError { return &AppError{Kind: k, PublicMsg: msg} }

func InvalidErr(publicMsg string, fields map[string]string) *AppError {
	e := newErr(Invalid, publicMsg)
	e.Fields = fields
	return e
}

func NotFoundErr(publicMsg string) *AppError     { return newErr(NotFound, publicMsg) }
func UnauthorizedErr(publicMsg string) *AppError { return newErr(Unauthorized, publicMsg) }
func ForbiddenErr(publicMsg string) *AppError    { return newErr(Forbidden, publicMsg) }
func ConflictErr(publicMsg string) *AppError     { return newErr(Conflict, publicMsg) }
func RateLimitedErr(publicMsg string) *AppError  { return newErr(RateLimited, publicMsg) }
func UnavailableErr(publicMsg string) *AppError  { return newErr(Unavailable, publicMsg) }

// Wrap hides an internal error behind a generic 500 message. An AppError
// anywhere in the chain is returned as is.
func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if ae, ok := As(err); ok {
		return ae
	}
	return newErr(Internal, genericMsg).WithCause(err)
}

func As(err error) (*AppError, bool) {
	var ae *AppError
	ok := errors.As(err, &ae)
	return ae, ok
}

func HTTPStatus(err error) int {
	if ae, ok := As(err); ok {
		return ae.Kind.Status()
	}
	return http.StatusInternalServerError
}

func PublicMessage(err error) string {
	if ae, ok := As(err); ok && ae.PublicMsg != "" {
		return ae.PublicMsg
	}
	return genericMsg
}

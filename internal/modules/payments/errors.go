package payments

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

var (
	ErrOrderNotPayable    = errors.New("order not payable")
	ErrForbidden          = errors.New("forbidden")
	ErrNoSucceededPayment = errors.New("no succeeded payment found")
	ErrNotRefundable      = errors.New("order not refundable")
	ErrInvalidSignature   = errors.New("invalid webhook signature")
	ErrInvalidPayload     = errors.New("invalid webhook payload")
	ErrUnknownSession     = errors.New("unknown checkout session")

	// ErrUnmatchedEvent marks a payment event for a session or charge this
	// store never created.
	ErrUnmatchedEvent = errors.New("webhook event matches no payment")
)

func isDup(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}

func ptr(s string) *string { return &s }

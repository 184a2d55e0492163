package reviews

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

var (
	ErrNotFound        = errors.New("review not found")
	ErrProductNotFound = errors.New("product not found")
	ErrNotPurchased    = errors.New("only customers who bought this product can review it")
	ErrAlreadyReviewed = errors.New("you already reviewed this product")
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
	ErrForbidden       = errors.New("not the author of this review")
)

func isDup(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

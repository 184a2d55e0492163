package chat

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

const (
	MaxBodyLen        = 2000
	MaxClientMsgIDLen = 64
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrForbidden     = errors.New("not a participant of this conversation")
	ErrEmptyBody     = errors.New("message body is empty")
	ErrBodyTooLong   = errors.New("message body too long")

	ErrClientMsgIDTooLong = errors.New("client message id too long")
)

func isDup(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

package chat

import "time"

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

type Message struct {
	ID          string     `gorm:"type:char(36);primaryKey"`
	OrderID     string     `gorm:"type:char(36);not null;index:ix_chat_messages_order_created,priority:1"`
	SenderID    string     `gorm:"type:char(36);not null;uniqueIndex:ux_chat_messages_sender_client,priority:1"`
	SenderRole  string     `gorm:"type:varchar(16);not null"`
	Body        string     `gorm:"type:text;not null"`
	ClientMsgID *string    `gorm:"type:varchar(64);uniqueIndex:ux_chat_messages_sender_client,priority:2"`
	ReadAt      *time.Time
	CreatedAt   time.Time  `gorm:"not null;index:ix_chat_messages_order_created,priority:2"`
}

func (Message) TableName() string { return "chat_messages" }

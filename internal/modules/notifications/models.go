package notifications

import "time"

const (
	KindOrderStatus = "order_status"
	KindChatMessage = "chat_message"
	KindPayment     = "payment"
)

type Notification struct {
	ID        string     `gorm:"type:char(36);primaryKey"`
	UserID    string     `gorm:"type:char(36);not null;index:ix_notifications_user_created,priority:1"`
	Kind      string     `gorm:"type:varchar(32);not null"`
	Title     string     `gorm:"type:varchar(255);not null"`
	Body      string     `gorm:"type:varchar(1000);not null;default:''"`
	Link      string     `gorm:"type:varchar(255);not null;default:''"`
	ReadAt    *time.Time `gorm:"index:ix_notifications_read_at"`
	CreatedAt time.Time  `gorm:"not null;index:ix_notifications_user_created,priority:2"`
}

func (Notification) TableName() string { return "notifications" }

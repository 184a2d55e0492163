package view

import "time"

type Notification struct {
	ID        string     `json:"id"`
	Kind      string     `json:"kind"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Link      string     `json:"link,omitempty"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type NotificationList struct {
	Items  []Notification `json:"items"`
	Unread int64          `json:"unread"`
	PageMeta
}

type UnreadCount struct {
	Count int64 `json:"count"`
}

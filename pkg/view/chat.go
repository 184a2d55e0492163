package view

import "time"

type Message struct {
	ID          string     `json:"id"`
	OrderID     string     `json:"order_id"`
	SenderID    string     `json:"sender_id"`
	SenderRole  string     `json:"sender_role"`
	Body        string     `json:"body"`
	ClientMsgID string     `json:"client_msg_id,omitempty"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type MessageList struct {
	Items []Message `json:"items"`
}

type SendMessageRequest struct {
	Body        string `json:"body" binding:"required,max=2000"`
	ClientMsgID string `json:"client_msg_id" binding:"max=64"`
}

type ChatTicket struct {
	Ticket    string    `json:"ticket"`
	ExpiresAt time.Time `json:"expires_at"`
}

const (
	EventMessage      = "message"
	EventNotification = "notification"
	EventError        = "error"
)

// RealtimeEvent is the frame pushed over realtime channels.
type RealtimeEvent struct {
	Type         string        `json:"type"`
	Message      *Message      `json:"message,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// ClientFrame is what a chat client may write on the socket.
type ClientFrame struct {
	Type        string `json:"type"`
	Body        string `json:"body"`
	ClientMsgID string `json:"client_msg_id"`
}

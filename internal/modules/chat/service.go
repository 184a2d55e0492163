// Package chat is the buyer-seller conversation attached to an order.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"shirly.shop/app/internal/modules/auth"
	"shirly.shop/app/internal/modules/notifications"
	"shirly.shop/app/internal/modules/orders"
	"shirly.shop/app/internal/realtime"
	"shirly.shop/app/pkg/view"
)

// Notifier is the part of the notification service chat needs.
type Notifier interface {
	Notify(ctx context.Context, in notifications.Input) (notifications.Notification, error)
}

type Service struct {
	db       *gorm.DB
	orders   *orders.Repo
	broker   realtime.Broker
	notifier Notifier
	logger   *slog.Logger

	// OnPublish, if set, is called after every message fan-out.
	OnPublish func()
}

func NewService(db *gorm.DB, broker realtime.Broker, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, orders: orders.NewRepo(db), broker: broker, notifier: notifier, logger: logger}
}

// Participant identifies who is reading or writing a thread.
type Participant struct {
	UserID  string
	IsAdmin bool
}

func (p Participant) role() string {
	if p.IsAdmin {
		return RoleAdmin
	}
	return RoleCustomer
}

// Authorize returns the order when p may take part in its conversation:
// the order's customer, or any admin.
func (s *Service) Authorize(ctx context.Context, orderID string, p Participant) (orders.Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if errors.Is(err, orders.ErrNotFound) {
		return orders.Order{}, ErrOrderNotFound
	}
	if err != nil {
		return orders.Order{}, err
	}
	if !p.IsAdmin && o.UserID != p.UserID {
		// hide existence of other customers' orders
		return orders.Order{}, ErrOrderNotFound
	}
	return o, nil
}

type SendInput struct {
	OrderID     string
	Sender      Participant
	Body        string
	ClientMsgID string
}

// Send stores a message and fans it out. Resending with the same client message id
// returns the stored message with created=false and publishes nothing.
func (s *Service) Send(ctx context.Context, in SendInput) (Message, bool, error) {
	body := strings.TrimSpace(in.Body)
	if body == "" {
		return Message{}, false, ErrEmptyBody
	}
	if utf8.RuneCountInString(body) > MaxBodyLen {
		return Message{}, false, ErrBodyTooLong
	}
	o, err := s.Authorize(ctx, in.OrderID, in.Sender)
	if err != nil {
		return Message{}, false, err
	}

	var clientID *string
	if c := strings.TrimSpace(in.ClientMsgID); c != "" {
		if len(c) > MaxClientMsgIDLen {
			return Message{}, false, ErrClientMsgIDTooLong
		}
		clientID = &c
		if m, ok, err := s.byClientID(ctx, in.Sender.UserID, c); err != nil {
			return Message{}, false, err
		} else if ok {
			return m, false, nil
		}
	}

	m := Message{
		ID:          uuid.NewString(),
		OrderID:     o.ID,
		SenderID:    in.Sender.UserID,
		SenderRole:  in.Sender.role(),
		Body:        body,
		ClientMsgID: clientID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isDup(err) && clientID != nil {
			if existing, ok, ferr := s.byClientID(ctx, in.Sender.UserID, *clientID); ferr == nil && ok {
				return existing, false, nil
			}
		}
		return Message{}, false, err
	}

	s.publish(ctx, m)
	s.notifyCounterpart(ctx, o, m)
	return m, true, nil
}

func (s *Service) byClientID(ctx context.Context, senderID, clientID string) (Message, bool, error) {
	var m Message
	err := s.db.WithContext(ctx).First(&m, "sender_id = ? AND client_msg_id = ?", senderID, clientID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Message{}, false, nil
	}
	if err != nil {
		return Message{}, false, err
	}
	return m, true, nil
}

func (s *Service) publish(ctx context.Context, m Message) {
	if s.broker == nil {
		return
	}
	v := ToView(m)
	payload, err := json.Marshal(view.RealtimeEvent{Type: view.EventMessage, Message: &v})
	if err == nil {
		err = s.broker.Publish(ctx, realtime.OrderTopic(m.OrderID), payload)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "chat publish failed", "order_id", m.OrderID, "message_id", m.ID, "err", err)
		return
	}
	if s.OnPublish != nil {
		s.OnPublish()
	}
}

// notifyCounterpart tells the customer about admin replies, and admins about customer messages.
func (s *Service) notifyCounterpart(ctx context.Context, o orders.Order, m Message) {
	if s.notifier == nil {
		return
	}
	var recipients []string
	if m.SenderRole == RoleAdmin {
		recipients = []string{o.UserID}
	} else if err := s.db.WithContext(ctx).Model(&auth.User{}).
		Where("role = ?", auth.RoleAdmin).
		Limit(50).
		Pluck("id", &recipients).Error; err != nil {
		s.logger.WarnContext(ctx, "chat admin lookup failed", "err", err)
		return
	}

	preview := m.Body
	if utf8.RuneCountInString(preview) > 140 {
		preview = string([]rune(preview)[:140]) + "…"
	}
	shortID := o.ID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}
	for _, uid := range recipients {
		if uid == m.SenderID {
			continue
		}
		if _, err := s.notifier.Notify(ctx, notifications.Input{
			UserID: uid,
			Kind:   notifications.KindChatMessage,
			Title:  "New message about order " + shortID,
			Body:   preview,
			Link:   o.ID,
		}); err != nil {
			s.logger.WarnContext(ctx, "chat notify failed", "user_id", uid, "err", err)
		}
	}
}

// List returns messages oldest first; limit defaults to 100. Without since it
// is the newest page of the thread. With since it is the first page after it,
// so a poller that advances since to the last item sees every message.
func (s *Service) List(ctx context.Context, orderID string, p Participant, since *time.Time, limit int) ([]Message, error) {
	if _, err := s.Authorize(ctx, orderID, p); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := s.db.WithContext(ctx).Where("order_id = ?", orderID)
	var out []Message
	if since != nil {
		err := q.Where("created_at > ?", since.UTC()).
			Order("created_at ASC, id ASC").Limit(limit).Find(&out).Error
		return out, err
	}
	// newest page, then flipped to chronological order
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// MarkRead marks the counterpart's messages as read by p.
func (s *Service) MarkRead(ctx context.Context, orderID string, p Participant) (int64, error) {
	if _, err := s.Authorize(ctx, orderID, p); err != nil {
		return 0, err
	}
	res := s.db.WithContext(ctx).Model(&Message{}).
		Where("order_id = ? AND sender_role <> ? AND read_at IS NULL", orderID, p.role()).
		Update("read_at", time.Now().UTC())
	return res.RowsAffected, res.Error
}

func (s *Service) UnreadCount(ctx context.Context, orderID string, p Participant) (int64, error) {
	if _, err := s.Authorize(ctx, orderID, p); err != nil {
		return 0, err
	}
	var n int64
	err := s.db.WithContext(ctx).Model(&Message{}).
		Where("order_id = ? AND sender_role <> ? AND read_at IS NULL", orderID, p.role()).
		Count(&n).Error
	return n, err
}

func ToView(m Message) view.Message {
	v := view.Message{
		ID:         m.ID,
		OrderID:    m.OrderID,
		SenderID:   m.SenderID,
		SenderRole: m.SenderRole,
		Body:       m.Body,
		ReadAt:     m.ReadAt,
		CreatedAt:  m.CreatedAt,
	}
	if m.ClientMsgID != nil {
		v.ClientMsgID = *m.ClientMsgID
	}
	return v
}

func ListToView(ms []Message) view.MessageList {
	items := make([]view.Message, 0, len(ms))
	for _, m := range ms {
		items = append(items, ToView(m))
	}
	return view.MessageList{Items: items}
}

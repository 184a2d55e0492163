package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"shirly.shop/app/internal/realtime"
	"shirly.shop/app/pkg/view"
)

type Service struct {
	db     *gorm.DB
	broker realtime.Broker
	logger *slog.Logger
}

// NewService wires notifications; broker may be nil, then no realtime hint is sent.
func NewService(db *gorm.DB, broker realtime.Broker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, broker: broker, logger: logger}
}

type Input struct {
	UserID string
	Kind   string
	Title  string
	Body   string
	Link   string
}

// Notify stores a notification and pushes it to the user's realtime topic.
func (s *Service) Notify(ctx context.Context, in Input) (Notification, error) {
	n := Notification{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		Kind:      in.Kind,
		Title:     clip(in.Title, 255),
		Body:      clip(in.Body, 1000),
		Link:      clip(in.Link, 255),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&n).Error; err != nil {
		return Notification{}, err
	}

	if s.broker != nil {
		v := ToView(n)
		payload, err := json.Marshal(view.RealtimeEvent{Type: view.EventNotification, Notification: &v})
		if err == nil {
			err = s.broker.Publish(ctx, realtime.UserTopic(n.UserID), payload)
		}
		if err != nil {
			s.logger.WarnContext(ctx, "notification publish failed", "user_id", n.UserID, "err", err)
		}
	}
	return n, nil
}

type ListParams struct {
	UserID     string
	UnreadOnly bool
	Page       int
	PageSize   int
}

func (s *Service) List(ctx context.Context, in ListParams) (view.NotificationList, error) {
	if in.Page < 1 {
		in.Page = 1
	}
	if in.PageSize < 1 || in.PageSize > 100 {
		in.PageSize = 20
	}

	q := s.db.WithContext(ctx).Model(&Notification{}).Where("user_id = ?", in.UserID)
	if in.UnreadOnly {
		q = q.Where("read_at IS NULL")
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return view.NotificationList{}, err
	}
	var rows []Notification
	if err := q.Order("created_at DESC, id DESC").
		Offset((in.Page - 1) * in.PageSize).
		Limit(in.PageSize).
		Find(&rows).Error; err != nil {
		return view.NotificationList{}, err
	}
	unread, err := s.UnreadCount(ctx, in.UserID)
	if err != nil {
		return view.NotificationList{}, err
	}

	items := make([]view.Notification, 0, len(rows))
	for _, n := range rows {
		items = append(items, ToView(n))
	}
	return view.NotificationList{Items: items, Unread: unread, PageMeta: view.NewPageMeta(in.Page, in.PageSize, total)}, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Count(&n).Error
	return n, err
}

func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	var n Notification
	if err := s.db.WithContext(ctx).First(&n, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if n.ReadAt != nil {
		return nil
	}
	return s.db.WithContext(ctx).Model(&Notification{}).
		Where("id = ?", id).
		Update("read_at", time.Now().UTC()).Error
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Update("read_at", time.Now().UTC())
	return res.RowsAffected, res.Error
}

// PruneRead deletes notifications read before now-maxAge.
func (s *Service) PruneRead(ctx context.Context, now time.Time, maxAge time.Duration) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("read_at IS NOT NULL AND read_at < ?", now.UTC().Add(-maxAge)).
		Delete(&Notification{})
	return res.RowsAffected, res.Error
}

func ToView(n Notification) view.Notification {
	return view.Notification{
		ID:        n.ID,
		Kind:      n.Kind,
		Title:     n.Title,
		Body:      n.Body,
		Link:      n.Link,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

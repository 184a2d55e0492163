package store

import (
	"context"
	"sync"
	"time"

	"shirly.shop/app/pkg/client"
	"shirly.shop/app/pkg/view"
)

// NotificationStore keeps the unread badge fresh by polling.
type NotificationStore struct {
	state
	c      *client.Client
	unread int64
	items  []view.Notification

	// OnChange fires when the unread count changes.
	OnChange func(unread int64)

	pollMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewNotificationStore(c *client.Client, n Notifier) *NotificationStore {
	return &NotificationStore{state: state{notify: orNop(n)}, c: c}
}

func (s *NotificationStore) Unread() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread
}

func (s *NotificationStore) Items() []view.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]view.Notification(nil), s.items...)
}

// Refresh reads the unread count. Polling failures are not shown to the user.
func (s *NotificationStore) Refresh(ctx context.Context) error {
	n, err := s.c.UnreadNotifications(ctx)
	if err != nil {
		return err
	}
	s.setUnread(n)
	return nil
}

func (s *NotificationStore) setUnread(n int64) {
	s.mu.Lock()
	changed := s.unread != n
	s.unread = n
	s.mu.Unlock()
	if changed && s.OnChange != nil {
		s.OnChange(n)
	}
}

func (s *NotificationStore) Sync(ctx context.Context, unreadOnly bool) error {
	return s.run(func() error {
		l, err := s.c.Notifications(ctx, unreadOnly, 1)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.items = l.Items
		s.mu.Unlock()
		s.setUnread(l.Unread)
		return nil
	})
}

func (s *NotificationStore) MarkRead(ctx context.Context, id string) error {
	return s.run(func() error {
		if err := s.c.MarkNotificationRead(ctx, id); err != nil {
			return err
		}
		now := time.Now().UTC()
		s.mu.Lock()
		for i := range s.items {
			if s.items[i].ID == id && s.items[i].ReadAt == nil {
				s.items[i].ReadAt = &now
			}
		}
		s.mu.Unlock()
		return s.Refresh(ctx)
	})
}

func (s *NotificationStore) MarkAllRead(ctx context.Context) error {
	return s.run(func() error {
		if _, err := s.c.MarkAllNotificationsRead(ctx); err != nil {
			return err
		}
		now := time.Now().UTC()
		s.mu.Lock()
		for i := range s.items {
			if s.items[i].ReadAt == nil {
				s.items[i].ReadAt = &now
			}
		}
		s.mu.Unlock()
		s.setUnread(0)
		return nil
	})
}

// Start polls the unread count every interval until Stop or ctx ends.
// Calling Start again restarts the poller.
func (s *NotificationStore) Start(ctx context.Context, interval time.Duration) {
	s.Stop()
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.pollMu.Lock()
	s.cancel, s.done = cancel, done
	s.pollMu.Unlock()

	go func() {
		defer close(done)
		t := time.NewTicker(interval)
		defer t.Stop()
		_ = s.Refresh(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				_ = s.Refresh(ctx)
			}
		}
	}()
}

// Stop ends polling and waits for the poller to exit.
func (s *NotificationStore) Stop() {
	s.pollMu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.pollMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Package realtime fans events out to connected clients. Topics are "order:<id>" for
// chat threads and "user:<id>" for per-user hints such as new notifications.
package realtime

import (
	"context"
	"errors"
	"sync"
)

var ErrClosed = errors.New("realtime: broker closed")

func OrderTopic(orderID string) string { return "order:" + orderID }
func UserTopic(userID string) string   { return "user:" + userID }

// Broker delivers published payloads to every live subscription of a topic.
// Delivery is best effort: a subscriber that is not draining its channel misses events.
type Broker interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string) (*Subscription, error)
	Close() error
}

type Subscription struct {
	Topic string
	C     <-chan []byte

	once    sync.Once
	release func()
}

// Close stops delivery and closes C. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(s.release)
}

const subBuffer = 32

// LocalBroker fans out in process. It is the default when no Redis URL is configured.
type LocalBroker struct {
	mu     sync.RWMutex
	subs   map[string]map[*localSub]struct{}
	closed bool

	// OnDrop is called when a slow subscriber misses an event.
	OnDrop func(topic string)
}

type localSub struct {
	ch chan []byte
}

func NewLocalBroker() *LocalBroker {
	return &LocalBroker{subs: make(map[string]map[*localSub]struct{})}
}

func (b *LocalBroker) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	for s := range b.subs[topic] {
		select {
		case s.ch <- payload:
		default:
			if b.OnDrop != nil {
				b.OnDrop(topic)
			}
		}
	}
	return nil
}

func (b *LocalBroker) Subscribe(_ context.Context, topic string) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	ls := &localSub{ch: make(chan []byte, subBuffer)}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*localSub]struct{})
	}
	b.subs[topic][ls] = struct{}{}

	return &Subscription{
		Topic: topic,
		C:     ls.ch,
		release: func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if set, ok := b.subs[topic]; ok {
				if _, live := set[ls]; live {
					delete(set, ls)
					close(ls.ch)
				}
				if len(set) == 0 {
					delete(b.subs, topic)
				}
			}
		},
	}, nil
}

// Subscribers reports how many live subscriptions a topic has.
func (b *LocalBroker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

func (b *LocalBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for topic, set := range b.subs {
		for s := range set {
			close(s.ch)
		}
		delete(b.subs, topic)
	}
	return nil
}

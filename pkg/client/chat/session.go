// Package chat keeps one order conversation in sync: history over REST, live
// frames over the websocket, polling when the socket is unavailable, and
// optimistic sends reconciled by client message id.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"shirly.shop/app/pkg/client"
	"shirly.shop/app/pkg/view"
)

type Mode string

const (
	ModeRealtime Mode = "realtime"
	ModePolling  Mode = "polling"
)

// Entry is a message as the user sees it. Pending entries carry the client
// message id as their ID until the server answers.
type Entry struct {
	view.Message
	Pending bool
	Failed  bool
}

type Options struct {
	// PollInterval applies when the websocket cannot be used. Default 3s.
	PollInterval time.Duration

	// OnError receives realtime error frames and poll failures.
	OnError func(error)

	// NewID generates client message ids; defaults to UUIDv4.
	NewID func() string
}

type Session struct {
	c       *client.Client
	orderID string
	opts    Options

	mu      sync.Mutex
	entries []Entry
	mode    Mode
	conn    *websocket.Conn

	updates   chan struct{}
	sigMu     sync.RWMutex
	closed    bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Open loads the conversation and starts following it. ctx bounds the
// session's lifetime; Close ends it early.
func Open(ctx context.Context, c *client.Client, orderID string, opts Options) (*Session, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 3 * time.Second
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	hist, err := c.Messages(ctx, orderID, time.Time{}, 0)
	if err != nil {
		return nil, err
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		c:       c,
		orderID: orderID,
		opts:    opts,
		updates: make(chan struct{}, 1),
		ctx:     sctx,
		cancel:  cancel,
	}
	for _, m := range hist.Items {
		s.entries = append(s.entries, Entry{Message: m})
	}
	s.sortLocked()

	conn, err := s.dial(sctx)
	if err != nil {
		s.startPolling()
		return s, nil
	}
	s.mode = ModeRealtime
	s.conn = conn
	context.AfterFunc(sctx, func() { _ = conn.Close() })
	// The server subscribes before upgrading, so anything posted between the
	// history fetch and now is either in this catch-up or on the socket.
	if err := s.poll(); err != nil && sctx.Err() == nil {
		s.report(err)
	}
	s.wg.Add(1)
	go s.readLoop(conn)
	return s, nil
}

func (s *Session) dial(ctx context.Context) (*websocket.Conn, error) {
	t, err := s.c.ChatTicket(ctx, s.orderID)
	if err != nil {
		return nil, err
	}
	return s.c.DialChat(ctx, s.orderID, t.Ticket)
}

func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Updates signals after every change. Signals coalesce; read Messages for the
// current state. The channel closes with the session.
func (s *Session) Updates() <-chan struct{} { return s.updates }

// Messages returns a snapshot ordered by creation time.
func (s *Session) Messages() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.entries...)
}

// Send shows body immediately as pending, then posts it. On failure the entry
// stays visible marked Failed so Retry can resend it.
func (s *Session) Send(ctx context.Context, body string) (string, error) {
	id := s.opts.NewID()
	s.mu.Lock()
	s.entries = append(s.entries, Entry{
		Message: view.Message{ID: id, OrderID: s.orderID, Body: body, ClientMsgID: id, CreatedAt: time.Now().UTC()},
		Pending: true,
	})
	s.sortLocked()
	s.mu.Unlock()
	s.signal()

	return id, s.post(ctx, id, body)
}

// Retry resends a failed entry under its original client message id, which
// the server deduplicates.
func (s *Session) Retry(ctx context.Context, clientMsgID string) error {
	s.mu.Lock()
	i := s.indexLocked(clientMsgID, "")
	if i < 0 || !s.entries[i].Failed {
		s.mu.Unlock()
		return errors.New("chat: no failed message with that id")
	}
	s.entries[i].Failed = false
	s.entries[i].Pending = true
	body := s.entries[i].Body
	s.mu.Unlock()
	s.signal()

	return s.post(ctx, clientMsgID, body)
}

func (s *Session) post(ctx context.Context, id, body string) error {
	m, err := s.c.SendMessage(ctx, s.orderID, body, id)
	if err != nil {
		s.mu.Lock()
		if i := s.indexLocked(id, ""); i >= 0 && s.entries[i].Pending {
			s.entries[i].Pending = false
			s.entries[i].Failed = true
		}
		s.mu.Unlock()
		s.signal()
		return err
	}
	s.merge(m)
	return nil
}

// MarkRead marks the other side's messages as read.
func (s *Session) MarkRead(ctx context.Context) (int64, error) {
	return s.c.MarkMessagesRead(ctx, s.orderID)
}

// merge installs a server message, replacing the optimistic entry with the
// same client message id or an earlier copy with the same id.
func (s *Session) merge(m view.Message) {
	s.mu.Lock()
	if i := s.indexLocked(m.ClientMsgID, m.ID); i >= 0 {
		s.entries[i] = Entry{Message: m}
	} else {
		s.entries = append(s.entries, Entry{Message: m})
	}
	s.sortLocked()
	s.mu.Unlock()
	s.signal()
}

func (s *Session) indexLocked(clientMsgID, id string) int {
	for i, e := range s.entries {
		if clientMsgID != "" && e.ClientMsgID == clientMsgID {
			return i
		}
		if id != "" && e.ID == id {
			return i
		}
	}
	return -1
}

func (s *Session) sortLocked() {
	sort.SliceStable(s.entries, func(i, j int) bool {
		return s.entries[i].CreatedAt.Before(s.entries[j].CreatedAt)
	})
}

func (s *Session) signal() {
	s.sigMu.RLock()
	defer s.sigMu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

func (s *Session) report(err error) {
	if s.opts.OnError != nil {
		s.opts.OnError(err)
	}
}

func (s *Session) readLoop(conn *websocket.Conn) {
	defer s.wg.Done()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if s.ctx.Err() == nil {
				// socket dropped while the session is still wanted
				s.report(err)
				s.mu.Lock()
				s.conn = nil
				s.mu.Unlock()
				_ = conn.Close()
				s.startPolling()
			}
			return
		}
		var ev view.RealtimeEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		switch ev.Type {
		case view.EventMessage:
			if ev.Message != nil {
				s.merge(*ev.Message)
			}
		case view.EventError:
			s.report(errors.New(ev.Error))
		}
	}
}

func (s *Session) startPolling() {
	s.mu.Lock()
	s.mode = ModePolling
	s.mu.Unlock()
	s.signal()
	s.wg.Add(1)
	go s.pollLoop()
}

func (s *Session) pollLoop() {
	defer s.wg.Done()
	t := time.NewTicker(s.opts.PollInterval)
	defer t.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-t.C:
			if err := s.poll(); err != nil && s.ctx.Err() == nil {
				s.report(err)
			}
		}
	}
}

// pollPage is the page size asked for when catching up. The server answers the
// oldest messages after since first, so paging forward leaves no gaps.
const pollPage = 100

func (s *Session) poll() error {
	for {
		list, err := s.c.Messages(s.ctx, s.orderID, s.latest(), pollPage)
		if err != nil {
			return err
		}
		for _, m := range list.Items {
			s.merge(m)
		}
		if len(list.Items) < pollPage {
			return nil
		}
	}
}

// latest is the newest confirmed message time; pending entries carry local
// clocks and are skipped.
func (s *Session) latest() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	var t time.Time
	for _, e := range s.entries {
		if !e.Pending && !e.Failed && e.CreatedAt.After(t) {
			t = e.CreatedAt
		}
	}
	return t
}

// Close stops the websocket reader and the poller and waits for both.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		conn := s.conn
		s.conn = nil
		s.mu.Unlock()
		if conn != nil {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		}
		s.cancel()
		s.wg.Wait()
		s.sigMu.Lock()
		s.closed = true
		close(s.updates)
		s.sigMu.Unlock()
	})
	return nil
}

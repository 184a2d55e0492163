// Package store holds client-side state containers over the API client: each
// mirrors one slice of server state, exposes Loading/Err, and reports failures
// through a Notifier.
package store

import (
	"context"
	"errors"
	"sync"

	"shirly.shop/app/pkg/client"
	"shirly.shop/app/pkg/view"
)

// Notifier surfaces outcomes to the user (a toast, a status line).
type Notifier interface {
	Error(msg string)
	Success(msg string)
}

type nopNotifier struct{}

func (nopNotifier) Error(string)   {}
func (nopNotifier) Success(string) {}

// Toasts records notices in order; it is safe for concurrent use.
type Toasts struct {
	mu    sync.Mutex
	items []view.Flash
}

func (t *Toasts) Error(msg string)   { t.add(view.FlashError, msg) }
func (t *Toasts) Success(msg string) { t.add(view.FlashSuccess, msg) }

func (t *Toasts) add(k view.FlashKind, msg string) {
	t.mu.Lock()
	t.items = append(t.items, view.Flash{Kind: k, Message: msg})
	t.mu.Unlock()
}

// Drain returns and forgets the recorded notices.
func (t *Toasts) Drain() []view.Flash {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.items
	t.items = nil
	return out
}

const genericError = "Something went wrong. Please try again."

// Message turns err into the text shown to the user.
func Message(err error) string {
	var ae *client.APIError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, client.ErrUnauthorized):
		return "Please log in to continue."
	case errors.As(err, &ae) && ae.Message != "":
		return ae.Message
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "The request was interrupted."
	default:
		return genericError
	}
}

// state is the Loading/Err pair every store carries.
type state struct {
	mu      sync.RWMutex
	loading bool
	err     error
	notify  Notifier
}

func orNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}

func (s *state) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *state) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// run marks the store loading around fn, records its error and reports it.
// Loading is reset on every path.
func (s *state) run(fn func() error) error {
	s.mu.Lock()
	s.loading = true
	s.err = nil
	s.mu.Unlock()

	err := fn()

	s.mu.Lock()
	s.loading = false
	s.err = err
	s.mu.Unlock()
	if err != nil {
		s.notify.Error(Message(err))
	}
	return err
}

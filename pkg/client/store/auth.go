package store

import (
	"context"
	"errors"

	"shirly.shop/app/pkg/client"
	"shirly.shop/app/pkg/view"
)

type AuthStore struct {
	state
	c      *client.Client
	tokens TokenStore
	user   *view.User
}

func NewAuthStore(c *client.Client, tokens TokenStore, n Notifier) *AuthStore {
	if tokens == nil {
		tokens = &MemoryTokenStore{}
	}
	return &AuthStore{state: state{notify: orNop(n)}, c: c, tokens: tokens}
}

// Load restores the persisted token and cached profile without a round trip.
func (a *AuthStore) Load() error {
	s, err := a.tokens.Load()
	if err != nil {
		return err
	}
	a.c.SetToken(s.Token)
	a.mu.Lock()
	a.user = s.User
	a.mu.Unlock()
	return nil
}

func (a *AuthStore) User() (view.User, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.user == nil {
		return view.User{}, false
	}
	return *a.user, true
}

func (a *AuthStore) LoggedIn() bool { return a.c.Token() != "" }

func (a *AuthStore) Login(ctx context.Context, email, password string) error {
	return a.run(func() error {
		res, err := a.c.Login(ctx, email, password)
		if err != nil {
			return err
		}
		return a.remember(res)
	})
}

func (a *AuthStore) Signup(ctx context.Context, in view.SignupRequest) error {
	return a.run(func() error {
		res, err := a.c.Signup(ctx, in)
		if err != nil {
			return err
		}
		return a.remember(res)
	})
}

func (a *AuthStore) remember(res view.AuthResult) error {
	u := res.User
	a.mu.Lock()
	a.user = &u
	a.mu.Unlock()
	if err := a.tokens.Save(Session{Token: res.Token, User: &u}); err != nil {
		return err
	}
	a.notify.Success("Welcome, " + displayName(u) + ".")
	return nil
}

// Logout revokes the server session when possible and always forgets the
// local one.
func (a *AuthStore) Logout(ctx context.Context) error {
	err := a.c.Logout(ctx)
	a.forget()
	if err != nil && !errors.Is(err, client.ErrUnauthorized) {
		return err
	}
	return nil
}

// Refresh re-reads the profile. A 401 means the token is dead: the session is
// cleared and ErrUnauthorized returned.
func (a *AuthStore) Refresh(ctx context.Context) error {
	return a.run(func() error {
		u, err := a.c.Me(ctx)
		if errors.Is(err, client.ErrUnauthorized) {
			a.forget()
			return err
		}
		if err != nil {
			return err
		}
		a.mu.Lock()
		a.user = &u
		a.mu.Unlock()
		return a.tokens.Save(Session{Token: a.c.Token(), User: &u})
	})
}

func (a *AuthStore) forget() {
	a.c.SetToken("")
	a.mu.Lock()
	a.user = nil
	a.mu.Unlock()
	_ = a.tokens.Clear()
}

func displayName(u view.User) string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.Email
}

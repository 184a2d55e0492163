package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"shirly.shop/app/pkg/view"
)

// Session is what survives a restart: the bearer token and the last known
// profile.
type Session struct {
	Token string     `json:"token"`
	User  *view.User `json:"user,omitempty"`
}

type TokenStore interface {
	Load() (Session, error)
	Save(Session) error
	Clear() error
}

// FileTokenStore keeps the session as JSON in a 0600 file.
type FileTokenStore struct {
	Path string
}

// DefaultSessionPath is $XDG_CONFIG_HOME/shirly/session.json (or the
// platform's equivalent).
func DefaultSessionPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "shirly", "session.json"), nil
}

func (f FileTokenStore) Load() (Session, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return Session{}, nil
	}
	if err != nil {
		return Session{}, err
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("session file %s: %w", f.Path, err)
	}
	return s, nil
}

func (f FileTokenStore) Save(s Session) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.Path)
}

func (f FileTokenStore) Clear() error {
	err := os.Remove(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// MemoryTokenStore is a TokenStore that never touches disk.
type MemoryTokenStore struct {
	mu sync.Mutex
	s  Session
}

func (m *MemoryTokenStore) Load() (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s, nil
}

func (m *MemoryTokenStore) Save(s Session) error {
	m.mu.Lock()
	m.s = s
	m.mu.Unlock()
	return nil
}

func (m *MemoryTokenStore) Clear() error { return m.Save(Session{}) }

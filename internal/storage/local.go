package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

type Local struct {
	BaseDir   string
	URLPrefix string
}

func NewLocal(baseDir, urlPrefix string) *Local {
	return &Local{BaseDir: baseDir, URLPrefix: urlPrefix}
}

func (l *Local) Put(ctx context.Context, r io.Reader, in PutInput) (PutResult, error) {
	ext, err := ImageExt(in)
	if err != nil {
		return PutResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return PutResult{}, err
	}

	if err := os.MkdirAll(l.BaseDir, 0o755); err != nil {
		return PutResult{}, err
	}

	key := newKey("", ext)
	dstPath := filepath.Join(l.BaseDir, key)

	f, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return PutResult{}, err
	}

	if _, err := io.Copy(f, io.LimitReader(r, MaxImageBytes+1)); err != nil {
		f.Close()
		_ = os.Remove(dstPath)
		return PutResult{}, err
	}
	if err := f.Close(); err != nil {
		return PutResult{}, err
	}

	url := strings.TrimRight(l.URLPrefix, "/") + "/" + key
	return PutResult{Key: key, URL: url}, nil
}

// Delete is a no-op for keys that are already gone.
func (l *Local) Delete(_ context.Context, key string) error {
	key = filepath.Base(key)
	err := os.Remove(filepath.Join(l.BaseDir, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Ping reports whether the upload directory is writable.
func (l *Local) Ping(context.Context) error {
	if err := os.MkdirAll(l.BaseDir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(l.BaseDir, ".ping-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

func (l *Local) String() string { return fmt.Sprintf("local(%s)", l.BaseDir) }

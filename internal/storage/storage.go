package storage

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrUnsupportedType = errors.New("unsupported file type")

// MaxImageBytes bounds a single uploaded image.
const MaxImageBytes = 5 << 20

type PutInput struct {
	Filename    string
	ContentType string
	Size        int64
}

type PutResult struct {
	Key string
	URL string
}

type Storage interface {
	Put(ctx context.Context, r io.Reader, in PutInput) (PutResult, error)
	Delete(ctx context.Context, key string) error
}

var imageTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// ImageExt returns the file extension for an accepted image upload.
func ImageExt(in PutInput) (string, error) {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(in.ContentType, ";", 2)[0]))
	ext, ok := imageTypes[ct]
	if !ok {
		return "", ErrUnsupportedType
	}
	if in.Size > MaxImageBytes {
		return "", ErrUnsupportedType
	}
	switch fe := strings.ToLower(filepath.Ext(in.Filename)); fe {
	case ".jpeg", ".jpg":
		if ext == ".jpg" {
			return fe, nil
		}
	}
	return ext, nil
}

// newKey names an upload; prefix may be empty.
func newKey(prefix, ext string) string {
	key := uuid.NewString() + ext
	if prefix != "" {
		key = prefix + "/" + key
	}
	return key
}

// Pinger is implemented by backends with a cheap reachability check.
type Pinger interface {
	Ping(ctx context.Context) error
}

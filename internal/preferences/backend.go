package preferences

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/style-hub/style-hub/internal/cache"
)

//go:generate mockgen -source=backend.go -destination=mocks/mock_backend.go -package=mocks

// Backend persists one opaque blob per key. Read returns cache.ErrNotFound
// for a key that was never written.
type Backend interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
}

// Poster broadcasts the change signal after a successful write.
type Poster interface {
	Post() error
}

// FileBackend keeps each key in <dir>/<key>.yaml, written through a
// cache.FileStore so concurrent processes never observe a partial blob.
type FileBackend struct {
	dir   string
	files *cache.FileStore
}

// NewFileBackend stores blobs under dir using files for coordinated I/O.
func NewFileBackend(dir string, files *cache.FileStore) (*FileBackend, error) {
	if dir == "" {
		return nil, errors.New("preferences directory required")
	}
	if files == nil {
		return nil, errors.New("file store required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve preferences directory: %w", err)
	}
	return &FileBackend{dir: abs, files: files}, nil
}

// Path returns the file backing key.
func (b *FileBackend) Path(key string) string {
	return filepath.Join(b.dir, key+".yaml")
}

// Read implements Backend.
func (b *FileBackend) Read(ctx context.Context, key string) ([]byte, error) {
	return b.files.Read(ctx, b.Path(key))
}

// Write implements Backend.
func (b *FileBackend) Write(ctx context.Context, key string, data []byte) error {
	return b.files.Write(ctx, b.Path(key), data)
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Fetcher downloads the document named by a resource identity. Implementations
// must return promptly once ctx is cancelled.
type Fetcher interface {
	Fetch(ctx context.Context, identity string) ([]byte, error)
}

// FetcherFunc adapts a plain function to Fetcher.
type FetcherFunc func(ctx context.Context, identity string) ([]byte, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, identity string) ([]byte, error) {
	return f(ctx, identity)
}

// Entry describes one cached document on disk. The cache keeps no metadata
// file; the entry exists iff the file at Path exists.
type Entry struct {
	Identity string    `json:"identity"`
	Key      string    `json:"key"`
	Path     string    `json:"path"`
	Size     int64     `json:"size_bytes"`
	ModTime  time.Time `json:"mod_time"`
}

// Info summarizes the cache directory for diagnostics.
type Info struct {
	Directory  string `json:"directory"`
	Entries    int    `json:"entries"`
	TotalBytes int64  `json:"total_bytes"`
	Leases     int    `json:"leases"`
}

var (
	// ErrNotFound reports a missing cache file.
	ErrNotFound = errors.New("cache entry not found")

	// ErrCacheMiss is returned by Materialize when no entry exists yet. A
	// background refresh has already been scheduled when it is returned.
	ErrCacheMiss = fmt.Errorf("cache miss: %w", ErrNotFound)

	// ErrNetwork wraps every fetch failure (transport error or non-2xx status).
	ErrNetwork = errors.New("fetch failed")

	// ErrUnsupportedIdentity marks identities that are not http(s) URLs.
	ErrUnsupportedIdentity = errors.New("unsupported resource identity")
)

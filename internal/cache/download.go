package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

const (
	leaseDirName = "tmp"
	lockDirName  = ".locks"

	defaultConcurrency = 4
)

// Options configures a Cache.
type Options struct {
	// Root is the shared cache directory.
	Root string
	// Fetcher downloads identities. Required.
	Fetcher Fetcher
	// Files performs coordinated I/O. Defaults to a FileStore locking under
	// Root/.locks.
	Files *FileStore
	// Logger receives background refresh outcomes. Defaults to a discarding
	// logger.
	Logger *logrus.Logger
	// Concurrency bounds simultaneous fetches in this process.
	Concurrency int
}

// Cache maps resource identities to downloaded documents stored under Root.
type Cache struct {
	root     string
	tempRoot string
	files    *FileStore
	fetcher  Fetcher
	logger   *logrus.Logger

	sem    *semaphore.Weighted
	flight singleflight.Group
	wg     sync.WaitGroup
}

// New creates the cache directories and returns a ready Cache.
func New(opts Options) (*Cache, error) {
	if opts.Root == "" {
		return nil, errors.New("cache root required")
	}
	if opts.Fetcher == nil {
		return nil, errors.New("fetcher required")
	}

	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve cache root: %w", err)
	}
	tempRoot := filepath.Join(root, leaseDirName)
	if err := os.MkdirAll(tempRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directories: %w", err)
	}

	files := opts.Files
	if files == nil {
		files, err = NewFileStore(filepath.Join(root, lockDirName))
		if err != nil {
			return nil, err
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	return &Cache{
		root:     root,
		tempRoot: tempRoot,
		files:    files,
		fetcher:  opts.Fetcher,
		logger:   logger,
		sem:      semaphore.NewWeighted(int64(concurrency)),
	}, nil
}

// EntryPath returns where the entry for identity lives, whether or not it
// exists yet.
func (c *Cache) EntryPath(identity string) string {
	return filepath.Join(c.root, Key(identity))
}

// EnsureFresh downloads identity in the background and overwrites its entry
// on success. Failures are logged and otherwise ignored; the next scheduled
// refresh tries again.
func (c *Cache) EnsureFresh(identity string) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		started := time.Now()
		fields := logrus.Fields{
			"action":   "cache_refresh",
			"identity": identity,
			"key":      Key(identity),
		}
		if err := c.Refresh(context.Background(), identity); err != nil {
			c.logger.WithError(err).WithFields(fields).Warn("cache_refresh_failed")
			return
		}
		fields["elapsed_ms"] = time.Since(started).Milliseconds()
		c.logger.WithFields(fields).Debug("cache_refreshed")
	}()
}

// Refresh fetches identity and replaces its entry. Concurrent calls for the
// same identity in this process share one download. On error the existing
// entry, if any, is left as it was.
func (c *Cache) Refresh(ctx context.Context, identity string) error {
	_, err, _ := c.flight.Do(identity, func() (interface{}, error) {
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer c.sem.Release(1)

		data, err := c.fetcher.Fetch(ctx, identity)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", identity, err)
		}
		if err := c.files.Write(ctx, c.EntryPath(identity), data); err != nil {
			return nil, fmt.Errorf("store %s: %w", identity, err)
		}
		return nil, nil
	})
	return err
}

// Materialize copies the entry for identity into a fresh lease file. It never
// waits for a download: when no entry exists it schedules EnsureFresh and
// returns ErrCacheMiss.
func (c *Cache) Materialize(ctx context.Context, identity string) (*Lease, error) {
	dst := filepath.Join(c.tempRoot, uuid.NewString())
	err := c.files.Copy(ctx, c.EntryPath(identity), dst)
	switch {
	case err == nil:
		return newLease(identity, dst), nil
	case errors.Is(err, ErrNotFound):
		c.EnsureFresh(identity)
		return nil, ErrCacheMiss
	default:
		os.Remove(dst)
		return nil, fmt.Errorf("materialize %s: %w", identity, err)
	}
}

// Wait blocks until every background refresh started by EnsureFresh has
// finished.
func (c *Cache) Wait() {
	c.wg.Wait()
}

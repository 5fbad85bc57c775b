package cache

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Entry reports the on-disk state of identity's entry. ErrNotFound is
// returned when nothing has been downloaded yet.
func (c *Cache) Entry(identity string) (Entry, error) {
	path := c.EntryPath(identity)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	if info.IsDir() {
		return Entry{}, ErrNotFound
	}
	return Entry{
		Identity: identity,
		Key:      Key(identity),
		Path:     path,
		Size:     info.Size(),
		ModTime:  info.ModTime(),
	}, nil
}

// Info counts entries and outstanding leases.
func (c *Cache) Info() (Info, error) {
	out := Info{Directory: c.root}

	entries, err := os.ReadDir(c.root)
	if err != nil {
		return out, fmt.Errorf("read cache directory: %w", err)
	}
	for _, de := range entries {
		if !isEntryName(de) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		out.Entries++
		out.TotalBytes += info.Size()
	}

	leases, err := os.ReadDir(c.tempRoot)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return out, fmt.Errorf("read lease directory: %w", err)
	}
	for _, de := range leases {
		if de.Type().IsRegular() {
			out.Leases++
		}
	}
	return out, nil
}

// Clean removes every cache entry under an exclusive lock per entry and
// returns how many were removed. Leases are left alone because their holders
// may still be reading them.
func (c *Cache) Clean(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return 0, fmt.Errorf("read cache directory: %w", err)
	}

	removed := 0
	for _, de := range entries {
		if !isEntryName(de) {
			continue
		}
		if err := c.files.Remove(ctx, filepath.Join(c.root, de.Name())); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// PruneLeases deletes lease files older than maxAge. Leases are normally
// released by their holders; this collects the ones left behind by processes
// that exited without releasing.
func (c *Cache) PruneLeases(maxAge time.Duration) (int, error) {
	leases, err := os.ReadDir(c.tempRoot)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read lease directory: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	pruned := 0
	for _, de := range leases {
		if !de.Type().IsRegular() {
			continue
		}
		info, err := de.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(c.tempRoot, de.Name())); err == nil {
			pruned++
		}
	}
	return pruned, nil
}

// isEntryName matches the files Key produces, skipping the lock and lease
// directories and in-flight temp files.
func isEntryName(de fs.DirEntry) bool {
	if !de.Type().IsRegular() {
		return false
	}
	name := de.Name()
	if len(name) != 64 {
		return false
	}
	_, err := hex.DecodeString(name)
	return err == nil
}

package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStore performs coordinated reads and writes against a directory shared
// by several processes. Each path is guarded twice: an in-process RW lock
// (so goroutines do not pile up on the OS lock) and an advisory lock on a
// sidecar file in lockDir (so other processes are excluded too). Writes land
// in a temp file next to the target and are renamed into place.
type FileStore struct {
	lockDir string

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.RWMutex
	refs int
}

// NewFileStore creates a FileStore whose lock files live in lockDir.
func NewFileStore(lockDir string) (*FileStore, error) {
	if lockDir == "" {
		return nil, errors.New("lock directory required")
	}

	abs, err := filepath.Abs(lockDir)
	if err != nil {
		return nil, fmt.Errorf("resolve lock directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	return &FileStore{
		lockDir: abs,
		locks:   make(map[string]*entryLock),
	}, nil
}

// Write replaces the content of path with data under an exclusive lease.
func (s *FileStore) Write(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	held, err := s.lock(path, true)
	if err != nil {
		return err
	}
	defer held.unlock()

	tempFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempName := tempFile.Name()

	_, err = copyWithContext(ctx, tempFile, bytes.NewReader(data))
	if err == nil {
		err = tempFile.Sync()
	}
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return fmt.Errorf("write %s: %w", path, err)
	}

	if err := os.Chmod(tempName, 0o644); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("chmod %s: %w", tempName, err)
	}
	if err := os.Rename(tempName, path); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

// Read returns the content of path under a shared lease. A missing file or a
// directory at path yields ErrNotFound.
func (s *FileStore) Read(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	held, err := s.lock(path, false)
	if err != nil {
		return nil, err
	}
	defer held.unlock()

	return readRegular(path)
}

// Copy reads src under a shared lease and writes the bytes to dst. dst is
// private to the caller, so it is written without coordination; missing
// parent directories are created.
func (s *FileStore) Copy(ctx context.Context, src, dst string) error {
	data, err := s.Read(ctx, src)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", dst, err)
	}
	if err := os.WriteFile(dst, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return nil
}

// Remove deletes path under an exclusive lease, together with its lock file.
// Removing a missing file is not an error.
func (s *FileStore) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	held, err := s.lock(path, true)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		held.unlock()
		return err
	}
	held.discard()
	return nil
}

// heldLock is a path locked both in-process and across processes.
type heldLock struct {
	file         *fileLock
	releaseLocal func()
}

func (h *heldLock) unlock() {
	_ = h.file.release()
	h.releaseLocal()
}

// discard releases the lock and deletes its lock file. Only valid for
// exclusive locks.
func (h *heldLock) discard() {
	_ = h.file.discard()
	h.releaseLocal()
}

// lock acquires the in-process lock and then the cross-process lock for path.
func (s *FileStore) lock(path string, exclusive bool) (*heldLock, error) {
	canonical, err := canonicalPath(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	key := Key(canonical)

	s.mu.Lock()
	entry := s.locks[key]
	if entry == nil {
		entry = &entryLock{}
		s.locks[key] = entry
	}
	entry.refs++
	s.mu.Unlock()

	if exclusive {
		entry.mu.Lock()
	} else {
		entry.mu.RLock()
	}
	releaseLocal := func() {
		if exclusive {
			entry.mu.Unlock()
		} else {
			entry.mu.RUnlock()
		}
		s.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}

	fl, err := acquireFileLock(filepath.Join(s.lockDir, key+".lock"), exclusive)
	if err != nil {
		releaseLocal()
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	return &heldLock{file: fl, releaseLocal: releaseLocal}, nil
}

// canonicalPath makes path absolute and resolves symlinks in its directory,
// so processes reaching the same file through different links share a lock.
// The file itself may not exist yet.
func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	dir, err := filepath.EvalSymlinks(filepath.Dir(abs))
	if err != nil {
		return abs, nil
	}
	return filepath.Join(dir, filepath.Base(abs)), nil
}

func readRegular(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}

//go:build unix

package cache

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// fileLock is an flock(2) advisory lock held on an open lock file.
type fileLock struct {
	f    *os.File
	path string
}

func acquireFileLock(path string, exclusive bool) (*fileLock, error) {
	how := unix.LOCK_SH
	if exclusive {
		how = unix.LOCK_EX
	}

	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
		if err != nil {
			return nil, err
		}
		for {
			err = unix.Flock(int(f.Fd()), how)
			if !errors.Is(err, unix.EINTR) {
				break
			}
		}
		if err != nil {
			f.Close()
			return nil, err
		}

		// A holder may have unlinked the file while we waited; the lock is
		// only good if path still names the inode we locked.
		if sameFile(f, path) {
			return &fileLock{f: f, path: path}, nil
		}
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
	}
}

func sameFile(f *os.File, path string) bool {
	held, err := f.Stat()
	if err != nil {
		return false
	}
	current, err := os.Stat(path)
	if err != nil {
		return false
	}
	return os.SameFile(held, current)
}

func (l *fileLock) release() error {
	err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	closeErr := l.f.Close()
	if err != nil {
		return err
	}
	return closeErr
}

// discard unlinks the lock file and then releases it. Only call it while
// holding the lock exclusively.
func (l *fileLock) discard() error {
	removeErr := os.Remove(l.path)
	if err := l.release(); err != nil {
		return err
	}
	if errors.Is(removeErr, os.ErrNotExist) {
		return nil
	}
	return removeErr
}

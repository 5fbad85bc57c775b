//go:build windows

package cache

import (
	"os"

	"golang.org/x/sys/windows"
)

// fileLock is a LockFileEx byte-range lock on the first byte of a lock file.
type fileLock struct {
	f *os.File
}

func acquireFileLock(path string, exclusive bool) (*fileLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}

	var flags uint32
	if exclusive {
		flags = windows.LOCKFILE_EXCLUSIVE_LOCK
	}
	if err := windows.LockFileEx(windows.Handle(f.Fd()), flags, 0, 1, 0, new(windows.Overlapped)); err != nil {
		f.Close()
		return nil, err
	}
	return &fileLock{f: f}, nil
}

func (l *fileLock) release() error {
	err := windows.UnlockFileEx(windows.Handle(l.f.Fd()), 0, 1, 0, new(windows.Overlapped))
	closeErr := l.f.Close()
	if err != nil {
		return err
	}
	return closeErr
}

// discard releases the lock. Windows refuses to delete a file another process
// holds open, so the lock file stays.
func (l *fileLock) discard() error {
	return l.release()
}

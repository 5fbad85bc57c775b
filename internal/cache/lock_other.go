//go:build !unix && !windows

package cache

// fileLock is a no-op on platforms without advisory file locks; only the
// in-process lock applies there.
type fileLock struct{}

func acquireFileLock(string, bool) (*fileLock, error) {
	return &fileLock{}, nil
}

func (l *fileLock) release() error {
	return nil
}

func (l *fileLock) discard() error {
	return nil
}

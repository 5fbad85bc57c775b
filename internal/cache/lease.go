package cache

import (
	"errors"
	"io/fs"
	"os"
	"sync"
)

// Lease is a private copy of a cache entry, owned by the caller that obtained
// it from Materialize. The file at Path stays valid until Release is called.
type Lease struct {
	Identity string
	Path     string

	once sync.Once
	err  error
}

func newLease(identity, path string) *Lease {
	return &Lease{Identity: identity, Path: path}
}

// Release deletes the lease file. Only the first call does any work; later
// calls return the first result.
func (l *Lease) Release() error {
	if l == nil {
		return nil
	}
	l.once.Do(func() {
		if err := os.Remove(l.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			l.err = err
		}
	})
	return l.err
}

// Close implements io.Closer so leases fit defer-based cleanup helpers.
func (l *Lease) Close() error {
	return l.Release()
}

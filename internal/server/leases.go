package server

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/style-hub/style-hub/internal/cache"
	"github.com/style-hub/style-hub/internal/styles"
)

// ErrLeaseNotFound is returned when releasing an unknown lease ID.
var ErrLeaseNotFound = errors.New("lease not found")

// LeaseTable tracks leases handed to API clients by ID so they can be
// released by a later request, or all at once on shutdown.
type LeaseTable struct {
	materializer styles.Materializer

	mu     sync.Mutex
	leases map[string]*cache.Lease
}

// NewLeaseTable returns an empty table backed by m.
func NewLeaseTable(m styles.Materializer) *LeaseTable {
	return &LeaseTable{
		materializer: m,
		leases:       make(map[string]*cache.Lease),
	}
}

// Acquire materializes identity and records the lease under a new ID.
func (t *LeaseTable) Acquire(ctx context.Context, identity string) (string, *cache.Lease, error) {
	lease, err := t.materializer.Materialize(ctx, identity)
	if err != nil {
		return "", nil, err
	}

	id := uuid.NewString()
	t.mu.Lock()
	t.leases[id] = lease
	t.mu.Unlock()
	return id, lease, nil
}

// Release releases and forgets the lease with the given ID.
func (t *LeaseTable) Release(id string) error {
	t.mu.Lock()
	lease, ok := t.leases[id]
	delete(t.leases, id)
	t.mu.Unlock()

	if !ok {
		return ErrLeaseNotFound
	}
	return lease.Release()
}

// ReleaseAll releases every outstanding lease and returns how many there
// were.
func (t *LeaseTable) ReleaseAll() int {
	t.mu.Lock()
	leases := t.leases
	t.leases = make(map[string]*cache.Lease)
	t.mu.Unlock()

	for _, lease := range leases {
		_ = lease.Release()
	}
	return len(leases)
}

// Len reports the number of outstanding leases.
func (t *LeaseTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.leases)
}

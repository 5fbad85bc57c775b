package styles

import (
	"context"

	"github.com/style-hub/style-hub/internal/cache"
)

//go:generate mockgen -source=materializer.go -destination=mocks/mock_materializer.go -package=mocks

// Materializer hands out private copies of cached documents.
type Materializer interface {
	Materialize(ctx context.Context, identity string) (*cache.Lease, error)
}

package refresh

import (
	"context"

	"github.com/style-hub/style-hub/internal/styles"
)

//go:generate mockgen -source=ports.go -destination=mocks/mock_ports.go -package=mocks

// Cache is the part of the download cache the scheduler drives.
type Cache interface {
	EnsureFresh(identity string)
	Refresh(ctx context.Context, identity string) error
}

// Source supplies the configurations whose documents are kept fresh.
type Source interface {
	Configurations(ctx context.Context) []styles.Configuration
}

package styles

import (
	"context"
	"errors"
)

// Paths locates the leased copies of a configuration's two documents.
type Paths struct {
	SwiftFormat string
	Uncrustify  string
}

// WithConfiguration leases both documents of c and calls fn with their paths.
// Both identities are always materialized, so each miss schedules its own
// download. If either is missing fn is not called and the error (wrapping
// cache.ErrCacheMiss) is returned. Leases are released on every exit path.
func WithConfiguration(ctx context.Context, m Materializer, c Configuration, fn func(Paths) error) error {
	swift, swiftErr := m.Materialize(ctx, c.SwiftFormat)
	defer swift.Release()
	uncrustify, uncrustifyErr := m.Materialize(ctx, c.Uncrustify)
	defer uncrustify.Release()

	if err := errors.Join(swiftErr, uncrustifyErr); err != nil {
		return err
	}

	return fn(Paths{SwiftFormat: swift.Path, Uncrustify: uncrustify.Path})
}

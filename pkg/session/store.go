package session

import (
	"context"
	"time"
)

// Store defines the interface for credential persistence.
// It is the only code permitted to touch the underlying storage entry;
// everything else goes through Bundle values returned from here.
type Store interface {
	// Read retrieves the current bundle.
	// Returns a zero Bundle (not an error) when nothing is stored.
	Read(ctx context.Context) (Bundle, error)

	// Write replaces the stored bundle in full.
	// Partial updates are expressed by the caller merging first.
	Write(ctx context.Context, bundle Bundle) error

	// Clear removes the stored bundle and the companion refresh timestamp.
	Clear(ctx context.Context) error

	// ReadRefreshTime retrieves when credentials were last written.
	// Returns the zero time (not an error) when nothing is stored.
	ReadRefreshTime(ctx context.Context) (time.Time, error)

	// WriteRefreshTime records when credentials were last written.
	WriteRefreshTime(ctx context.Context, t time.Time) error
}

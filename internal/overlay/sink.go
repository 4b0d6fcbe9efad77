// Package overlay defines the host-application surface the poller writes
// to: setting the text of a named overlay and listing the overlays that
// can be bound.
package overlay

import (
	"context"
	"errors"
)

// ErrNotFound is returned by sinks that can tell a missing overlay apart
// from a failed write.
var ErrNotFound = errors.New("overlay not found")

// Sink sets overlay text in the host application.
type Sink interface {
	// SetText replaces the text of the overlay named name.
	SetText(ctx context.Context, name, text string) error
	// ListNames returns the names of the overlays that can display text.
	ListNames(ctx context.Context) ([]string, error)
}

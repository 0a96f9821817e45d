package docstore

import (
	"context"
	"time"
)

// Well-known document paths.
const (
	ReadingsPath   = "readings/latest"
	ThresholdsPath = "thresholds/settings"
	ControlsPath   = "controls/settings"
)

// Document is a point-in-time read of one document.
type Document struct {
	Path       string
	Data       map[string]any
	Exists     bool
	UpdateTime time.Time
}

// Event is delivered to subscribers on every change of a document. Err is
// set when the subscription failed; no further events follow an error.
type Event struct {
	Document
	Err error
}

// Unsubscribe releases a subscription and blocks until its callback has
// returned for the last time. Calling it more than once is a no-op.
type Unsubscribe func()

// Store is a key-path document database with real-time subscriptions and
// full-document writes.
type Store interface {
	Get(ctx context.Context, path string) (Document, error)
	// Set replaces the whole document at path.
	Set(ctx context.Context, path string, data map[string]any) error
	// Subscribe delivers the current state of path followed by every change,
	// in order, on a goroutine owned by the store.
	Subscribe(ctx context.Context, path string, fn func(Event)) (Unsubscribe, error)
	Close() error
}

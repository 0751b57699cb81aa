package weather

import (
	"context"
	"time"
)

// Fetcher retrieves the raw markup for one location path. Implementations
// perform exactly one outbound request per call; retry policy lives in the
// coordinator.
type Fetcher interface {
	Fetch(ctx context.Context, locationPath string) (Page, error)
}

// Extractor turns raw markup into a Snapshot, or fails with an
// extraction error when the mandatory anchor is missing.
type Extractor interface {
	Extract(markup []byte, fetchedAt time.Time) (*Snapshot, error)
}

// Publisher pushes projected entities toward the host platform.
type Publisher interface {
	// Announce registers the entities for a location (discovery); called
	// once per location before the first state publish.
	Announce(ctx context.Context, slug string, entities []Entity) error
	// Publish sends current entity states for a location.
	Publish(ctx context.Context, slug string, entities []Entity) error
	Close()
}

// Hasher computes digests for markup change detection.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces refresh cycle IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

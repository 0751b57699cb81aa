package weather

import "errors"

// Error taxonomy for a refresh cycle. The coordinator recovers from all of
// these locally; none escalates past it during steady-state operation.
var (
	// ErrFetch marks network or HTTP-level failures.
	ErrFetch = errors.New("fetch failed")
	// ErrExtraction marks markup that no longer has the expected shape.
	ErrExtraction = errors.New("markup shape mismatch")
	// ErrNoData marks a page that resolved but has no content for the
	// location, typically an invalid location path (404).
	ErrNoData = errors.New("no data for location")
)

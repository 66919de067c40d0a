package pagination

import "errors"

var (
	// ErrUnavailable is returned when the first page cannot be fetched.
	// It is distinct from a successful listing with zero items.
	ErrUnavailable = errors.New("listing unavailable")

	// ErrIncomplete is returned under PolicyFailFast when the listing
	// stopped before the upstream reported its end.
	ErrIncomplete = errors.New("listing incomplete")

	// ErrInvalidQuery is returned for a query without an endpoint.
	ErrInvalidQuery = errors.New("invalid listing query")
)

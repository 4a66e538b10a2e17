package ledger

import "errors"

var (
	// ErrNotFound is returned for a missing profile when self-healing
	// defaulting is disabled. The default backends never return it from
	// Profile, but it stays in the taxonomy for hard-fail deployments.
	ErrNotFound = errors.New("profile not found")

	// ErrUnavailable marks a store-layer failure (backend unreachable,
	// transaction failed). Callers map it to a 503 and never to a
	// validation error.
	ErrUnavailable = errors.New("ledger store unavailable")
)

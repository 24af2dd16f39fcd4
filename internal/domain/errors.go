package domain

import "errors"

// Error classes shared by every strategy. All are terminal for the run that
// produced them; nothing retries internally.
var (
	// ErrInvalidConfiguration covers bad sizes, non-positive counts, out of
	// range constants and empty catalogs. Raised before any search work.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrInsufficientCandidates means the catalog (or a selection pool) is too
	// small for the requested portfolio.
	ErrInsufficientCandidates = errors.New("insufficient candidates")

	// ErrOptimizationFailure means the convex solver produced no feasible weights.
	ErrOptimizationFailure = errors.New("optimization failure")

	// ErrUnknownStrategy is returned for an unregistered strategy name.
	ErrUnknownStrategy = errors.New("unknown strategy")

	// ErrNotFound is returned by repositories for missing records.
	ErrNotFound = errors.New("not found")
)

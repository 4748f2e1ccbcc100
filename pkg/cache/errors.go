package cache

import "errors"

// Sentinel errors for caching operations.
var (
	// ErrNotFound is returned when a requested item does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable is returned when the backend cannot be reached
	// (e.g. Redis connection failure). Callers treat this as a miss.
	ErrUnavailable = errors.New("cache backend unavailable")
)

package cache

import "errors"

var (
	// ErrInvalidConfig is returned when a cache is constructed with unusable settings.
	ErrInvalidConfig = errors.New("invalid cache config")

	// ErrUnexpectedType is returned by Fetch when a cached value has a different type.
	ErrUnexpectedType = errors.New("cached value has unexpected type")

	// ErrFetchPanicked is returned to every caller sharing a fetch that panicked.
	ErrFetchPanicked = errors.New("query cache fetch panicked")
)

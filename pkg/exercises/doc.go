// Package exercises is the read model for the downloadable exercise catalog.
//
// Repository reads the exercises table directly; CachedRepository puts a
// cache.QueryCache in front of it so the catalog is not re-queried on every
// request. Writes through CachedRepository invalidate the cached catalog.
package exercises

package exercises

import (
	"context"
	"time"

	"github.com/speechkit/practicehub/pkg/cache"
)

const (
	listKey   = "exercises:list"
	keyPrefix = "exercises:"
)

// CachedRepository reads the catalog through a QueryCache.
type CachedRepository struct {
	repo  *Repository
	cache *cache.QueryCache
	ttl   time.Duration
}

// NewCachedRepository wraps repo. ttl <= 0 uses the cache default.
func NewCachedRepository(repo *Repository, qc *cache.QueryCache, ttl time.Duration) *CachedRepository {
	return &CachedRepository{repo: repo, cache: qc, ttl: ttl}
}

func (c *CachedRepository) List(ctx context.Context) ([]Exercise, error) {
	return cache.Fetch(ctx, c.cache, listKey, c.ttl, c.repo.List)
}

func (c *CachedRepository) Get(ctx context.Context, id string) (*Exercise, error) {
	return cache.Fetch(ctx, c.cache, keyPrefix+id, c.ttl, func(ctx context.Context) (*Exercise, error) {
		return c.repo.Get(ctx, id)
	})
}

// Create inserts e and drops every cached catalog entry.
func (c *CachedRepository) Create(ctx context.Context, e *Exercise) error {
	if err := c.repo.Create(ctx, e); err != nil {
		return err
	}
	c.cache.Invalidate(keyPrefix)
	return nil
}

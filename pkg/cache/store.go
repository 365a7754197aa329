package cache

import (
	"context"
	"net/http"
	"time"
)

// CachedResponse is a captured HTTP response.
type CachedResponse struct {
	Status int         `json:"status"`
	Header http.Header `json:"header"`
	Body   []byte      `json:"body"`
}

// ResponseStore holds cached HTTP responses.
type ResponseStore interface {
	// Get returns ok=false on a miss. An error means the store itself failed.
	Get(ctx context.Context, key string) (resp *CachedResponse, ok bool, err error)
	Set(ctx context.Context, key string, resp *CachedResponse, ttl time.Duration) error
}

// Invalidator is implemented by stores that support bulk removal.
type Invalidator interface {
	// Invalidate removes every key containing substr.
	Invalidate(ctx context.Context, substr string) (int, error)
	Clear(ctx context.Context) error
}

// ManagerStore keeps responses in a process-local Manager.
type ManagerStore struct {
	manager *Manager
}

// NewManagerStore creates a new ManagerStore
func NewManagerStore(manager *Manager) *ManagerStore {
	return &ManagerStore{manager: manager}
}

// Manager returns the underlying cache.
func (s *ManagerStore) Manager() *Manager {
	return s.manager
}

func (s *ManagerStore) Get(_ context.Context, key string) (*CachedResponse, bool, error) {
	v, ok := s.manager.Get(key)
	if !ok {
		return nil, false, nil
	}
	resp, ok := v.(*CachedResponse)
	if !ok {
		s.manager.Delete(key)
		return nil, false, nil
	}
	return resp, true, nil
}

func (s *ManagerStore) Set(_ context.Context, key string, resp *CachedResponse, ttl time.Duration) error {
	s.manager.Set(key, resp, ttl)
	return nil
}

func (s *ManagerStore) Invalidate(_ context.Context, substr string) (int, error) {
	return s.manager.DeleteMatching(substr), nil
}

func (s *ManagerStore) Clear(_ context.Context) error {
	s.manager.Clear()
	return nil
}

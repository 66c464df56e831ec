package memory

import (
	"context"
	"path"
	"time"

	"ai-research-be/internal/repository/contract"

	"github.com/patrickmn/go-cache"
)

// MemoryStore is a go-cache backed DurableStore. It serves tests and
// degraded mode when Redis is unreachable.
type MemoryStore struct {
	cache *cache.Cache
}

var _ contract.DurableStore = &MemoryStore{}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cache: cache.New(cache.NoExpiration, 10*time.Minute),
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, found := s.cache.Get(key); found {
		return v.([]byte), true, nil
	}
	return nil, false, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	// Copy so callers reusing their buffer cannot mutate stored state.
	buf := make([]byte, len(value))
	copy(buf, value)
	s.cache.Set(key, buf, ttl)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

func (s *MemoryStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	for key := range s.cache.Items() {
		if ok, _ := path.Match(pattern, key); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

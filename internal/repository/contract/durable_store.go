package contract

import (
	"context"
	"time"
)

// DurableStore is the best-effort TTL key-value backing for sessions,
// workflow state and research artifacts. Expired entries vanish passively;
// nothing is ever deleted explicitly except via Delete.
type DurableStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
}

package idempotency

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Header is the request header clients use to make order submission safe
// to retry.
const Header = "Idempotency-Key"

// KeyFromRequest extracts the client-supplied idempotency key, empty when
// the client did not send one.
func KeyFromRequest(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(Header))
}

// Store remembers seen keys in redis for a TTL.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

// Seen records the key and reports whether it was already present.
func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, "idem:order:"+key, "1", s.ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// Release drops a recorded key, used when the guarded operation failed
// transiently and the client should be allowed to retry with the same key.
func (s *Store) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, "idem:order:"+key).Err()
}

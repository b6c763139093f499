// Package redisverify keeps email-verification state in redis: issued
// codes, attempt counters and abuse blocks, each under its own key prefix
// and TTL.
package redisverify

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	codeKeyPrefix    = "email_verify:code:"
	attemptKeyPrefix = "email_verify:attempt:"
	blockKeyPrefix   = "email_verify:block:"
)

type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) IsBlocked(ctx context.Context, email string) (bool, error) {
	n, err := s.rdb.Exists(ctx, blockKeyPrefix+email).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) Block(ctx context.Context, email string, ttl time.Duration) error {
	return s.rdb.Set(ctx, blockKeyPrefix+email, "blocked", ttl).Err()
}

// RecordAttempt increments the attempt counter and refreshes its TTL,
// returning the new count.
func (s *Store) RecordAttempt(ctx context.Context, email string, ttl time.Duration) (int, error) {
	key := attemptKeyPrefix + email
	n, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if err := s.rdb.Expire(ctx, key, ttl).Err(); err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *Store) IssueCode(ctx context.Context, email, code string, ttl time.Duration) error {
	return s.rdb.Set(ctx, codeKeyPrefix+email, code, ttl).Err()
}

// LookupCode returns the stored code, or empty when none is live.
func (s *Store) LookupCode(ctx context.Context, email string) (string, error) {
	code, err := s.rdb.Get(ctx, codeKeyPrefix+email).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return code, nil
}

func (s *Store) DeleteCode(ctx context.Context, email string) error {
	return s.rdb.Del(ctx, codeKeyPrefix+email).Err()
}

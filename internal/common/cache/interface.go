package cache

import (
	"context"
	"time"
)

// Cache is the subset of Redis operations used by the execution service.
type Cache interface {
	BasicOps
	ZSetOps
	LockOps
	PipelineOps

	Ping(ctx context.Context) error
	Close() error
}

// BasicOps covers string keys.
type BasicOps interface {
	// Get returns "" with a nil error when the key does not exist.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, keys ...string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// ZSetOps covers sorted sets.
type ZSetOps interface {
	ZAdd(ctx context.Context, key string, members ...ZMember) error
	ZRem(ctx context.Context, key string, members ...string) error
	// ZRangeByScore returns members with min <= score <= max, at most limit
	// of them when limit is positive.
	ZRangeByScore(ctx context.Context, key string, min, max float64, limit int64) ([]string, error)
	ZCard(ctx context.Context, key string) (int64, error)
}

// LockOps is a best-effort lease lock on a single key. TryLock returns an
// owner token; Unlock only releases a lease still held under that token.
type LockOps interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Unlock(ctx context.Context, key, token string) error
}

// PipelineOps batches writes into one round trip.
type PipelineOps interface {
	Pipeline(ctx context.Context, fn func(pipe Pipeliner) error) error
}

// Pipeliner queues commands until the pipeline executes.
type Pipeliner interface {
	Set(key string, value interface{}, ttl time.Duration) error
	Del(keys ...string) error
	ZAdd(key string, members ...ZMember) error
	ZRem(key string, members ...string) error
}

// ZMember is a sorted set entry.
type ZMember struct {
	Member string
	Score  float64
}

package cache

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"math/big"
	"time"

	"execoj/pkg/utils/logger"

	"go.uber.org/zap"
)

// NullCacheValue marks a cached empty result.
const NullCacheValue = "$NULL$"

// Loader fetches the authoritative value on a cache miss.
type Loader[T any] func(ctx context.Context) (T, error)

// LoadJSON is a JSON cache-aside read. Empty results are stored as
// NullCacheValue for emptyTTL. Cache failures are logged and never fail the
// read; an undecodable entry is dropped and reloaded.
func LoadJSON[T any](ctx context.Context, c Cache, key string, ttl, emptyTTL time.Duration, isEmpty func(T) bool, load Loader[T]) (T, error) {
	var zero T

	cached, err := c.Get(ctx, key)
	switch {
	case err != nil:
		logger.Warn(ctx, "cache read failed", zap.String("key", key), zap.Error(err))
	case cached == NullCacheValue:
		return zero, nil
	case cached != "":
		var v T
		if err := json.Unmarshal([]byte(cached), &v); err == nil {
			return v, nil
		}
		logger.Warn(ctx, "dropping undecodable cache entry", zap.String("key", key))
		_ = c.Del(ctx, key)
	}

	data, err := load(ctx)
	if err != nil {
		return zero, err
	}

	value, entryTTL := NullCacheValue, emptyTTL
	if !isEmpty(data) {
		payload, err := json.Marshal(data)
		if err != nil {
			return data, nil
		}
		value, entryTTL = string(payload), ttl
	}
	if err := c.Set(ctx, key, value, entryTTL); err != nil {
		logger.Warn(ctx, "cache write failed", zap.String("key", key), zap.Error(err))
	}
	if value == NullCacheValue {
		return zero, nil
	}
	return data, nil
}

// JitterTTL shortens ttl by up to 10% so related keys do not expire together.
func JitterTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return ttl
	}
	maxJitter := int64(ttl / 10)
	if maxJitter <= 0 {
		return ttl
	}
	n, err := rand.Int(rand.Reader, big.NewInt(maxJitter+1))
	if err != nil {
		return ttl
	}
	return ttl - time.Duration(n.Int64())
}

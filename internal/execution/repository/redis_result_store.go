package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"execoj/internal/common/cache"
	"execoj/internal/execution/model"
	appErr "execoj/pkg/errors"
	"execoj/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	resultKeyPrefix  = "execoj:result:"
	resultIndexKey   = "execoj:results:by-end"
	resultSweepLock  = "execoj:results:sweep"
	sweepLockTTL     = time.Minute
	sweepBatchSize   = 500
	defaultResultTTL = time.Hour
)

// RedisResultStore keeps terminal results in Redis with a TTL and an
// end-time index so retention sweeps do not scan the keyspace.
type RedisResultStore struct {
	cache cache.Cache
	TTL   time.Duration
}

// NewRedisResultStore creates a store. A non-positive ttl uses one hour.
func NewRedisResultStore(cacheClient cache.Cache, ttl time.Duration) *RedisResultStore {
	if ttl <= 0 {
		ttl = defaultResultTTL
	}
	return &RedisResultStore{cache: cacheClient, TTL: ttl}
}

// Save persists result and indexes it by end time.
func (r *RedisResultStore) Save(ctx context.Context, result *model.ExecutionResult) error {
	if result == nil || result.ID == "" {
		return appErr.ValidationError("requestId", "required")
	}
	if r.cache == nil {
		return appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result failed: %w", err)
	}
	err = r.cache.Pipeline(ctx, func(pipe cache.Pipeliner) error {
		if err := pipe.Set(resultKeyPrefix+result.ID, string(data), r.TTL); err != nil {
			return err
		}
		return pipe.ZAdd(resultIndexKey, cache.ZMember{Member: result.ID, Score: endScore(result.EndTime)})
	})
	if err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "store result failed")
	}
	return nil
}

// Get returns a result by execution id.
func (r *RedisResultStore) Get(ctx context.Context, id string) (*model.ExecutionResult, error) {
	if id == "" {
		return nil, appErr.ValidationError("requestId", "required")
	}
	if r.cache == nil {
		return nil, appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	val, err := r.cache.Get(ctx, resultKeyPrefix+id)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.CacheError, "load result failed")
	}
	if val == "" {
		return nil, appErr.Newf(appErr.ExecutionNotFound, "execution %s not found", id)
	}
	var result model.ExecutionResult
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		return nil, appErr.Wrapf(err, appErr.CacheError, "decode result failed")
	}
	return &result, nil
}

// DeleteOlderThan removes results whose end time precedes cutoff. Only one
// replica sweeps at a time; the others return zero.
func (r *RedisResultStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	if r.cache == nil {
		return 0, appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	token, locked, err := r.cache.TryLock(ctx, resultSweepLock, sweepLockTTL)
	if err != nil {
		return 0, appErr.Wrapf(err, appErr.CacheError, "acquire sweep lock failed")
	}
	if !locked {
		logger.Debug(ctx, "result sweep skipped, lock held elsewhere")
		return 0, nil
	}
	defer func() {
		if err := r.cache.Unlock(context.WithoutCancel(ctx), resultSweepLock, token); err != nil {
			logger.Warn(ctx, "release sweep lock failed", zap.Error(err))
		}
	}()

	removed := 0
	for {
		ids, err := r.cache.ZRangeByScore(ctx, resultIndexKey, math.Inf(-1), endScore(cutoff)-1, sweepBatchSize)
		if err != nil {
			return removed, appErr.Wrapf(err, appErr.CacheError, "scan result index failed")
		}
		if len(ids) == 0 {
			return removed, nil
		}
		keys := make([]string, 0, len(ids))
		for _, id := range ids {
			keys = append(keys, resultKeyPrefix+id)
		}
		err = r.cache.Pipeline(ctx, func(pipe cache.Pipeliner) error {
			if err := pipe.Del(keys...); err != nil {
				return err
			}
			return pipe.ZRem(resultIndexKey, ids...)
		})
		if err != nil {
			return removed, appErr.Wrapf(err, appErr.CacheError, "delete results failed")
		}
		removed += len(ids)
		if len(ids) < sweepBatchSize {
			return removed, nil
		}
	}
}

func endScore(t time.Time) float64 {
	return float64(t.UnixMilli())
}

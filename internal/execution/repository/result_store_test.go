package repository_test

import (
	"context"
	"testing"
	"time"

	"execoj/internal/common/cache"
	"execoj/internal/execution/model"
	"execoj/internal/execution/repository"
	appErr "execoj/pkg/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisCache(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	c, err := cache.NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("new cache failed: %v", err)
	}
	return c, mr
}

func finished(id string, end time.Time) *model.ExecutionResult {
	return &model.ExecutionResult{
		ID:        id,
		Status:    model.StatusCompleted,
		Category:  model.CategoryAlgorithm,
		Passed:    true,
		StartTime: end.Add(-time.Second),
		EndTime:   end,
		TestResults: []model.TestResult{
			{TestCaseID: "t1", Passed: true, Actual: "3"},
		},
	}
}

type resultStore interface {
	Save(ctx context.Context, result *model.ExecutionResult) error
	Get(ctx context.Context, id string) (*model.ExecutionResult, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

func eachStore(t *testing.T, fn func(t *testing.T, store resultStore)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, repository.NewMemoryResultStore())
	})
	t.Run("redis", func(t *testing.T) {
		c, _ := newRedisCache(t)
		fn(t, repository.NewRedisResultStore(c, time.Hour))
	})
}

func TestResultStoreRoundTrip(t *testing.T) {
	eachStore(t, func(t *testing.T, store resultStore) {
		ctx := context.Background()
		want := finished("a", time.Now())
		if err := store.Save(ctx, want); err != nil {
			t.Fatalf("save failed: %v", err)
		}
		got, err := store.Get(ctx, "a")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if got.ID != "a" || got.Status != model.StatusCompleted || !got.Passed {
			t.Fatalf("unexpected result: %+v", got)
		}
		if len(got.TestResults) != 1 || got.TestResults[0].Actual != "3" {
			t.Fatalf("unexpected test results: %+v", got.TestResults)
		}
	})
}

func TestResultStoreMissingIsNotFound(t *testing.T) {
	eachStore(t, func(t *testing.T, store resultStore) {
		_, err := store.Get(context.Background(), "missing")
		if appErr.GetCode(err) != appErr.ExecutionNotFound {
			t.Fatalf("expected ExecutionNotFound, got %v", err)
		}
	})
}

func TestResultStoreRejectsMissingID(t *testing.T) {
	eachStore(t, func(t *testing.T, store resultStore) {
		if err := store.Save(context.Background(), &model.ExecutionResult{}); err == nil {
			t.Fatal("expected validation error")
		}
	})
}

func TestResultStoreDeleteOlderThan(t *testing.T) {
	eachStore(t, func(t *testing.T, store resultStore) {
		ctx := context.Background()
		now := time.Now()
		_ = store.Save(ctx, finished("old", now.Add(-2*time.Hour)))
		_ = store.Save(ctx, finished("older", now.Add(-3*time.Hour)))
		_ = store.Save(ctx, finished("fresh", now))

		removed, err := store.DeleteOlderThan(ctx, now.Add(-time.Hour))
		if err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if removed != 2 {
			t.Fatalf("expected 2 removed, got %d", removed)
		}
		if _, err := store.Get(ctx, "old"); appErr.GetCode(err) != appErr.ExecutionNotFound {
			t.Fatalf("old result should be gone, got %v", err)
		}
		if _, err := store.Get(ctx, "fresh"); err != nil {
			t.Fatalf("fresh result should remain: %v", err)
		}
	})
}

func TestRedisResultStoreAppliesTTLAndIndex(t *testing.T) {
	c, mr := newRedisCache(t)
	store := repository.NewRedisResultStore(c, 30*time.Minute)
	ctx := context.Background()

	if err := store.Save(ctx, finished("a", time.Now())); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if ttl := mr.TTL("execoj:result:a"); ttl != 30*time.Minute {
		t.Fatalf("unexpected ttl: %v", ttl)
	}
	if n, _ := c.ZCard(ctx, "execoj:results:by-end"); n != 1 {
		t.Fatalf("expected one indexed result, got %d", n)
	}

	mr.FastForward(31 * time.Minute)
	if _, err := store.Get(ctx, "a"); appErr.GetCode(err) != appErr.ExecutionNotFound {
		t.Fatalf("expired result should be not found, got %v", err)
	}
}

func TestRedisResultStoreSkipsSweepWhenLocked(t *testing.T) {
	c, mr := newRedisCache(t)
	store := repository.NewRedisResultStore(c, time.Hour)
	ctx := context.Background()
	now := time.Now()
	_ = store.Save(ctx, finished("old", now.Add(-2*time.Hour)))

	mr.Set("execoj:results:sweep", "1")
	removed, err := store.DeleteOlderThan(ctx, now)
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if removed != 0 {
		t.Fatalf("expected no removals while locked, got %d", removed)
	}

	mr.Del("execoj:results:sweep")
	removed, _ = store.DeleteOlderThan(ctx, now)
	if removed != 1 {
		t.Fatalf("expected one removal after unlock, got %d", removed)
	}
	if mr.Exists("execoj:results:sweep") {
		t.Fatal("sweep lock should be released")
	}
}

func TestRedisResultStoreSweepKeepsForeignLock(t *testing.T) {
	c, mr := newRedisCache(t)
	store := repository.NewRedisResultStore(c, time.Hour)
	ctx := context.Background()
	now := time.Now()
	_ = store.Save(ctx, finished("old", now.Add(-2*time.Hour)))

	removed, err := store.DeleteOlderThan(ctx, now)
	if err != nil || removed != 1 {
		t.Fatalf("sweep failed: removed=%d err=%v", removed, err)
	}

	// a replica whose lease outlived ours must keep its lock
	mr.Set("execoj:results:sweep", "other-replica")
	if err := c.Unlock(ctx, "execoj:results:sweep", "not-the-owner"); err != nil {
		t.Fatalf("unlock failed: %v", err)
	}
	if got, _ := mr.Get("execoj:results:sweep"); got != "other-replica" {
		t.Fatalf("foreign sweep lock was released: %q", got)
	}
}

func TestRedisResultStoreReportsCacheFailure(t *testing.T) {
	c, mr := newRedisCache(t)
	store := repository.NewRedisResultStore(c, time.Hour)
	mr.Close()

	_, err := store.Get(context.Background(), "a")
	if appErr.GetCode(err) != appErr.CacheError {
		t.Fatalf("expected CacheError, got %v", err)
	}
}

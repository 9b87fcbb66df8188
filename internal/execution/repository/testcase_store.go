package repository

import (
	"context"
	"database/sql"
	"time"

	"execoj/internal/common/cache"
	"execoj/internal/common/db"
	"execoj/internal/execution/model"
	appErr "execoj/pkg/errors"
)

const (
	defaultTestCaseTTL      = 10 * time.Minute
	defaultTestCaseEmptyTTL = time.Minute
	testCaseKeyPrefix       = "execoj:testcases:"
)

// TestCaseStore looks up the tests registered for a problem.
type TestCaseStore interface {
	ListByProblem(ctx context.Context, problemID string) ([]model.TestCase, error)
}

// MySQLTestCaseStore reads test cases from MySQL, optionally through a
// Redis cache-aside layer.
type MySQLTestCaseStore struct {
	db       db.Database
	cache    cache.Cache
	ttl      time.Duration
	emptyTTL time.Duration
}

// NewMySQLTestCaseStore creates a store. cacheClient may be nil.
func NewMySQLTestCaseStore(database db.Database, cacheClient cache.Cache, ttl, emptyTTL time.Duration) *MySQLTestCaseStore {
	if ttl <= 0 {
		ttl = defaultTestCaseTTL
	}
	if emptyTTL <= 0 {
		emptyTTL = defaultTestCaseEmptyTTL
	}
	return &MySQLTestCaseStore{db: database, cache: cacheClient, ttl: ttl, emptyTTL: emptyTTL}
}

// ListByProblem returns the problem's tests ordered by id. A
// problem without tests yields an empty slice.
func (s *MySQLTestCaseStore) ListByProblem(ctx context.Context, problemID string) ([]model.TestCase, error) {
	if problemID == "" {
		return nil, appErr.ValidationError("problemId", "required")
	}
	if s.cache == nil {
		return s.listFromDB(ctx, problemID)
	}
	return cache.LoadJSON(
		ctx,
		s.cache,
		testCaseKeyPrefix+problemID,
		cache.JitterTTL(s.ttl),
		cache.JitterTTL(s.emptyTTL),
		func(tests []model.TestCase) bool { return len(tests) == 0 },
		func(ctx context.Context) ([]model.TestCase, error) {
			return s.listFromDB(ctx, problemID)
		},
	)
}

func (s *MySQLTestCaseStore) listFromDB(ctx context.Context, problemID string) ([]model.TestCase, error) {
	if s.db == nil {
		return nil, appErr.New(appErr.DatabaseError).WithMessage("database is not initialized")
	}
	query := `
		SELECT id, input, expected_output, is_hidden, description
		FROM test_cases
		WHERE problem_id = ?
		ORDER BY id`

	rows, err := s.db.Query(ctx, query, problemID)
	if err != nil {
		return nil, wrapDBError(err, "query test cases failed")
	}
	defer rows.Close()

	var tests []model.TestCase
	for rows.Next() {
		var (
			tc          model.TestCase
			description sql.NullString
		)
		if err := rows.Scan(&tc.ID, &tc.Input, &tc.ExpectedOutput, &tc.Hidden, &description); err != nil {
			return nil, appErr.Wrapf(err, appErr.DatabaseError, "scan test case failed")
		}
		tc.Description = description.String
		tests = append(tests, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError(err, "iterate test cases failed")
	}
	return tests, nil
}

// wrapDBError reports outages as ServiceUnavailable so callers can retry.
func wrapDBError(err error, msg string) error {
	if db.IsUnavailable(err) {
		return appErr.Wrapf(err, appErr.ServiceUnavailable, "%s", msg)
	}
	return appErr.Wrapf(err, appErr.DatabaseError, "%s", msg)
}

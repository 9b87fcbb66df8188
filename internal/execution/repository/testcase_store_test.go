package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"execoj/internal/common/db"
	"execoj/internal/execution/model"
	"execoj/internal/execution/repository"
	appErr "execoj/pkg/errors"

	"github.com/go-sql-driver/mysql"
)

type testCaseRow struct {
	id, input, expected string
	hidden              bool
	description         sql.NullString
}

type fakeDB struct {
	rows    map[string][]testCaseRow
	queries int
	err     error
}

func (f *fakeDB) Query(_ context.Context, _ string, args ...interface{}) (db.Rows, error) {
	f.queries++
	if f.err != nil {
		return nil, f.err
	}
	return &fakeRows{rows: f.rows[args[0].(string)], pos: -1}, nil
}

func (f *fakeDB) QueryRow(context.Context, string, ...interface{}) db.Row { return nil }

func (f *fakeDB) Exec(context.Context, string, ...interface{}) (db.Result, error) {
	return nil, errors.New("not supported")
}

func (f *fakeDB) Ping(context.Context) error { return nil }
func (f *fakeDB) Close() error               { return nil }

type fakeRows struct {
	rows []testCaseRow
	pos  int
}

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos < len(r.rows)
}

func (r *fakeRows) Scan(dest ...interface{}) error {
	row := r.rows[r.pos]
	*dest[0].(*string) = row.id
	*dest[1].(*string) = row.input
	*dest[2].(*string) = row.expected
	*dest[3].(*bool) = row.hidden
	*dest[4].(*sql.NullString) = row.description
	return nil
}

func (r *fakeRows) Close() error { return nil }
func (r *fakeRows) Err() error   { return nil }

func sampleDB() *fakeDB {
	return &fakeDB{rows: map[string][]testCaseRow{
		"two-sum": {
			{id: "1", input: "1 2", expected: "3", description: sql.NullString{String: "small", Valid: true}},
			{id: "2", input: "5 5", expected: "10", hidden: true},
		},
	}}
}

func TestTestCaseStoreReadsRows(t *testing.T) {
	store := repository.NewMySQLTestCaseStore(sampleDB(), nil, 0, 0)

	tests, err := store.ListByProblem(context.Background(), "two-sum")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	want := []model.TestCase{
		{ID: "1", Input: "1 2", ExpectedOutput: "3", Description: "small"},
		{ID: "2", Input: "5 5", ExpectedOutput: "10", Hidden: true},
	}
	if len(tests) != len(want) {
		t.Fatalf("expected %d tests, got %d", len(want), len(tests))
	}
	for i := range want {
		if tests[i] != want[i] {
			t.Fatalf("test %d = %+v, want %+v", i, tests[i], want[i])
		}
	}
}

func TestTestCaseStoreUsesCache(t *testing.T) {
	c, _ := newRedisCache(t)
	database := sampleDB()
	store := repository.NewMySQLTestCaseStore(database, c, time.Minute, time.Second)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		tests, err := store.ListByProblem(ctx, "two-sum")
		if err != nil || len(tests) != 2 {
			t.Fatalf("unexpected list result: %v %v", tests, err)
		}
	}
	if database.queries != 1 {
		t.Fatalf("expected one database query, got %d", database.queries)
	}

	for i := 0; i < 2; i++ {
		tests, err := store.ListByProblem(ctx, "unknown")
		if err != nil || len(tests) != 0 {
			t.Fatalf("unexpected list result: %v %v", tests, err)
		}
	}
	if database.queries != 2 {
		t.Fatalf("empty result should be cached, got %d queries", database.queries)
	}
}

func TestTestCaseStoreWrapsDatabaseErrors(t *testing.T) {
	store := repository.NewMySQLTestCaseStore(&fakeDB{err: errors.New("connection refused")}, nil, 0, 0)

	_, err := store.ListByProblem(context.Background(), "two-sum")
	if appErr.GetCode(err) != appErr.DatabaseError {
		t.Fatalf("expected DatabaseError, got %v", err)
	}
}

func TestTestCaseStoreReportsOutageAsUnavailable(t *testing.T) {
	store := repository.NewMySQLTestCaseStore(&fakeDB{err: mysql.ErrInvalidConn}, nil, 0, 0)

	_, err := store.ListByProblem(context.Background(), "two-sum")
	if appErr.GetCode(err) != appErr.ServiceUnavailable {
		t.Fatalf("expected ServiceUnavailable, got %v", err)
	}
}

func TestTestCaseStoreRequiresProblemID(t *testing.T) {
	store := repository.NewMySQLTestCaseStore(sampleDB(), nil, 0, 0)
	if _, err := store.ListByProblem(context.Background(), ""); appErr.GetCode(err) != appErr.ValidationFailed {
		t.Fatalf("expected ValidationFailed, got %v", err)
	}
}

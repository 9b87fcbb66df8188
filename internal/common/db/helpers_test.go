package db_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"testing"

	"execoj/internal/common/db"

	"github.com/go-sql-driver/mysql"
)

func TestIsNoRows(t *testing.T) {
	if !db.IsNoRows(fmt.Errorf("find: %w", sql.ErrNoRows)) {
		t.Fatal("wrapped ErrNoRows should match")
	}
	if db.IsNoRows(fmt.Errorf("other")) {
		t.Fatal("unrelated error should not match")
	}
}

func TestIsUnavailable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "bad conn", err: fmt.Errorf("query: %w", driver.ErrBadConn), want: true},
		{name: "invalid conn", err: mysql.ErrInvalidConn, want: true},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "too many connections", err: &mysql.MySQLError{Number: 1040}, want: true},
		{name: "deadlock", err: &mysql.MySQLError{Number: 1213}, want: true},
		{name: "unknown column", err: &mysql.MySQLError{Number: 1054}, want: false},
		{name: "no rows", err: sql.ErrNoRows, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := db.IsUnavailable(tt.err); got != tt.want {
				t.Fatalf("IsUnavailable() = %v, want %v", got, tt.want)
			}
		})
	}
}

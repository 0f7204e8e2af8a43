package test_utils

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

// InsertUser stores a bare user row so ledger and budget rows have an owner to reference.
func InsertUser(t *testing.T, pool *pgxpool.Pool, username string) int {
	t.Helper()
	var id int
	err := pool.QueryRow(context.Background(),
		`INSERT INTO users (uid, username, display_name) VALUES ($1, $1, $1) RETURNING id`, username,
	).Scan(&id)
	if err != nil {
		t.Fatalf("failed to insert user %s: %v", username, err)
	}
	return id
}

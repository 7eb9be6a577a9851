package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/hpungsan/mapreview/internal/errors"
)

// Get returns the value stored under key.
// The second return value is false when the key has never been written.
func Get(ctx context.Context, db *sql.DB, key string) (string, bool, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, errors.NewInternal(err)
	}
	return value, true, nil
}

// Put writes value under key, replacing any previous value.
func Put(ctx context.Context, db *sql.DB, key, value string, now time.Time) error {
	query := `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := db.ExecContext(ctx, query, key, value, now.Unix()); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Get returns the value stored under key.
// Returns ErrNotFound if the key is absent.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM entries WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get %q: %w", key, err)
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
// Returns ErrQuotaExceeded (wrapped) if the write would exceed the quota;
// the previous value is left untouched in that case.
func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.write(ctx, key, value, false)
}

// Insert stores value under key only if the key is absent.
// Returns ErrKeyExists (wrapped) if the key is already present.
func (s *Store) Insert(ctx context.Context, key, value string) error {
	return s.write(ctx, key, value, true)
}

func (s *Store) write(ctx context.Context, key, value string, insertOnly bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("set %q: begin tx: %w", key, err)
	}
	defer tx.Rollback() // No-op if committed

	if insertOnly {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM entries WHERE key = ?`, key).Scan(&one)
		if err == nil {
			return fmt.Errorf("set %q: %w", key, ErrKeyExists)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("set %q: check existing: %w", key, err)
		}
	}

	if s.quota > 0 {
		var used int64
		err := tx.QueryRowContext(ctx, `
			SELECT COALESCE(SUM(LENGTH(CAST(key AS BLOB)) + LENGTH(CAST(value AS BLOB))), 0)
			FROM entries
			WHERE key <> ?
		`, key).Scan(&used)
		if err != nil {
			return fmt.Errorf("set %q: measure usage: %w", key, err)
		}
		need := int64(len(key) + len(value))
		if used+need > s.quota {
			return fmt.Errorf("set %q (%d bytes, %d of %d used): %w", key, need, used, s.quota, ErrQuotaExceeded)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entries (key, value)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("set %q: commit: %w", key, err)
	}
	return nil
}

// Remove deletes key. Removing an absent key is not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("remove %q: %w", key, err)
	}
	return nil
}

// Clear deletes every key in the store. It is irreversible and does not
// distinguish between owners of the stored records.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	return nil
}

// Keys returns every key starting with prefix, in insertion order.
// An empty prefix returns all keys.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if prefix == "" {
		rows, err = s.db.QueryContext(ctx, `SELECT key FROM entries ORDER BY seq ASC`)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT key FROM entries
			WHERE instr(key, ?) = 1
			ORDER BY seq ASC
		`, prefix)
	}
	if err != nil {
		return nil, fmt.Errorf("query keys: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keys: %w", err)
	}
	return keys, nil
}

// Len returns the number of stored keys.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// Usage returns the number of bytes counted against the quota.
func (s *Store) Usage(ctx context.Context) (int64, error) {
	var used int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(LENGTH(CAST(key AS BLOB)) + LENGTH(CAST(value AS BLOB))), 0)
		FROM entries
	`).Scan(&used)
	if err != nil {
		return 0, fmt.Errorf("measure usage: %w", err)
	}
	return used, nil
}

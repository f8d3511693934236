package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens (or creates) the database at dbPath. ":memory:" is
// accepted and pinned to a single connection so every call sees the same
// database.
func NewSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS entry (
			key         TEXT PRIMARY KEY,
			value       TEXT NOT NULL,
			expiration  INTEGER
		);`,
	); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to init 'entry' table schema: %v", err)
	}

	return &SQLite{db: db, now: time.Now}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Get(ctx context.Context, key string) (string, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT value, expiration
		FROM entry
		WHERE key=?1;`,
		key,
	)

	var value string
	var expiration sql.NullInt64
	if err := row.Scan(&value, &expiration); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("couldn't scan entry: %v", err)
	}
	if expiration.Valid && s.now().Unix() >= expiration.Int64 {
		return "", false, nil
	}
	return value, true, nil
}

func (s *SQLite) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	var expiration sql.NullInt64
	if ttl > 0 {
		expiration = sql.NullInt64{Int64: s.now().Add(ttl).Unix(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entry (key, value, expiration)
		VALUES (?1, ?2, ?3)
		ON CONFLICT(key) DO UPDATE SET
			value=excluded.value,
			expiration=excluded.expiration;`,
		key,
		value,
		expiration,
	)
	if err != nil {
		return fmt.Errorf("couldn't upsert entry: %v", err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM entry
		WHERE key=?1;`,
		key,
	); err != nil {
		return fmt.Errorf("couldn't delete from entry: %v", err)
	}
	return nil
}

// Purge removes expired rows and reports how many were deleted.
func (s *SQLite) Purge(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM entry
		WHERE expiration IS NOT NULL AND expiration <= ?1;`,
		s.now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("couldn't purge entry: %v", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return count, nil
}

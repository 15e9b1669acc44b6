package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv_values (
	channel_id TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (channel_id, key)
);
`

// SQLite is a Store backed by a single sqlite database file.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

type SQLiteOptions struct {
	// Path to the database file. Parent directories are created as needed.
	Path string
	// Now overrides the clock used for updated_at stamps (tests).
	Now func() time.Time
}

func OpenSQLite(opts SQLiteOptions) (*SQLite, error) {
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		return nil, fmt.Errorf("kv: store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("kv: ensure store dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("kv: open %s: %w", path, err)
	}
	// One writer at a time keeps modernc/sqlite happy under concurrency.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("kv: apply schema: %w", err)
	}

	nowFn := opts.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	return &SQLite{db: db, now: nowFn}, nil
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) Get(ctx context.Context, channelID, key string) (string, bool, error) {
	if err := validateKey(channelID, key); err != nil {
		return "", false, err
	}
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv_values WHERE channel_id = ? AND key = ?`,
		channelID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv: get %s/%s: %w", channelID, key, err)
	}
	return value, true, nil
}

func (s *SQLite) Set(ctx context.Context, channelID, key, value string) error {
	if err := validateKey(channelID, key); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_values (channel_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (channel_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		channelID, key, value, s.now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("kv: set %s/%s: %w", channelID, key, err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, channelID, key string) error {
	if err := validateKey(channelID, key); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM kv_values WHERE channel_id = ? AND key = ?`,
		channelID, key,
	)
	if err != nil {
		return fmt.Errorf("kv: delete %s/%s: %w", channelID, key, err)
	}
	return nil
}

func validateKey(channelID, key string) error {
	if strings.TrimSpace(channelID) == "" {
		return fmt.Errorf("kv: channel id is required")
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("kv: key is required")
	}
	return nil
}

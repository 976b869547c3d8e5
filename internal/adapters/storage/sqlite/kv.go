// Package sqlite provides the durable key-value store on an embedded SQLite
// database (pure Go driver, no cgo).
//
// Every connection is opened with production-safe pragmas:
//
//	journal_mode = WAL
//	busy_timeout = 10000
//	synchronous  = NORMAL
//	foreign_keys = ON
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/jsamuelsen/quote-sync/internal/domain"
)

const schema = `CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

const memoryPath = ":memory:"

// Config configures the store.
type Config struct {
	// Path is the database file. ":memory:" opens a private in-memory database.
	Path string

	// BusyTimeout is how long a writer waits on a locked database. Defaults to 10s.
	BusyTimeout time.Duration
}

// KV implements ports.KeyValueStore and ports.HealthChecker.
type KV struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at cfg.Path and ensures the schema.
func Open(ctx context.Context, cfg Config) (*KV, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite: path is required")
	}

	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 10 * time.Second
	}

	if cfg.Path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(cfg.Path, cfg.BusyTimeout))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	if cfg.Path == memoryPath {
		// Every connection to ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: %s: %w", firstLine(schema), err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	return &KV{db: db, now: time.Now}, nil
}

// dsn carries the pragmas as _pragma parameters. The driver runs them on
// every new connection, so pooled connections agree on them.
func dsn(path string, busyTimeout time.Duration) string {
	return path + "?_pragma=busy_timeout(" + strconv.FormatInt(busyTimeout.Milliseconds(), 10) + ")" +
		"&_pragma=foreign_keys(1)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)"
}

// OpenMemory opens a private in-memory store, mainly for tests.
func OpenMemory(ctx context.Context) (*KV, error) {
	return Open(ctx, Config{Path: memoryPath})
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}

	return s
}

// Get returns the value stored under key, or domain.ErrNotFound.
func (s *KV) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte

	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError(key, "")
	}

	if err != nil {
		return nil, fmt.Errorf("sqlite: get %q: %w", key, err)
	}

	if value == nil {
		value = []byte{}
	}

	return value, nil
}

// Set upserts value under key.
func (s *KV) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: set %q: %w", key, err)
	}

	return nil
}

// Delete removes key. Missing keys are not an error.
func (s *KV) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("sqlite: delete %q: %w", key, err)
	}

	return nil
}

// UpdatedAt returns when key was last written.
func (s *KV) UpdatedAt(ctx context.Context, key string) (time.Time, error) {
	var ms int64

	err := s.db.QueryRowContext(ctx, `SELECT updated_at FROM kv WHERE key = ?`, key).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, domain.NewNotFoundError(key, "")
	}

	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: updated_at %q: %w", key, err)
	}

	return time.UnixMilli(ms), nil
}

// Name implements ports.HealthChecker.
func (s *KV) Name() string { return "sqlite" }

// Check implements ports.HealthChecker.
func (s *KV) Check(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return domain.NewUnavailableError("sqlite", err.Error())
	}

	return nil
}

// Close closes the database.
func (s *KV) Close() error {
	return s.db.Close()
}

package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"pressroom/internal/config"
)

// Store manages job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Primary SQLite result codes. Extended codes carry these in the low byte.
const (
	sqliteBusy       = 5
	sqliteLocked     = 6
	sqliteConstraint = 19
)

// busyPolicy bounds how long a write waits out another writer on top of the
// driver's own busy_timeout.
var busyPolicy = struct {
	attempts int
	first    time.Duration
	ceiling  time.Duration
}{attempts: 5, first: 10 * time.Millisecond, ceiling: 200 * time.Millisecond}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func primaryCode(err error) int {
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		return coded.Code() & 0xff
	}
	return -1
}

func isContention(err error) bool {
	switch primaryCode(err) {
	case sqliteBusy, sqliteLocked:
		return true
	case -1:
		return err != nil && strings.Contains(err.Error(), "database is locked")
	}
	return false
}

func isUniqueViolation(err error) bool {
	if primaryCode(err) == sqliteConstraint {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// withContention retries op while SQLite reports lock contention, doubling
// the pause each time up to the policy ceiling.
func withContention[T any](ctx context.Context, op func() (T, error)) (T, error) {
	pause := busyPolicy.first
	for attempt := 1; ; attempt++ {
		out, err := op()
		if err == nil || !isContention(err) || attempt == busyPolicy.attempts {
			return out, err
		}
		timer := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			var zero T
			return zero, ctx.Err()
		case <-timer.C:
		}
		pause = min(pause*2, busyPolicy.ceiling)
	}
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	return withContention(ctx, func() (sql.Result, error) {
		return s.db.ExecContext(ctx, query, args...)
	})
}

// Open opens the job database under the configured data directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.DatabasePath())
}

// OpenPath opens the job database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	// Pragmas ride on the DSN so every pooled connection gets them.
	dsn := dbPath + "?" + url.Values{
		"_pragma": []string{"journal_mode(WAL)", "foreign_keys(1)", "busy_timeout(5000)"},
	}.Encode()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

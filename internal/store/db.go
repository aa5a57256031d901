package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/lib/pq"
	"github.com/streamstall/liveassist/internal/config"
	_ "modernc.org/sqlite"
)

// SQLStore is the backend failover store. It prefers the primary Postgres
// engine and permanently downgrades to the embedded SQLite store on any
// connectivity failure; there is no automatic retry-to-primary for the
// remainder of the process lifetime.
type SQLStore struct {
	mu      sync.Mutex
	db      *sql.DB
	dialect Dialect

	sqlitePath    string
	cacheLimit    int
	whitelistPath string
	blacklistPath string
}

// Open connects to the configured primary engine and provisions its schema.
// If the primary is unreachable or provisioning fails it falls back to the
// embedded store, creating the file if absent.
func Open(cfg *config.Config) (*SQLStore, error) {
	s := &SQLStore{
		sqlitePath:    cfg.Database.SQLitePath,
		cacheLimit:    cfg.Cache.MaxEntries,
		whitelistPath: cfg.Overlay.WhitelistPath,
		blacklistPath: cfg.Overlay.BlacklistPath,
	}

	db, err := openPrimary(cfg.Database)
	if err == nil {
		if err = migratePrimary(db); err == nil {
			s.db = db
			s.dialect = postgresDialect{}
			slog.Info("store initialized", "backend", backendPostgres, "host", cfg.Database.Host)
			return s, nil
		}
	}

	slog.Warn("primary engine unavailable, falling back to embedded store", "error", err)
	if derr := s.downgrade(err); derr != nil {
		return nil, derr
	}
	return s, nil
}

// openPrimary establishes the pooled primary-engine connection. Credentials
// are only exercised here; a missing password is not itself an error.
func openPrimary(dc config.DatabaseConfig) (*sql.DB, error) {
	parts := []string{
		fmt.Sprintf("host=%s", dc.Host),
		fmt.Sprintf("port=%d", dc.Port),
		fmt.Sprintf("user=%s", dc.User),
		fmt.Sprintf("dbname=%s", dc.Name),
		"sslmode=disable",
	}
	if dc.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", dc.Password))
	}

	db, err := sql.Open("postgres", strings.Join(parts, " "))
	if err != nil {
		return nil, fmt.Errorf("open primary: %w", err)
	}
	db.SetMaxOpenConns(dc.PoolSize)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(dc.ConnectTimeout))
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping primary: %w", err)
	}

	return db, nil
}

// migratePrimary provisions the primary schema. The handle is closed on
// failure; the caller only keeps it when provisioning succeeds.
func migratePrimary(db *sql.DB) error {
	if err := runMigrations(db, postgresDialect{}); err != nil {
		db.Close()
		return err
	}
	return nil
}

// openFallback opens the embedded store file, creating its directory if
// needed, and applies the durability pragmas.
func openFallback(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open fallback: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return db, nil
}

// downgrade switches the active engine to the embedded fallback. It is
// idempotent: once on the fallback, further calls are no-ops. The primary
// handle is left open so in-flight calls can finish on it.
func (s *SQLStore) downgrade(reason error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dialect != nil && s.dialect.Name() == backendSQLite {
		return nil
	}

	slog.Warn("downgrading to embedded store", "path", s.sqlitePath, "reason", reason)

	db, err := openFallback(s.sqlitePath)
	if err != nil {
		return err
	}
	if err := runMigrations(db, sqliteDialect{}); err != nil {
		db.Close()
		return err
	}

	s.db = db
	s.dialect = sqliteDialect{}
	slog.Info("store initialized", "backend", backendSQLite, "path", s.sqlitePath)
	return nil
}

// active returns the current handle and dialect under the lock.
func (s *SQLStore) active() (*sql.DB, Dialect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db, s.dialect
}

// withDB runs fn against the active backend. A connectivity failure on the
// primary triggers the one-shot downgrade and a single retry against the
// fallback; every other error is returned as-is. Concurrent callers may each
// attempt the downgrade — only the first transition does work.
func (s *SQLStore) withDB(fn func(db *sql.DB, d Dialect) error) error {
	db, d := s.active()
	err := fn(db, d)
	if err == nil || d.Name() == backendSQLite || !isConnErr(err) {
		return err
	}

	if derr := s.downgrade(err); derr != nil {
		return err
	}
	db, d = s.active()
	return fn(db, d)
}

// isConnErr classifies engine-specific connectivity failures that warrant the
// downgrade, as opposed to constraint or data errors that must surface.
func isConnErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// Class 08: connection exceptions. Class 57: operator intervention
		// (shutdown, crash).
		class := pqErr.Code.Class()
		return class == "08" || class == "57"
	}
	return false
}

// Backend reports the active engine name.
func (s *SQLStore) Backend() string {
	_, d := s.active()
	return d.Name()
}

// Close releases the active database handle.
func (s *SQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// insertWithID runs an INSERT and reports the new row id. Postgres has no
// LastInsertId, so the statement gains a RETURNING clause there.
func insertWithID(ctx context.Context, db *sql.DB, d Dialect, query string, args ...any) (int64, error) {
	if d.Name() == backendPostgres {
		var id int64
		err := db.QueryRowContext(ctx, d.Rebind(query+" RETURNING id"), args...).Scan(&id)
		return id, err
	}

	res, err := db.ExecContext(ctx, d.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// nullIfEmpty maps an empty string to SQL NULL.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// scanTime coerces the driver-specific timestamp representations into a
// time.Time: the primary driver yields time.Time, the embedded driver yields
// the CURRENT_TIMESTAMP text form.
func scanTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case []byte:
		return parseTimeString(string(t))
	case string:
		return parseTimeString(t)
	}
	return time.Time{}
}

func parseTimeString(s string) time.Time {
	for _, layout := range []string{
		"2006-01-02 15:04:05",
		"2006-01-02 15:04:05.999999999-07:00",
		time.RFC3339Nano,
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// scanNullTime is scanTime for nullable columns.
func scanNullTime(v any) *time.Time {
	if v == nil {
		return nil
	}
	t := scanTime(v)
	if t.IsZero() {
		return nil
	}
	return &t
}

// scanBool coerces the engines' boolean representations (native bool on the
// primary, 0/1 integers on the fallback).
func scanBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case int64:
		return b != 0
	case []byte:
		return string(b) == "1" || strings.EqualFold(string(b), "true") || strings.EqualFold(string(b), "t")
	case string:
		return b == "1" || strings.EqualFold(b, "true") || strings.EqualFold(b, "t")
	}
	return false
}

// scanString coerces text columns that may arrive as []byte.
func scanString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	return ""
}

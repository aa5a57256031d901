package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/streamstall/liveassist/internal/config"
	"github.com/streamstall/liveassist/internal/types"
)

// newTestStore opens a store whose primary engine is unreachable, so every
// test runs the real failover path and lands on the embedded backend in a
// temp directory.
func newTestStore(t *testing.T) *SQLStore {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Host:           "127.0.0.1",
			Port:           1,
			User:           "postgres",
			Name:           "live_assistant",
			PoolSize:       2,
			ConnectTimeout: config.Duration(500 * time.Millisecond),
			SQLitePath:     filepath.Join(dir, "test.db"),
		},
		Cache: config.CacheConfig{MaxEntries: 1000},
		Overlay: config.OverlayConfig{
			WhitelistPath: filepath.Join(dir, "whitelist.json"),
			BlacklistPath: filepath.Join(dir, "blacklist.json"),
		},
	}

	s, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// mustExec runs a statement against the active backend for test fixtures.
func mustExec(t *testing.T, s *SQLStore, query string, args ...any) {
	t.Helper()
	err := s.withDB(func(db *sql.DB, d Dialect) error {
		_, err := db.ExecContext(context.Background(), d.Rebind(query), args...)
		return err
	})
	if err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

func mustCreateSession(t *testing.T, s *SQLStore, id string, products ...types.NewProduct) {
	t.Helper()
	if err := s.CreateSession(context.Background(), id, "小芳", "山货专场", products); err != nil {
		t.Fatalf("CreateSession(%s) error = %v", id, err)
	}
}

func TestOpen_FallsBackWhenPrimaryUnreachable(t *testing.T) {
	s := newTestStore(t)

	if got := s.Backend(); got != backendSQLite {
		t.Errorf("Backend() = %q, want %q", got, backendSQLite)
	}

	// The fallback must be fully provisioned: a write should just work.
	mustCreateSession(t, s, "11111111-1111-4111-8111-111111111111")
}

func TestMigratePrimary_ClosesHandleOnFailure(t *testing.T) {
	// A database file inside a directory that does not exist fails on the
	// first real statement, which is how a mid-provisioning failure looks.
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "missing", "primary.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := migratePrimary(db); err == nil {
		t.Fatal("expected provisioning failure")
	}
	if err := db.Ping(); err == nil || !strings.Contains(err.Error(), "closed") {
		t.Errorf("Ping() error = %v, want closed handle", err)
	}
}

func TestDowngrade_Idempotent(t *testing.T) {
	s := newTestStore(t)

	db, _ := s.active()
	if err := s.downgrade(nil); err != nil {
		t.Fatalf("downgrade() error = %v", err)
	}
	db2, _ := s.active()
	if db != db2 {
		t.Error("repeated downgrade replaced the active handle")
	}
}

func TestIsConnErr(t *testing.T) {
	if isConnErr(nil) {
		t.Error("nil classified as connection error")
	}
	if isConnErr(sql.ErrNoRows) {
		t.Error("ErrNoRows classified as connection error")
	}
	if isConnErr(context.Canceled) {
		t.Error("context.Canceled classified as connection error")
	}
	if isConnErr(context.DeadlineExceeded) {
		t.Error("context.DeadlineExceeded classified as connection error")
	}
	if !isConnErr(syscall.ECONNREFUSED) {
		t.Error("ECONNREFUSED not classified as connection error")
	}
	if !isConnErr(fmt.Errorf("query: %w", syscall.ECONNRESET)) {
		t.Error("wrapped ECONNRESET not classified as connection error")
	}
}

func TestPostgresRebind(t *testing.T) {
	d := postgresDialect{}

	tests := []struct {
		in   string
		want string
	}{
		{"SELECT 1", "SELECT 1"},
		{"SELECT * FROM t WHERE a = ?", "SELECT * FROM t WHERE a = $1"},
		{"INSERT INTO t (a, b, c) VALUES (?, ?, ?)", "INSERT INTO t (a, b, c) VALUES ($1, $2, $3)"},
		{"SELECT '?' , a FROM t WHERE b = ?", "SELECT '?' , a FROM t WHERE b = $1"},
		{`SELECT "weird?col" FROM t WHERE a = ?`, `SELECT "weird?col" FROM t WHERE a = $1`},
		{"LIKE '%' || ? || '%'", "LIKE '%' || $1 || '%'"},
	}
	for _, tt := range tests {
		if got := d.Rebind(tt.in); got != tt.want {
			t.Errorf("Rebind(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSQLiteRebind_Passthrough(t *testing.T) {
	d := sqliteDialect{}
	q := "SELECT * FROM t WHERE a = ? AND b = ?"
	if got := d.Rebind(q); got != q {
		t.Errorf("Rebind(%q) = %q, want unchanged", q, got)
	}
}

func TestDialectTokens(t *testing.T) {
	pg, lite := postgresDialect{}, sqliteDialect{}

	if pg.Now() != "NOW()" || lite.Now() != "CURRENT_TIMESTAMP" {
		t.Errorf("Now() = %q / %q", pg.Now(), lite.Now())
	}
	if pg.Bool(true) != "TRUE" || pg.Bool(false) != "FALSE" {
		t.Errorf("postgres Bool = %q / %q", pg.Bool(true), pg.Bool(false))
	}
	if lite.Bool(true) != "1" || lite.Bool(false) != "0" {
		t.Errorf("sqlite Bool = %q / %q", lite.Bool(true), lite.Bool(false))
	}
}

func TestScanHelpers(t *testing.T) {
	now := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	if got := scanTime(now); !got.Equal(now) {
		t.Errorf("scanTime(time.Time) = %v", got)
	}
	if got := scanTime("2026-03-14 15:09:26"); got.IsZero() {
		t.Error("scanTime(text) returned zero time")
	}
	if got := scanNullTime(nil); got != nil {
		t.Errorf("scanNullTime(nil) = %v, want nil", got)
	}

	if !scanBool(true) || !scanBool(int64(1)) || !scanBool("1") || !scanBool([]byte("t")) {
		t.Error("truthy representation rejected")
	}
	if scanBool(int64(0)) || scanBool("0") || scanBool(nil) {
		t.Error("falsy representation accepted")
	}

	if got := scanString([]byte("abc")); got != "abc" {
		t.Errorf("scanString([]byte) = %q", got)
	}
}

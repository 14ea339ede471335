package sqlstore

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kozaktomas/photo-curator/internal/config"
	"github.com/kozaktomas/photo-curator/internal/database"
	"github.com/kozaktomas/photo-curator/internal/logging"
)

func openSQLite(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(context.Background(), &config.DatabaseConfig{URL: "sqlite://" + path}, logging.Discard())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	s := openSQLite(t, filepath.Join(t.TempDir(), "curator.db"))
	runStoreContract(t, s)
}

func TestMigrate_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "curator.db")
	first := openSQLite(t, path)
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	second := openSQLite(t, path)
	versions, err := second.MigrationsApplied(context.Background())
	if err != nil {
		t.Fatalf("MigrationsApplied failed: %v", err)
	}
	if diff := cmp.Diff([]string{"001_init.sql"}, versions); diff != "" {
		t.Errorf("applied migrations mismatch (-want +got):\n%s", diff)
	}
	if second.Dialect() != "sqlite" {
		t.Errorf("Dialect() = %q, want sqlite", second.Dialect())
	}
}

func TestGetPhotos_Batches(t *testing.T) {
	s := openSQLite(t, filepath.Join(t.TempDir(), "curator.db"))
	ctx := context.Background()

	const n = 1100
	ids := make([]string, n)
	for i := range n {
		ids[i] = fmt.Sprintf("p%04d", i)
		if err := s.SavePhoto(ctx, &database.Photo{ID: ids[i], FilePath: "/x", CaptureDate: "2024-01-01"}); err != nil {
			t.Fatalf("SavePhoto failed: %v", err)
		}
	}

	// Reverse order crosses batch boundaries.
	reversed := make([]string, n)
	for i, id := range ids {
		reversed[n-1-i] = id
	}
	photos, err := s.GetPhotos(ctx, reversed)
	if err != nil {
		t.Fatalf("GetPhotos failed: %v", err)
	}
	got := make([]string, len(photos))
	for i, p := range photos {
		got[i] = p.ID
	}
	if diff := cmp.Diff(reversed, got); diff != "" {
		t.Errorf("GetPhotos mismatch (-want +got):\n%s", diff)
	}
}

func TestOpen_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.DatabaseConfig
	}{
		{"nil config", nil},
		{"empty url", &config.DatabaseConfig{}},
		{"no scheme", &config.DatabaseConfig{URL: "curator.db"}},
		{"unknown scheme", &config.DatabaseConfig{URL: "mongodb://localhost"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Open(context.Background(), tc.cfg, logging.Discard()); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		url         string
		wantDialect string
		wantDSN     string
		wantErr     bool
	}{
		{
			url:         "sqlite://curator.db",
			wantDialect: "sqlite",
			wantDSN:     "file:curator.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
		},
		{
			url:         "sqlite:///var/lib/curator/db.sqlite?cache=shared",
			wantDialect: "sqlite",
			wantDSN:     "file:/var/lib/curator/db.sqlite?cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
		},
		{
			url:         "postgres://u:p@localhost:5432/curator?sslmode=disable",
			wantDialect: "postgres",
			wantDSN:     "postgres://u:p@localhost:5432/curator?sslmode=disable",
		},
		{
			url:         "mysql://u:p@tcp(localhost:3306)/curator",
			wantDialect: "mysql",
			wantDSN:     "u:p@tcp(localhost:3306)/curator",
		},
		{url: "sqlite://", wantErr: true},
		{url: "redis://localhost", wantErr: true},
		{url: "curator.db", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.url, func(t *testing.T) {
			d, dsn, err := parseURL(tc.url)
			if (err != nil) != tc.wantErr {
				t.Fatalf("parseURL(%q) error = %v, wantErr %v", tc.url, err, tc.wantErr)
			}
			if tc.wantErr {
				return
			}
			if d.name() != tc.wantDialect {
				t.Errorf("dialect = %q, want %q", d.name(), tc.wantDialect)
			}
			if dsn != tc.wantDSN {
				t.Errorf("dsn = %q, want %q", dsn, tc.wantDSN)
			}
		})
	}
}

func TestPostgresBind(t *testing.T) {
	got := postgresDialect{}.bind("SELECT * FROM t WHERE a = ? AND b IN (?, ?)")
	want := "SELECT * FROM t WHERE a = $1 AND b IN ($2, $3)"
	if got != want {
		t.Errorf("bind = %q, want %q", got, want)
	}
	if q := (sqliteDialect{}).bind("a = ?"); q != "a = ?" {
		t.Errorf("sqlite bind changed the query: %q", q)
	}
}

func TestSplitStatements(t *testing.T) {
	content := `-- header comment
CREATE TABLE a (id INT);

-- second
CREATE INDEX i ON a (id);
`
	want := []string{"CREATE TABLE a (id INT)", "CREATE INDEX i ON a (id)"}
	if diff := cmp.Diff(want, splitStatements(content)); diff != "" {
		t.Errorf("splitStatements mismatch (-want +got):\n%s", diff)
	}
}

func TestPlaceholders(t *testing.T) {
	for n, want := range map[int]string{0: "", 1: "?", 3: "?, ?, ?"} {
		if got := placeholders(n); got != want {
			t.Errorf("placeholders(%d) = %q, want %q", n, got, want)
		}
	}
}

package sqlitemigrate

import (
	"context"
	"database/sql"
	"errors"
	"slices"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

const combatTable = `-- +migrate Up
CREATE TABLE combat_documents (scope TEXT PRIMARY KEY, document TEXT NOT NULL);
-- +migrate Down
DROP TABLE combat_documents;
`

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// a single connection keeps the in-memory database shared
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func count(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	if err := db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("query %q: %v", query, err)
	}
	return n
}

func TestApplyRunsFilesInOrderOnce(t *testing.T) {
	db := openDB(t)
	migrations := fstest.MapFS{
		"0002_clock.sql":     {Data: []byte("-- +migrate Up\nALTER TABLE combat_documents ADD COLUMN elapsed_ms INTEGER NOT NULL DEFAULT 0;")},
		"0001_documents.sql": {Data: []byte(combatTable)},
		"README.md":          {Data: []byte("not a migration")},
	}
	ctx := context.Background()

	applied, err := Apply(ctx, db, migrations, "")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if want := []string{"0001_documents.sql", "0002_clock.sql"}; !slices.Equal(applied, want) {
		t.Fatalf("applied = %v, want %v", applied, want)
	}
	if got := count(t, db, "SELECT COUNT(*) FROM "+Table); got != 2 {
		t.Fatalf("recorded = %d, want 2", got)
	}

	applied, err = Apply(ctx, db, migrations, "")
	if err != nil {
		t.Fatalf("reapply: %v", err)
	}
	if len(applied) != 0 {
		t.Fatalf("reapplied = %v, want none", applied)
	}
}

func TestApplyLeavesFailedFileUnrecorded(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	bad := fstest.MapFS{"0001_documents.sql": {Data: []byte("-- +migrate Up\nCREAT TABLE combat_documents (scope TEXT);")}}
	if _, err := Apply(ctx, db, bad, ""); err == nil {
		t.Fatal("expected malformed migration to fail")
	}
	if got := count(t, db, "SELECT COUNT(*) FROM "+Table); got != 0 {
		t.Fatalf("recorded = %d, want 0", got)
	}

	good := fstest.MapFS{"0001_documents.sql": {Data: []byte(combatTable)}}
	if _, err := Apply(ctx, db, good, ""); err != nil {
		t.Fatalf("apply fixed migration: %v", err)
	}
	if got := count(t, db, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", "combat_documents"); got != 1 {
		t.Fatal("expected combat_documents table")
	}
}

func TestApplyKeysByRoot(t *testing.T) {
	db := openDB(t)
	migrations := fstest.MapFS{"combat/0001_documents.sql": {Data: []byte(combatTable)}}
	applied, err := Apply(context.Background(), db, migrations, "/combat/")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(applied) != 1 || applied[0] != "combat/0001_documents.sql" {
		t.Fatalf("applied = %v, want rooted key", applied)
	}
}

func TestApplyValidatesInputs(t *testing.T) {
	if _, err := Apply(context.Background(), nil, fstest.MapFS{}, ""); err == nil {
		t.Fatal("expected error for nil db")
	}
	if _, err := Apply(context.Background(), openDB(t), nil, ""); err == nil {
		t.Fatal("expected error for nil fs")
	}
}

func TestUpSection(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "up and down", content: "-- +migrate Up\nA;\n-- +migrate Down\nB;", want: "\nA;\n"},
		{name: "up only", content: "-- +migrate Up\nA;", want: "\nA;"},
		{name: "no markers", content: "A;", want: "A;"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := UpSection(tc.content); got != tc.want {
				t.Fatalf("UpSection = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestIsAlreadyExists(t *testing.T) {
	if !IsAlreadyExists(errors.New("table combat_documents already exists")) {
		t.Fatal("expected already-exists match")
	}
	if !IsAlreadyExists(errors.New("duplicate column name: elapsed_ms")) {
		t.Fatal("expected duplicate column match")
	}
	if IsAlreadyExists(errors.New("syntax error")) || IsAlreadyExists(nil) {
		t.Fatal("unexpected match")
	}
}

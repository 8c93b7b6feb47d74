// Package sqlite provides a SQLite-backed combat document store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/turnorder/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/turnorder/internal/services/combat/domain/combat"
	"github.com/louisbranch/turnorder/internal/services/combat/storage"
	"github.com/louisbranch/turnorder/internal/services/combat/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists combat documents and the world clock in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// Open opens a SQLite combat store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlitemigrate.Apply(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Load returns the latest snapshot for scope.
func (s *Store) Load(ctx context.Context, scope string) (storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return storage.Snapshot{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Snapshot{}, storage.ErrNotConfigured
	}
	scope, err := storage.NormalizeScope(scope)
	if err != nil {
		return storage.Snapshot{}, err
	}
	return readSnapshot(ctx, s.sqlDB, scope)
}

// Update reads, mutates and writes the document and the world clock in one
// transaction.
func (s *Store) Update(ctx context.Context, scope string, fn storage.UpdateFunc) (storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return storage.Snapshot{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Snapshot{}, storage.ErrNotConfigured
	}
	scope, err := storage.NormalizeScope(scope)
	if err != nil {
		return storage.Snapshot{}, err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("start transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	current, err := readSnapshot(ctx, tx, scope)
	if err != nil {
		return storage.Snapshot{}, err
	}
	next, err := storage.Apply(current, fn)
	if err != nil {
		return storage.Snapshot{}, err
	}

	document, err := json.Marshal(next.State)
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("marshal combat document: %w", err)
	}
	now := toMillis(time.Now())
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO combat_documents (scope, document, version, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(scope) DO UPDATE SET
		   document = excluded.document,
		   version = excluded.version,
		   updated_at = excluded.updated_at`,
		scope,
		string(document),
		next.Version,
		now,
	); err != nil {
		return storage.Snapshot{}, fmt.Errorf("put combat document: %w", err)
	}
	if next.WorldTime != current.WorldTime {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO world_clock (id, elapsed_ms, updated_at)
			 VALUES (1, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   elapsed_ms = excluded.elapsed_ms,
			   updated_at = excluded.updated_at`,
			next.WorldTime.Milliseconds(),
			now,
		); err != nil {
			return storage.Snapshot{}, fmt.Errorf("put world clock: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storage.Snapshot{}, fmt.Errorf("commit combat document: %w", err)
	}
	return next, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func readSnapshot(ctx context.Context, q queryer, scope string) (storage.Snapshot, error) {
	worldTime, err := readWorldTime(ctx, q)
	if err != nil {
		return storage.Snapshot{}, err
	}

	var (
		document string
		version  int64
	)
	row := q.QueryRowContext(ctx, `SELECT document, version FROM combat_documents WHERE scope = ?`, scope)
	if err := row.Scan(&document, &version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Empty(scope, worldTime), nil
		}
		return storage.Snapshot{}, fmt.Errorf("get combat document: %w", err)
	}
	var state combat.State
	if err := json.Unmarshal([]byte(document), &state); err != nil {
		return storage.Snapshot{}, fmt.Errorf("unmarshal combat document: %w", err)
	}
	if state.Participants == nil {
		state.Participants = []combat.Participant{}
	}
	return storage.Snapshot{Scope: scope, State: state, WorldTime: worldTime, Version: version}, nil
}

func readWorldTime(ctx context.Context, q queryer) (time.Duration, error) {
	var elapsed int64
	row := q.QueryRowContext(ctx, `SELECT elapsed_ms FROM world_clock WHERE id = 1`)
	if err := row.Scan(&elapsed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get world clock: %w", err)
	}
	return time.Duration(elapsed) * time.Millisecond, nil
}

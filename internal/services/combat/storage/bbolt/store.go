// Package bbolt provides a BoltDB-backed combat document store.
package bbolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/turnorder/internal/services/combat/storage"
	"go.etcd.io/bbolt"
)

const (
	combatBucket = "combat"
	clockBucket  = "clock"
)

var worldClockKey = []byte("world")

// Store provides a BoltDB-backed combat store.
type Store struct {
	db *bbolt.DB
}

type record struct {
	Snapshot storage.Snapshot `json:"snapshot"`
}

// Open opens a BoltDB-backed store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load returns the latest snapshot for scope.
func (s *Store) Load(ctx context.Context, scope string) (storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return storage.Snapshot{}, err
	}
	if s == nil || s.db == nil {
		return storage.Snapshot{}, storage.ErrNotConfigured
	}
	scope, err := storage.NormalizeScope(scope)
	if err != nil {
		return storage.Snapshot{}, err
	}

	var snap storage.Snapshot
	err = s.db.View(func(tx *bbolt.Tx) error {
		var err error
		snap, err = readSnapshot(tx, scope)
		return err
	})
	if err != nil {
		return storage.Snapshot{}, err
	}
	return snap, nil
}

// Update applies fn inside a single bbolt write transaction.
func (s *Store) Update(ctx context.Context, scope string, fn storage.UpdateFunc) (storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return storage.Snapshot{}, err
	}
	if s == nil || s.db == nil {
		return storage.Snapshot{}, storage.ErrNotConfigured
	}
	scope, err := storage.NormalizeScope(scope)
	if err != nil {
		return storage.Snapshot{}, err
	}

	var next storage.Snapshot
	err = s.db.Update(func(tx *bbolt.Tx) error {
		current, err := readSnapshot(tx, scope)
		if err != nil {
			return err
		}
		next, err = storage.Apply(current, fn)
		if err != nil {
			return err
		}
		payload, err := json.Marshal(record{Snapshot: storage.Snapshot{
			Scope:   scope,
			State:   next.State,
			Version: next.Version,
		}})
		if err != nil {
			return fmt.Errorf("marshal combat document: %w", err)
		}
		if err := tx.Bucket([]byte(combatBucket)).Put(scopeKey(scope), payload); err != nil {
			return fmt.Errorf("put combat document: %w", err)
		}
		if next.WorldTime != current.WorldTime {
			if err := tx.Bucket([]byte(clockBucket)).Put(worldClockKey, encodeDuration(next.WorldTime)); err != nil {
				return fmt.Errorf("put world clock: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return storage.Snapshot{}, err
	}
	return next, nil
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{combatBucket, clockBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

func readSnapshot(tx *bbolt.Tx, scope string) (storage.Snapshot, error) {
	combatB := tx.Bucket([]byte(combatBucket))
	clockB := tx.Bucket([]byte(clockBucket))
	if combatB == nil || clockB == nil {
		return storage.Snapshot{}, fmt.Errorf("combat buckets are missing")
	}

	worldTime := decodeDuration(clockB.Get(worldClockKey))
	payload := combatB.Get(scopeKey(scope))
	if payload == nil {
		return storage.Empty(scope, worldTime), nil
	}
	var rec record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return storage.Snapshot{}, fmt.Errorf("unmarshal combat document: %w", err)
	}
	snap := rec.Snapshot
	snap.Scope = scope
	snap.WorldTime = worldTime
	return snap, nil
}

func scopeKey(scope string) []byte {
	return []byte("scope/" + scope)
}

func encodeDuration(d time.Duration) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(d))
	return buf
}

func decodeDuration(raw []byte) time.Duration {
	if len(raw) != 8 {
		return 0
	}
	return time.Duration(binary.BigEndian.Uint64(raw))
}

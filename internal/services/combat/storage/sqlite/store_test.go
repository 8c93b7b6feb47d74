package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/turnorder/internal/services/combat/domain/combat"
	"github.com/louisbranch/turnorder/internal/services/combat/storage"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "combat.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestLoadMissingScopeReturnsReset(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	snap, err := store.Load(context.Background(), storage.DefaultScope)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap.Version != 0 || len(snap.State.Participants) != 0 {
		t.Fatalf("snapshot = %+v, want reset", snap)
	}
}

func TestUpdateRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	_, err := store.Update(ctx, storage.DefaultScope, func(doc storage.Document) error {
		state := doc.State()
		state.Participants = append(state.Participants, combat.Participant{
			ID:         "a",
			Name:       "Alice",
			Initiative: combat.Float(12.5),
			ModifiedTurn: map[int]combat.TurnModifier{
				2: {TookInitiative: "fate"},
			},
		})
		state.Round = 2
		doc.Replace(state)
		doc.Advance(6 * time.Second)
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := store.Load(ctx, storage.DefaultScope)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Version != 1 {
		t.Fatalf("version = %d, want 1", got.Version)
	}
	if got.WorldTime != 6*time.Second {
		t.Fatalf("world time = %v, want 6s", got.WorldTime)
	}
	if got.State.Round != 2 {
		t.Fatalf("round = %d, want 2", got.State.Round)
	}
	a, ok := got.State.Participant("a")
	if !ok {
		t.Fatal("expected participant a")
	}
	if a.InitiativeValue() != 12.5 {
		t.Fatalf("initiative = %v, want 12.5", a.InitiativeValue())
	}
	if a.Modifier(2).TookInitiative != "fate" {
		t.Fatalf("took initiative = %q, want fate", a.Modifier(2).TookInitiative)
	}
}

func TestUpdateRollsBackOnError(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	boom := errors.New("boom")
	_, err := store.Update(ctx, storage.DefaultScope, func(doc storage.Document) error {
		doc.Advance(time.Minute)
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	got, err := store.Load(ctx, storage.DefaultScope)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.WorldTime != 0 || got.Version != 0 {
		t.Fatalf("snapshot = %+v, want untouched", got)
	}
}

func TestUpdateRewindsClock(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	for _, step := range []func(storage.Document){
		func(doc storage.Document) { doc.Advance(12 * time.Second) },
		func(doc storage.Document) { doc.Rewind(6 * time.Second) },
	} {
		if _, err := store.Update(ctx, "scene", func(doc storage.Document) error {
			step(doc)
			return nil
		}); err != nil {
			t.Fatalf("update: %v", err)
		}
	}
	got, err := store.Load(ctx, "other")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.WorldTime != 6*time.Second {
		t.Fatalf("world time = %v, want 6s", got.WorldTime)
	}
}

func TestReopenKeepsDocument(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "combat.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := store.Update(context.Background(), storage.DefaultScope, func(doc storage.Document) error {
		state := doc.State()
		state.Turn = 3
		doc.Replace(state)
		return nil
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.Load(context.Background(), storage.DefaultScope)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.State.Turn != 3 {
		t.Fatalf("turn = %d, want 3", got.State.Turn)
	}
}

func TestNilStoreIsNotConfigured(t *testing.T) {
	t.Parallel()

	var store *Store
	if _, err := store.Load(context.Background(), storage.DefaultScope); !errors.Is(err, storage.ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close nil store: %v", err)
	}
}

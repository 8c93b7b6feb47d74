package roll

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestVisibilityFor(t *testing.T) {
	if got := VisibilityFor(true); got != VisibilityGM {
		t.Fatalf("hidden visibility = %s, want %s", got, VisibilityGM)
	}
	if got := VisibilityFor(false); got != VisibilityPublic {
		t.Fatalf("visible visibility = %s, want %s", got, VisibilityPublic)
	}
}

func TestDiceRollInitiativeAddsBonus(t *testing.T) {
	roller := Dice{Seed: func() (int64, error) { return 11, nil }}
	result, err := roller.RollInitiative(context.Background(), 4)
	if err != nil {
		t.Fatalf("roll: %v", err)
	}
	if result.Formula != "1d20+4" {
		t.Fatalf("formula = %q, want 1d20+4", result.Formula)
	}
	die := result.Dice.Rolls[0].Results[0]
	if die < 1 || die > 20 {
		t.Fatalf("die = %d, want 1..20", die)
	}
	if result.Total != die+4 {
		t.Fatalf("total = %d, want %d", result.Total, die+4)
	}
	if result.Seed != 11 {
		t.Fatalf("seed = %d, want 11", result.Seed)
	}
}

func TestDiceRollInitiativeSeedError(t *testing.T) {
	boom := errors.New("no entropy")
	roller := Dice{Seed: func() (int64, error) { return 0, boom }}
	if _, err := roller.RollInitiative(context.Background(), 0); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestDiceRollInitiativeDefaultSeed(t *testing.T) {
	result, err := (Dice{}).RollInitiative(context.Background(), 0)
	if err != nil {
		t.Fatalf("roll: %v", err)
	}
	if result.Total < 1 || result.Total > 20 {
		t.Fatalf("total = %d, want 1..20", result.Total)
	}
}

func TestLogPosterWritesMessage(t *testing.T) {
	var buf bytes.Buffer
	poster := LogPoster{Logger: zerolog.New(&buf)}
	err := poster.PostMessage(context.Background(), Message{
		ParticipantID: "p1",
		Alias:         "Goblin",
		Visibility:    VisibilityGM,
		Roll:          Result{Formula: "1d20+1", Total: 9},
	})
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["alias"] != "Goblin" || entry["visibility"] != "gm" {
		t.Fatalf("entry = %v", entry)
	}
	if entry["total"] != float64(9) {
		t.Fatalf("total = %v, want 9", entry["total"])
	}
}

type failingPoster struct{ err error }

func (p failingPoster) PostMessage(context.Context, Message) error { return p.err }

func TestPostersFanOut(t *testing.T) {
	var buf bytes.Buffer
	boom := errors.New("boom")
	posters := Posters{LogPoster{Logger: zerolog.New(&buf)}, nil, failingPoster{err: boom}}
	err := posters.PostMessage(context.Background(), Message{ParticipantID: "p1", Visibility: VisibilityPublic})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected log poster to run before the failing poster")
	}
}

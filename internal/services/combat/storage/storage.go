// Package storage defines persistence contracts for the combat document and
// the world clock it drives.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/louisbranch/turnorder/internal/services/combat/domain/combat"
)

// DefaultScope keys the document when no scope is configured.
const DefaultScope = "world"

var (
	// ErrNotConfigured indicates a nil or closed store.
	ErrNotConfigured = errors.New("storage is not configured")
	// ErrScopeRequired indicates a missing document scope.
	ErrScopeRequired = errors.New("scope is required")
)

// Snapshot is one committed version of a scope's document together with the
// world clock at commit time.
type Snapshot struct {
	Scope     string        `json:"scope"`
	State     combat.State  `json:"state"`
	WorldTime time.Duration `json:"worldTime"`
	Version   int64         `json:"version"`
}

// Document is the mutable view handed to an update transaction. Changes are
// committed together or not at all.
type Document interface {
	State() combat.State
	Replace(state combat.State)
	// WorldTime returns the world clock as modified so far.
	WorldTime() time.Duration
	// Advance moves the world clock forward by d.
	Advance(d time.Duration)
	// Rewind moves the world clock backward by d.
	Rewind(d time.Duration)
}

// UpdateFunc mutates a document inside a store transaction. Returning an error
// discards every change.
type UpdateFunc func(doc Document) error

// Store persists combat documents keyed by scope plus one world clock.
type Store interface {
	// Load returns the latest snapshot for scope, or a reset document at
	// version zero when nothing was stored yet.
	Load(ctx context.Context, scope string) (Snapshot, error)
	// Update runs fn in a transaction and returns the committed snapshot.
	Update(ctx context.Context, scope string, fn UpdateFunc) (Snapshot, error)
	Close() error
}

// NormalizeScope trims scope and rejects empty values.
func NormalizeScope(scope string) (string, error) {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return "", ErrScopeRequired
	}
	return scope, nil
}

// Empty returns the snapshot of a scope that was never written.
func Empty(scope string, worldTime time.Duration) Snapshot {
	return Snapshot{Scope: scope, State: combat.Reset(), WorldTime: worldTime}
}

type draft struct {
	state combat.State
	world time.Duration
}

func (d *draft) State() combat.State {
	return d.state.Clone()
}

func (d *draft) Replace(state combat.State) {
	d.state = state.Clone()
}

func (d *draft) WorldTime() time.Duration {
	return d.world
}

func (d *draft) Advance(delta time.Duration) {
	d.world += delta
}

func (d *draft) Rewind(delta time.Duration) {
	d.world -= delta
}

// Apply runs fn against a draft of snap and returns the next version. Store
// implementations call it inside their own transaction.
func Apply(snap Snapshot, fn UpdateFunc) (Snapshot, error) {
	if fn == nil {
		return snap, errors.New("update func is required")
	}
	d := &draft{state: snap.State.Clone(), world: snap.WorldTime}
	if err := fn(d); err != nil {
		return snap, err
	}
	return Snapshot{
		Scope:     snap.Scope,
		State:     d.state,
		WorldTime: d.world,
		Version:   snap.Version + 1,
	}, nil
}

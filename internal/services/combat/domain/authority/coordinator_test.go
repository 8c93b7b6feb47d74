package authority

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "github.com/louisbranch/turnorder/internal/platform/errors"
	"github.com/louisbranch/turnorder/internal/services/combat/domain/action"
	"github.com/louisbranch/turnorder/internal/services/combat/domain/combat"
	"github.com/louisbranch/turnorder/internal/services/combat/domain/command"
	"github.com/louisbranch/turnorder/internal/services/combat/relay"
	"github.com/louisbranch/turnorder/internal/services/combat/storage"
	"github.com/rs/zerolog"
)

type recordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
}

func (n *recordingNotifier) Notify(_ context.Context, notice Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notices)
}

type fakeAuthority struct {
	authority bool
	relayErr  error
	relayed   []command.Command
}

func (f *fakeAuthority) IsAuthority() bool { return f.authority }

func (f *fakeAuthority) Relay(_ context.Context, cmd command.Command) error {
	if f.relayErr != nil {
		return f.relayErr
	}
	f.relayed = append(f.relayed, cmd)
	return nil
}

func newCoordinator(t *testing.T, store storage.Store, auth Authority, notifier Notifier, cfg Config) *Coordinator {
	t.Helper()
	registry, err := action.NewRegistry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	c, err := NewCoordinator(cfg, Deps{
		Store:     store,
		Registry:  registry,
		Authority: auth,
		Notifier:  notifier,
		Logger:    zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	return c
}

func seed(t *testing.T, store storage.Store, state combat.State) {
	t.Helper()
	if _, err := store.Update(context.Background(), storage.DefaultScope, func(doc storage.Document) error {
		doc.Replace(state)
		return nil
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func twoParticipants() combat.State {
	state := combat.Reset()
	state.Participants = []combat.Participant{
		{ID: "a", Name: "Alice", Initiative: combat.Float(15)},
		{ID: "b", Name: "Bruno", Initiative: combat.Float(10)},
	}
	state.Round = 1
	return state
}

func TestNewCoordinatorRequiresDeps(t *testing.T) {
	if _, err := NewCoordinator(Config{}, Deps{}); err == nil {
		t.Fatal("expected error for missing deps")
	}
}

func TestDispatchAsAuthorityApplies(t *testing.T) {
	store := storage.NewMemoryStore()
	seed(t, store, twoParticipants())
	c := newCoordinator(t, store, Static(true), nil, Config{})

	cmd, err := action.NewRemoveParticipants("b")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	outcome, err := c.Dispatch(context.Background(), cmd)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if outcome.Status != StatusApplied {
		t.Fatalf("status = %s, want %s", outcome.Status, StatusApplied)
	}
	if len(outcome.Snapshot.State.Participants) != 1 {
		t.Fatalf("participants = %d, want 1", len(outcome.Snapshot.State.Participants))
	}
}

func TestDispatchWithoutAuthorityNotifiesOnceAndDrops(t *testing.T) {
	store := storage.NewMemoryStore()
	seed(t, store, twoParticipants())
	notifier := &recordingNotifier{}
	c := newCoordinator(t, store, Static(false), notifier, Config{})

	cmd, err := action.NewRemoveParticipants("a")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	outcome, err := c.Dispatch(context.Background(), cmd)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if outcome.Status != StatusDropped {
		t.Fatalf("status = %s, want %s", outcome.Status, StatusDropped)
	}
	if got := notifier.count(); got != 1 {
		t.Fatalf("notices = %d, want 1", got)
	}
	if notifier.notices[0].Code != apperrors.CodeCombatNoAuthority {
		t.Fatalf("notice code = %s, want %s", notifier.notices[0].Code, apperrors.CodeCombatNoAuthority)
	}
	if notifier.notices[0].Message != "cannot update combat without an authority present" {
		t.Fatalf("notice message = %q", notifier.notices[0].Message)
	}
	snap, err := store.Load(context.Background(), storage.DefaultScope)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snap.State.Participants) != 2 || snap.Version != 1 {
		t.Fatalf("document changed: %+v", snap)
	}
}

func TestDispatchRelaysToReachableAuthority(t *testing.T) {
	auth := &fakeAuthority{}
	c := newCoordinator(t, storage.NewMemoryStore(), auth, nil, Config{})

	outcome, err := c.Dispatch(context.Background(), action.NewReset())
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if outcome.Status != StatusRelayed {
		t.Fatalf("status = %s, want %s", outcome.Status, StatusRelayed)
	}
	if len(auth.relayed) != 1 || auth.relayed[0].Type != action.CommandTypeReset {
		t.Fatalf("relayed = %+v", auth.relayed)
	}
}

func TestDispatchRelayTransportErrorIsReturned(t *testing.T) {
	boom := errors.New("broken pipe")
	notifier := &recordingNotifier{}
	c := newCoordinator(t, storage.NewMemoryStore(), &fakeAuthority{relayErr: boom}, notifier, Config{})

	_, err := c.Dispatch(context.Background(), action.NewReset())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if notifier.count() != 0 {
		t.Fatal("transport errors must not raise the no-authority notice")
	}
}

func TestDispatchRejectsInvalidCommand(t *testing.T) {
	c := newCoordinator(t, storage.NewMemoryStore(), Static(true), nil, Config{})
	_, err := c.Dispatch(context.Background(), command.Command{Type: "combat.fly"})
	if got := apperrors.GetCode(err); got != apperrors.CodeCombatCommandInvalid {
		t.Fatalf("code = %s, want %s", got, apperrors.CodeCombatCommandInvalid)
	}
}

func TestApplyAdvancesClockWhenLinked(t *testing.T) {
	store := storage.NewMemoryStore()
	state := twoParticipants()
	state.LinkToWorldTime = true
	seed(t, store, state)
	c := newCoordinator(t, store, Static(true), nil, Config{TurnInterval: 10 * time.Second})
	ctx := context.Background()

	next, err := action.NewUpdateRound(2, 0, false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	outcome, err := c.Dispatch(ctx, next)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if outcome.Snapshot.WorldTime != 10*time.Second {
		t.Fatalf("world time = %v, want 10s", outcome.Snapshot.WorldTime)
	}

	back, err := action.NewUpdateRound(1, 1, true)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	outcome, err = c.Dispatch(ctx, back)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if outcome.Snapshot.WorldTime != 0 {
		t.Fatalf("world time = %v, want 0", outcome.Snapshot.WorldTime)
	}

	same, err := action.NewUpdateRound(1, 0, false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	outcome, err = c.Dispatch(ctx, same)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if outcome.Snapshot.WorldTime != 0 {
		t.Fatalf("turn change moved the clock to %v", outcome.Snapshot.WorldTime)
	}
}

func TestApplyLeavesClockWhenNotLinked(t *testing.T) {
	store := storage.NewMemoryStore()
	seed(t, store, twoParticipants())
	c := newCoordinator(t, store, Static(true), nil, Config{})

	next, err := action.NewUpdateRound(2, 0, false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	outcome, err := c.Dispatch(context.Background(), next)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if outcome.Snapshot.WorldTime != 0 {
		t.Fatalf("world time = %v, want 0", outcome.Snapshot.WorldTime)
	}
}

func TestApplyAlwaysAdvanceClock(t *testing.T) {
	store := storage.NewMemoryStore()
	seed(t, store, twoParticipants())
	c := newCoordinator(t, store, Static(true), nil, Config{AlwaysAdvanceClock: true})

	next, err := action.NewUpdateRound(2, 0, false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	outcome, err := c.Dispatch(context.Background(), next)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if outcome.Snapshot.WorldTime != DefaultTurnInterval {
		t.Fatalf("world time = %v, want %v", outcome.Snapshot.WorldTime, DefaultTurnInterval)
	}
}

func TestHandleRelayedRequiresAuthority(t *testing.T) {
	c := newCoordinator(t, storage.NewMemoryStore(), Static(false), nil, Config{})
	err := c.HandleRelayed(context.Background(), relay.NewEnvelope("p2", action.NewReset()))
	if got := apperrors.GetCode(err); got != apperrors.CodeCombatNotAuthority {
		t.Fatalf("code = %s, want %s", got, apperrors.CodeCombatNotAuthority)
	}
}

func TestHandleRelayedValidatesPayload(t *testing.T) {
	c := newCoordinator(t, storage.NewMemoryStore(), Static(true), nil, Config{})
	env := relay.NewEnvelope("p2", command.Command{
		Type:    action.CommandTypeUpdateRound,
		Payload: []byte(`{"round":-4,"turn":0}`),
	})
	err := c.HandleRelayed(context.Background(), env)
	if got := apperrors.GetCode(err); got != apperrors.CodeCombatCommandInvalid {
		t.Fatalf("code = %s, want %s", got, apperrors.CodeCombatCommandInvalid)
	}
}

func TestHandleRelayedRejectsEmptyEnvelope(t *testing.T) {
	c := newCoordinator(t, storage.NewMemoryStore(), Static(true), nil, Config{})
	err := c.HandleRelayed(context.Background(), relay.Envelope{ID: "x"})
	if got := apperrors.GetCode(err); got != apperrors.CodeCombatCommandInvalid {
		t.Fatalf("code = %s, want %s", got, apperrors.CodeCombatCommandInvalid)
	}
}

func TestHandleRelayedIgnoresDuplicates(t *testing.T) {
	store := storage.NewMemoryStore()
	c := newCoordinator(t, store, Static(true), nil, Config{})
	add, err := action.NewAddParticipants([]combat.Participant{{ID: "x", Name: "Xan"}}, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	env := relay.NewEnvelope("p2", add)
	for range 2 {
		if err := c.HandleRelayed(context.Background(), env); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	snap, err := store.Load(context.Background(), storage.DefaultScope)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap.Version != 1 {
		t.Fatalf("version = %d, want 1", snap.Version)
	}
}

func TestConcurrentDispatchesApplyInArrivalOrder(t *testing.T) {
	store := storage.NewMemoryStore()
	c := newCoordinator(t, store, Static(true), nil, Config{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cmd, err := action.NewAddParticipants([]combat.Participant{{Name: "P"}}, nil)
			if err != nil {
				t.Errorf("build %d: %v", i, err)
				return
			}
			if _, err := c.Dispatch(ctx, cmd); err != nil {
				t.Errorf("dispatch %d: %v", i, err)
			}
		}()
	}
	wg.Wait()

	snap, err := store.Load(ctx, storage.DefaultScope)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snap.State.Participants) != 20 || snap.Version != 20 {
		t.Fatalf("participants = %d version = %d, want 20/20", len(snap.State.Participants), snap.Version)
	}
}

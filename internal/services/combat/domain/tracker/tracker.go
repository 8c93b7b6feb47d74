// Package tracker implements the user-facing combat operations. Every
// operation reads the current document, computes the commands it needs and
// dispatches them in order.
//
// The action reducer never clamps the turn pointer. Operations that can
// change the projected round (adding, removing or re-ranking participants)
// predict the next document with the reducer and follow up with an
// update_round that keeps the turn on the same logical slot, or on the nearest
// eligible one when that slot is gone.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/louisbranch/turnorder/internal/platform/errors"
	"github.com/louisbranch/turnorder/internal/services/combat/domain/action"
	"github.com/louisbranch/turnorder/internal/services/combat/domain/authority"
	"github.com/louisbranch/turnorder/internal/services/combat/domain/combat"
	"github.com/louisbranch/turnorder/internal/services/combat/domain/command"
	"github.com/louisbranch/turnorder/internal/services/combat/domain/roll"
	"github.com/louisbranch/turnorder/internal/services/combat/storage"
)

// ErrTooManyExtraActions indicates a participant already holds the maximum
// extra actions for the round.
var ErrTooManyExtraActions = fmt.Errorf("at most %d extra actions per round", combat.MaxExtraActions)

// Dispatcher applies or relays commands and exposes the current document.
type Dispatcher interface {
	Load(ctx context.Context) (storage.Snapshot, error)
	DispatchAll(ctx context.Context, cmds ...command.Command) (authority.Outcome, error)
}

// Tracker runs combat operations against a dispatcher.
type Tracker struct {
	dispatcher Dispatcher
	roller     roll.Roller
	poster     roll.Poster
	newID      action.IDGenerator
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithRoller sets the initiative roller.
func WithRoller(roller roll.Roller) Option {
	return func(t *Tracker) { t.roller = roller }
}

// WithPoster sets the roll message poster.
func WithPoster(poster roll.Poster) Option {
	return func(t *Tracker) { t.poster = poster }
}

// WithIDGenerator sets the participant id generator.
func WithIDGenerator(newID action.IDGenerator) Option {
	return func(t *Tracker) { t.newID = newID }
}

// New returns a tracker dispatching through dispatcher.
func New(dispatcher Dispatcher, opts ...Option) (*Tracker, error) {
	if dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	t := &Tracker{dispatcher: dispatcher, roller: roll.Dice{}}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// State returns the current document.
func (t *Tracker) State(ctx context.Context) (combat.State, error) {
	snap, err := t.dispatcher.Load(ctx)
	if err != nil {
		return combat.State{}, err
	}
	return snap.State, nil
}

// StartCombat moves an unstarted encounter to round 1 on its first eligible
// turn.
func (t *Tracker) StartCombat(ctx context.Context) (authority.Outcome, error) {
	state, err := t.State(ctx)
	if err != nil {
		return authority.Outcome{}, err
	}
	if state.Round > 0 {
		return authority.Outcome{Status: authority.StatusDropped}, nil
	}
	cmd, err := action.NewUpdateRound(1, firstTurn(state, 1), false)
	if err != nil {
		return authority.Outcome{}, err
	}
	return t.dispatcher.DispatchAll(ctx, cmd)
}

// NextTurn moves to the next eligible slot, or to the next round when none
// remains.
func (t *Tracker) NextTurn(ctx context.Context) (authority.Outcome, error) {
	state, err := t.State(ctx)
	if err != nil {
		return authority.Outcome{}, err
	}
	cmd, err := nextTurn(state)
	if err != nil {
		return authority.Outcome{}, err
	}
	return t.dispatcher.DispatchAll(ctx, cmd)
}

// PreviousTurn moves to the previous eligible slot, or to the previous round
// when none remains.
func (t *Tracker) PreviousTurn(ctx context.Context) (authority.Outcome, error) {
	state, err := t.State(ctx)
	if err != nil {
		return authority.Outcome{}, err
	}
	cmd, ok, err := previousTurn(state)
	if err != nil || !ok {
		return authority.Outcome{Status: authority.StatusDropped}, err
	}
	return t.dispatcher.DispatchAll(ctx, cmd)
}

// NextRound starts the next round on its first eligible slot.
func (t *Tracker) NextRound(ctx context.Context) (authority.Outcome, error) {
	state, err := t.State(ctx)
	if err != nil {
		return authority.Outcome{}, err
	}
	cmd, err := action.NewUpdateRound(state.Round+1, firstTurn(state, state.Round+1), false)
	if err != nil {
		return authority.Outcome{}, err
	}
	return t.dispatcher.DispatchAll(ctx, cmd)
}

// PreviousRound returns to the last eligible slot of the previous round.
func (t *Tracker) PreviousRound(ctx context.Context) (authority.Outcome, error) {
	state, err := t.State(ctx)
	if err != nil {
		return authority.Outcome{}, err
	}
	cmd, ok, err := previousRound(state)
	if err != nil || !ok {
		return authority.Outcome{Status: authority.StatusDropped}, err
	}
	return t.dispatcher.DispatchAll(ctx, cmd)
}

// AddParticipants appends participants, assigning ids where missing.
func (t *Tracker) AddParticipants(ctx context.Context, participants ...combat.Participant) (authority.Outcome, error) {
	cmd, err := action.NewAddParticipants(participants, t.newID)
	if err != nil {
		return authority.Outcome{}, err
	}
	return t.dispatchReclamped(ctx, cmd)
}

// RemoveParticipants removes participants by id.
func (t *Tracker) RemoveParticipants(ctx context.Context, ids ...string) (authority.Outcome, error) {
	cmd, err := action.NewRemoveParticipants(ids...)
	if err != nil {
		return authority.Outcome{}, err
	}
	return t.dispatchReclamped(ctx, cmd)
}

// TakeInitiative tags id as having taken the initiative this round using
// pool. An empty pool clears the tag.
func (t *Tracker) TakeInitiative(ctx context.Context, id string, pool combat.Pool) (authority.Outcome, error) {
	state, p, err := t.participant(ctx, id)
	if err != nil {
		return authority.Outcome{}, err
	}
	modifier := p.Modifier(state.Round)
	modifier.TookInitiative = pool
	return t.patchModifier(ctx, state, p, modifier)
}

// AddExtraAction grants id one more slot this round.
func (t *Tracker) AddExtraAction(ctx context.Context, id string, extra combat.ExtraAction) (authority.Outcome, error) {
	state, p, err := t.participant(ctx, id)
	if err != nil {
		return authority.Outcome{}, err
	}
	modifier := p.Modifier(state.Round)
	if len(modifier.ExtraActions) >= combat.MaxExtraActions {
		return authority.Outcome{}, ErrTooManyExtraActions
	}
	modifier.ExtraActions = append(modifier.ExtraActions, extra)
	return t.patchModifier(ctx, state, p, modifier)
}

// RemoveExtraAction drops the last extra action id holds this round.
func (t *Tracker) RemoveExtraAction(ctx context.Context, id string) (authority.Outcome, error) {
	state, p, err := t.participant(ctx, id)
	if err != nil {
		return authority.Outcome{}, err
	}
	modifier := p.Modifier(state.Round)
	if len(modifier.ExtraActions) == 0 {
		return authority.Outcome{Status: authority.StatusDropped}, nil
	}
	modifier.ExtraActions = modifier.ExtraActions[:len(modifier.ExtraActions)-1]
	return t.patchModifier(ctx, state, p, modifier)
}

// SetDelaying toggles the delaying flag. A participant that starts delaying
// on its own turn hands the turn to the nearest eligible slot in the current
// direction: the following slot, or the preceding one while going backwards.
func (t *Tracker) SetDelaying(ctx context.Context, id string, delaying bool) (authority.Outcome, error) {
	state, _, err := t.participant(ctx, id)
	if err != nil {
		return authority.Outcome{}, err
	}
	patch, err := action.PatchOf(id).With("delaying", delaying)
	if err != nil {
		return authority.Outcome{}, err
	}
	cmd, err := action.NewUpdateParticipants(patch)
	if err != nil {
		return authority.Outcome{}, err
	}
	return t.dispatchFrom(ctx, state, cmd)
}

// SetDefeated toggles the defeated flag.
func (t *Tracker) SetDefeated(ctx context.Context, id string, defeated bool) (authority.Outcome, error) {
	state, _, err := t.participant(ctx, id)
	if err != nil {
		return authority.Outcome{}, err
	}
	patch, err := action.PatchOf(id).With("defeated", defeated)
	if err != nil {
		return authority.Outcome{}, err
	}
	cmd, err := action.NewUpdateParticipants(patch)
	if err != nil {
		return authority.Outcome{}, err
	}
	return t.dispatchFrom(ctx, state, cmd)
}

// Interrupt moves interrupterID ahead of targetID.
func (t *Tracker) Interrupt(ctx context.Context, targetID, interrupterID string) (authority.Outcome, error) {
	cmd, err := action.NewApplyInterrupt(targetID, interrupterID)
	if err != nil {
		return authority.Outcome{}, err
	}
	return t.dispatcher.DispatchAll(ctx, cmd)
}

// RollInitiative rolls and stores initiative for id, then posts the roll.
func (t *Tracker) RollInitiative(ctx context.Context, id string, bonus int) (authority.Outcome, error) {
	if t.roller == nil {
		return authority.Outcome{}, errors.New("initiative roller is not configured")
	}
	state, p, err := t.participant(ctx, id)
	if err != nil {
		return authority.Outcome{}, err
	}
	result, err := t.roller.RollInitiative(ctx, bonus)
	if err != nil {
		return authority.Outcome{}, fmt.Errorf("roll initiative: %w", err)
	}
	patch, err := action.PatchOf(id).With("initiative", float64(result.Total))
	if err != nil {
		return authority.Outcome{}, err
	}
	cmd, err := action.NewUpdateParticipants(patch)
	if err != nil {
		return authority.Outcome{}, err
	}
	outcome, err := t.dispatchFrom(ctx, state, cmd)
	if err != nil || outcome.Status == authority.StatusDropped {
		return outcome, err
	}
	if t.poster != nil {
		msg := roll.Message{
			ParticipantID: p.ID,
			Alias:         p.Name,
			Visibility:    roll.VisibilityFor(p.Hidden),
			Roll:          result,
		}
		if err := t.poster.PostMessage(ctx, msg); err != nil {
			return outcome, fmt.Errorf("post roll: %w", err)
		}
	}
	return outcome, nil
}

// SetSkipDefeated toggles whether navigation skips defeated participants.
func (t *Tracker) SetSkipDefeated(ctx context.Context, skip bool) (authority.Outcome, error) {
	cmd, err := action.NewUpdateSettings(action.UpdateSettingsPayload{SkipDefeated: &skip})
	if err != nil {
		return authority.Outcome{}, err
	}
	return t.dispatcher.DispatchAll(ctx, cmd)
}

// SetLinkToWorldTime toggles whether round changes move the world clock.
func (t *Tracker) SetLinkToWorldTime(ctx context.Context, link bool) (authority.Outcome, error) {
	cmd, err := action.NewUpdateSettings(action.UpdateSettingsPayload{LinkToWorldTime: &link})
	if err != nil {
		return authority.Outcome{}, err
	}
	return t.dispatcher.DispatchAll(ctx, cmd)
}

// EndCombat resets the document.
func (t *Tracker) EndCombat(ctx context.Context) (authority.Outcome, error) {
	return t.dispatcher.DispatchAll(ctx, action.NewReset())
}

func (t *Tracker) participant(ctx context.Context, id string) (combat.State, combat.Participant, error) {
	state, err := t.State(ctx)
	if err != nil {
		return combat.State{}, combat.Participant{}, err
	}
	id = strings.TrimSpace(id)
	p, ok := state.Participant(id)
	if !ok {
		return combat.State{}, combat.Participant{}, apperrors.WithMetadata(
			apperrors.CodeCombatParticipantNotFound,
			fmt.Sprintf("participant %s not found", id),
			map[string]string{"ParticipantID": id},
		)
	}
	return state, p, nil
}

func (t *Tracker) patchModifier(ctx context.Context, state combat.State, p combat.Participant, modifier combat.TurnModifier) (authority.Outcome, error) {
	updated := p.WithModifier(state.Round, modifier)
	patch, err := action.PatchOf(p.ID).With("modifiedTurn", updated.ModifiedTurn)
	if err != nil {
		return authority.Outcome{}, err
	}
	cmd, err := action.NewUpdateParticipants(patch)
	if err != nil {
		return authority.Outcome{}, err
	}
	return t.dispatchFrom(ctx, state, cmd)
}

func (t *Tracker) dispatchReclamped(ctx context.Context, cmd command.Command) (authority.Outcome, error) {
	state, err := t.State(ctx)
	if err != nil {
		return authority.Outcome{}, err
	}
	return t.dispatchFrom(ctx, state, cmd)
}

// dispatchFrom dispatches cmd followed, when needed, by the update_round that
// re-clamps the turn against the predicted document.
func (t *Tracker) dispatchFrom(ctx context.Context, state combat.State, cmd command.Command) (authority.Outcome, error) {
	cmds := []command.Command{cmd}
	next := action.Reduce(state, cmd)
	if turn := Reclamp(state, next); turn != next.Turn {
		update, err := action.NewUpdateRound(next.Round, turn, next.GoingBackwards)
		if err != nil {
			return authority.Outcome{}, err
		}
		cmds = append(cmds, update)
	}
	return t.dispatcher.DispatchAll(ctx, cmds...)
}

package tracker

import (
	"fmt"

	"github.com/louisbranch/turnorder/internal/services/combat/domain/action"
	"github.com/louisbranch/turnorder/internal/services/combat/domain/combat"
	"github.com/louisbranch/turnorder/internal/services/combat/domain/command"
	"github.com/louisbranch/turnorder/internal/services/combat/domain/initiative"
)

// firstTurn returns the first eligible slot of round, or 0.
func firstTurn(state combat.State, round int) int {
	slots := initiative.ProjectRound(state.Participants, round).Participants
	idx := initiative.FindTurn(slots, 0, initiative.NavigateOptions{
		SkipDefeated: state.SkipDefeated,
		Exhaustive:   true,
	})
	return max(idx, 0)
}

// lastTurn returns the last eligible slot of round, or 0.
func lastTurn(state combat.State, round int) int {
	slots := initiative.ProjectRound(state.Participants, round).Participants
	idx := initiative.FindTurn(slots, len(slots)-1, initiative.NavigateOptions{
		SkipDefeated:   state.SkipDefeated,
		GoingBackwards: true,
		Exhaustive:     true,
	})
	return max(idx, 0)
}

func nextTurn(state combat.State) (command.Command, error) {
	slots := initiative.Project(state).Participants
	idx := initiative.FindTurn(slots, state.Turn+1, initiative.NavigateOptions{
		SkipDefeated: state.SkipDefeated,
	})
	if idx < 0 {
		return action.NewUpdateRound(state.Round+1, firstTurn(state, state.Round+1), false)
	}
	return action.NewUpdateRound(state.Round, idx, false)
}

func previousTurn(state combat.State) (command.Command, bool, error) {
	slots := initiative.Project(state).Participants
	idx := -1
	if state.Turn > 0 {
		idx = initiative.FindTurn(slots, state.Turn-1, initiative.NavigateOptions{
			SkipDefeated:   state.SkipDefeated,
			GoingBackwards: true,
		})
	}
	if idx < 0 {
		return previousRound(state)
	}
	cmd, err := action.NewUpdateRound(state.Round, idx, true)
	return cmd, err == nil, err
}

func previousRound(state combat.State) (command.Command, bool, error) {
	if state.Round <= 0 {
		return command.Command{}, false, nil
	}
	round := state.Round - 1
	turn := 0
	if round > 0 {
		turn = lastTurn(state, round)
	}
	cmd, err := action.NewUpdateRound(round, turn, true)
	return cmd, err == nil, err
}

// Reclamp returns the turn index next should use so the pointer stays on the
// slot it held in prev. When that slot no longer exists or is no longer
// eligible, the nearest eligible slot in the current direction is used,
// wrapping when needed.
func Reclamp(prev, next combat.State) int {
	slots := initiative.Project(next).Participants
	if len(slots) == 0 {
		return 0
	}
	start := min(max(next.Turn, 0), len(slots)-1)
	if prev.Round == next.Round {
		if key, ok := slotKeyAt(initiative.Project(prev).Participants, prev.Turn); ok {
			for i := range slots {
				if k, _ := slotKeyAt(slots, i); k != key {
					continue
				}
				if initiative.Eligible(slots[i], next.SkipDefeated) {
					return i
				}
				start = i
				break
			}
		}
	}
	idx := initiative.FindTurn(slots, start, initiative.NavigateOptions{
		SkipDefeated:   next.SkipDefeated,
		GoingBackwards: next.GoingBackwards,
		Exhaustive:     true,
	})
	if idx < 0 {
		return start
	}
	return idx
}

// slotKeyAt identifies slot i by participant id and its ordinal among that
// participant's slots, so extra actions keep distinct keys.
func slotKeyAt(slots []combat.RoundParticipant, i int) (string, bool) {
	if i < 0 || i >= len(slots) {
		return "", false
	}
	id := slots[i].Participant.ID
	ordinal := 0
	for j := 0; j < i; j++ {
		if slots[j].Participant.ID == id {
			ordinal++
		}
	}
	return fmt.Sprintf("%s#%d", id, ordinal), true
}

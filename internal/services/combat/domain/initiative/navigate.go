package initiative

import "github.com/louisbranch/turnorder/internal/services/combat/domain/combat"

// NavigateOptions tunes a turn search.
type NavigateOptions struct {
	// SkipDefeated treats defeated participants as ineligible.
	SkipDefeated bool
	// GoingBackwards searches toward the start of the round first.
	GoingBackwards bool
	// Exhaustive allows the search to wrap into the other half of the round.
	Exhaustive bool
}

// Eligible reports whether a slot may hold the turn.
func Eligible(slot combat.RoundParticipant, skipDefeated bool) bool {
	p := slot.Participant
	return !p.Delaying && (!skipDefeated || !p.Defeated)
}

// FindTurn returns the index of the next eligible slot starting at start, or
// -1 when none exists in the searched range.
//
// A forward search scans [start, end); when exhaustive it then falls back to
// the backward scan of [0, start]. A backward search scans [0, start] from
// start down; when exhaustive it then falls back to the forward scan of
// [start, end). Both directions share the same two primitives.
func FindTurn(slots []combat.RoundParticipant, start int, opts NavigateOptions) int {
	if len(slots) == 0 {
		return -1
	}
	first, second := scanForward, scanBackward
	if opts.GoingBackwards {
		first, second = scanBackward, scanForward
	}
	if idx := first(slots, start, opts.SkipDefeated); idx >= 0 {
		return idx
	}
	if !opts.Exhaustive {
		return -1
	}
	return second(slots, start, opts.SkipDefeated)
}

func scanForward(slots []combat.RoundParticipant, start int, skipDefeated bool) int {
	if start < 0 {
		start = 0
	}
	for i := start; i < len(slots); i++ {
		if Eligible(slots[i], skipDefeated) {
			return i
		}
	}
	return -1
}

func scanBackward(slots []combat.RoundParticipant, start int, skipDefeated bool) int {
	if start >= len(slots) {
		start = len(slots) - 1
	}
	for i := start; i >= 0; i-- {
		if Eligible(slots[i], skipDefeated) {
			return i
		}
	}
	return -1
}

package initiative

import (
	"slices"

	"github.com/louisbranch/turnorder/internal/services/combat/domain/combat"
)

// Epsilon is the initiative gap used to slot an interrupter ahead of its
// target. Repeated interrupts between the same neighbors shrink the usable gap.
const Epsilon = 0.01

// InterruptResult is the outcome of scheduling an interrupt.
type InterruptResult struct {
	// Participants is the updated participant list, in the input order.
	Participants []combat.Participant
	// DecreaseTurn is set when the interrupter already acted ahead of the
	// target, so the turn pointer must retreat by one.
	DecreaseTurn bool
	// Applied is false when the target or interrupter could not be found.
	Applied bool
}

// Interrupt moves interrupterID immediately ahead of targetID in plain
// initiative order without re-ranking everyone else.
//
// The interrupter receives the target's initiative plus Epsilon. Walking back
// from the target, any participant whose initiative equals the running value is
// bumped by Epsilon too, so the new value never collides with a neighbor.
// Participants already tied with the target's original initiative are not
// adjusted; an interrupter may land ahead of them as well.
func Interrupt(participants []combat.Participant, targetID, interrupterID string) InterruptResult {
	out := make([]combat.Participant, len(participants))
	for i, p := range participants {
		out[i] = p.Clone()
	}
	unchanged := InterruptResult{Participants: out}
	if targetID == "" || interrupterID == "" || targetID == interrupterID {
		return unchanged
	}

	order := make([]int, len(out))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return Compare(plain(out[a]), plain(out[b]))
	})

	active := slices.IndexFunc(order, func(i int) bool { return out[i].ID == targetID })
	interrupter := slices.IndexFunc(out, func(p combat.Participant) bool { return p.ID == interrupterID })
	if active < 0 || interrupter < 0 {
		return unchanged
	}

	newInitiative := out[order[active]].InitiativeValue() + Epsilon
	current := newInitiative
	decreaseTurn := false
	for k := active - 1; k >= 0; k-- {
		p := &out[order[k]]
		if p.ID == interrupterID {
			decreaseTurn = true
			continue
		}
		if p.Initiative != nil && *p.Initiative == current {
			current += Epsilon
			p.Initiative = combat.Float(current)
		}
	}

	out[interrupter].Delaying = false
	out[interrupter].Initiative = combat.Float(newInitiative)
	return InterruptResult{Participants: out, DecreaseTurn: decreaseTurn, Applied: true}
}

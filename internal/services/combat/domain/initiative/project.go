package initiative

import "github.com/louisbranch/turnorder/internal/services/combat/domain/combat"

// Round is the ordered slot sequence for one round.
type Round struct {
	Participants       []combat.RoundParticipant `json:"participants"`
	SomeTookInitiative bool                      `json:"someTookInitiative"`
}

// Len returns the number of slots in the round.
func (r Round) Len() int {
	return len(r.Participants)
}

// ProjectRound expands participants and their modifiers for round into an
// ordered slot sequence. Every participant yields one regular slot, plus one
// slot per extra action (at most combat.MaxExtraActions).
func ProjectRound(participants []combat.Participant, round int) Round {
	slots := make([]combat.RoundParticipant, 0, len(participants))
	someTook := false
	for _, p := range participants {
		modifier := p.Modifier(round)
		slot := combat.RoundParticipant{Participant: p, TookInitiative: modifier.TookInitiative}
		if slot.Took() {
			someTook = true
		}
		slots = append(slots, slot)

		for i, extra := range modifier.ExtraActions {
			if i >= combat.MaxExtraActions {
				break
			}
			slots = append(slots, combat.RoundParticipant{Participant: p, Extra: &extra})
		}
	}
	Sort(slots)
	return Round{Participants: slots, SomeTookInitiative: someTook}
}

// Project projects the current round of state.
func Project(state combat.State) Round {
	return ProjectRound(state.Participants, state.Round)
}

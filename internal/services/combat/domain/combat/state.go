package combat

// State is the canonical combat document.
//
// Turn indexes the projected sequence of the current round, not Participants.
// Nothing in this package keeps Turn in range; callers re-clamp it with the
// turn navigator whenever the projected length can change.
type State struct {
	Participants    []Participant `json:"participants"`
	Round           int           `json:"round"`
	Turn            int           `json:"turn"`
	GoingBackwards  bool          `json:"goingBackwards"`
	SkipDefeated    bool          `json:"skipDefeated,omitempty"`
	LinkToWorldTime bool          `json:"linkToWorldTime,omitempty"`
}

// Reset returns the document every encounter starts from.
func Reset() State {
	return State{
		Participants:   []Participant{},
		Round:          0,
		Turn:           0,
		GoingBackwards: false,
	}
}

// Clone returns a deep copy of the document.
func (s State) Clone() State {
	out := s
	out.Participants = make([]Participant, len(s.Participants))
	for i, p := range s.Participants {
		out.Participants[i] = p.Clone()
	}
	return out
}

// Index returns the position of the participant with id, or -1.
func (s State) Index(id string) int {
	for i, p := range s.Participants {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// Participant returns the participant with id.
func (s State) Participant(id string) (Participant, bool) {
	if i := s.Index(id); i >= 0 {
		return s.Participants[i], true
	}
	return Participant{}, false
}

// RoundParticipant is one slot of a projected round. It is derived from the
// document on demand and never persisted.
type RoundParticipant struct {
	Participant    Participant  `json:"participant"`
	TookInitiative Pool         `json:"tookInitiative,omitempty"`
	Extra          *ExtraAction `json:"extra,omitempty"`
}

// IsExtra reports whether the slot is an extra action.
func (r RoundParticipant) IsExtra() bool {
	return r.Extra != nil
}

// Took reports whether the slot took the initiative this round.
func (r RoundParticipant) Took() bool {
	return r.TookInitiative.Set()
}

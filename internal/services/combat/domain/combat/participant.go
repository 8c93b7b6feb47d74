package combat

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// MaxExtraActions caps the extra action slots a participant can hold per round.
const MaxExtraActions = 2

// Pool tags the resource pool that paid for a turn modifier. The empty pool
// means the modifier is not set.
type Pool string

// Set reports whether the pool tag is present.
func (p Pool) Set() bool {
	return strings.TrimSpace(string(p)) != ""
}

// ExtraAction is an additional, lower-priority turn slot granted for a round.
type ExtraAction struct {
	Pool Pool `json:"pool"`
	Flag bool `json:"flag"`
}

// TurnModifier captures the per-round modifiers of a participant.
type TurnModifier struct {
	TookInitiative Pool          `json:"tookInitiative,omitempty"`
	ExtraActions   []ExtraAction `json:"extraActions,omitempty"`
}

// Participant is a persistent combatant entry.
//
// Initiative is nil until it has been rolled. ModifiedTurn is keyed by round
// index and only grows; entries for past rounds are kept so rewinding a round
// restores its ordering.
type Participant struct {
	ID                string               `json:"id"`
	Name              string               `json:"name"`
	Img               string               `json:"img,omitempty"`
	Initiative        *float64             `json:"initiative,omitempty"`
	EntityIdentifiers *Identifiers         `json:"entityIdentifiers,omitempty"`
	Hidden            bool                 `json:"hidden"`
	Defeated          bool                 `json:"defeated"`
	Delaying          bool                 `json:"delaying"`
	UserID            string               `json:"userId,omitempty"`
	ModifiedTurn      map[int]TurnModifier `json:"modifiedTurn,omitempty"`
}

// HasInitiative reports whether initiative has been rolled.
func (p Participant) HasInitiative() bool {
	return p.Initiative != nil
}

// InitiativeValue returns the rolled initiative or zero when absent.
func (p Participant) InitiativeValue() float64 {
	if p.Initiative == nil {
		return 0
	}
	return *p.Initiative
}

// Modifier returns the turn modifier recorded for round.
func (p Participant) Modifier(round int) TurnModifier {
	if p.ModifiedTurn == nil {
		return TurnModifier{}
	}
	return p.ModifiedTurn[round]
}

// Clone returns a deep copy so callers can mutate it without touching the
// source document.
func (p Participant) Clone() Participant {
	out := p
	if p.Initiative != nil {
		value := *p.Initiative
		out.Initiative = &value
	}
	if p.EntityIdentifiers != nil {
		ids := *p.EntityIdentifiers
		out.EntityIdentifiers = &ids
	}
	if p.ModifiedTurn != nil {
		out.ModifiedTurn = make(map[int]TurnModifier, len(p.ModifiedTurn))
		for round, modifier := range p.ModifiedTurn {
			modifier.ExtraActions = slices.Clone(modifier.ExtraActions)
			out.ModifiedTurn[round] = modifier
		}
	}
	return out
}

// WithModifier returns a copy of p with the modifier for round replaced.
func (p Participant) WithModifier(round int, modifier TurnModifier) Participant {
	out := p.Clone()
	if out.ModifiedTurn == nil {
		out.ModifiedTurn = make(map[int]TurnModifier)
	}
	modifier.ExtraActions = slices.Clone(modifier.ExtraActions)
	out.ModifiedTurn[round] = modifier
	return out
}

// Validate checks the participant invariants enforced at ingress.
func (p Participant) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("participant id is required")
	}
	if p.EntityIdentifiers != nil {
		if err := p.EntityIdentifiers.Validate(); err != nil {
			return fmt.Errorf("participant %s: %w", p.ID, err)
		}
	}
	for _, round := range slices.Sorted(maps.Keys(p.ModifiedTurn)) {
		if round < 0 {
			return fmt.Errorf("participant %s: modified turn round %d is negative", p.ID, round)
		}
		if n := len(p.ModifiedTurn[round].ExtraActions); n > MaxExtraActions {
			return fmt.Errorf("participant %s: round %d has %d extra actions, max %d", p.ID, round, n, MaxExtraActions)
		}
	}
	return nil
}

// Float returns a pointer to value, for building initiative fields.
func Float(value float64) *float64 {
	return &value
}

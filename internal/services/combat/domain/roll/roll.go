// Package roll provides the initiative roll and chat message trigger points
// the tracker calls when a participant's initiative is (re-)rolled.
package roll

import (
	"context"

	"github.com/louisbranch/turnorder/internal/core/dice"
	"github.com/louisbranch/turnorder/internal/random"
)

// Visibility controls who may read a posted roll.
type Visibility string

const (
	// VisibilityPublic is readable by every peer.
	VisibilityPublic Visibility = "public"
	// VisibilityGM is readable by game masters only.
	VisibilityGM Visibility = "gm"
)

// VisibilityFor returns the visibility for a participant's roll.
func VisibilityFor(hidden bool) Visibility {
	if hidden {
		return VisibilityGM
	}
	return VisibilityPublic
}

// Result is a rolled initiative.
type Result struct {
	Formula string      `json:"formula"`
	Seed    int64       `json:"seed"`
	Dice    dice.Result `json:"dice"`
	Total   int         `json:"total"`
}

// Message is a roll posted to the table.
type Message struct {
	ParticipantID string     `json:"participantId"`
	Alias         string     `json:"alias"`
	Visibility    Visibility `json:"visibility"`
	Roll          Result     `json:"roll"`
}

// Roller rolls initiative for a bonus.
type Roller interface {
	RollInitiative(ctx context.Context, bonus int) (Result, error)
}

// Poster posts roll messages.
type Poster interface {
	PostMessage(ctx context.Context, msg Message) error
}

// InitiativeDie is the die rolled for initiative.
var InitiativeDie = dice.Spec{Sides: 20, Count: 1}

// Dice rolls initiative with the dice engine. Seed is used when set;
// otherwise every roll draws a fresh crypto seed.
type Dice struct {
	Seed func() (int64, error)
}

// RollInitiative rolls the initiative die plus bonus.
func (d Dice) RollInitiative(ctx context.Context, bonus int) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	seedFn := d.Seed
	if seedFn == nil {
		seedFn = random.NewSeed
	}
	seed, err := seedFn()
	if err != nil {
		return Result{}, err
	}
	specs := []dice.Spec{InitiativeDie}
	rolled, err := dice.RollDice(dice.Request{Dice: specs, Modifier: bonus, Seed: seed})
	if err != nil {
		return Result{}, err
	}
	return Result{
		Formula: dice.Formula(specs, bonus),
		Seed:    seed,
		Dice:    rolled,
		Total:   rolled.Total,
	}, nil
}

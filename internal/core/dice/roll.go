// Package dice rolls polyhedral dice from explicit or seeded random sources.
package dice

import (
	"fmt"
	"math/rand"
	"strings"

	apperrors "github.com/louisbranch/turnorder/internal/platform/errors"
)

var (
	// ErrMissingDice indicates a request without any dice.
	ErrMissingDice = apperrors.New(apperrors.CodeDiceMissing, "at least one die is required")
	// ErrInvalidDiceSpec indicates a spec with a non-positive count or side.
	ErrInvalidDiceSpec = apperrors.New(apperrors.CodeDiceInvalidSpec, "dice must have a positive count and side")
)

// Spec describes Count dice with Sides faces each.
type Spec struct {
	Sides int `json:"sides"`
	Count int `json:"count"`
}

// String renders the spec in NdS notation.
func (s Spec) String() string {
	return fmt.Sprintf("%dd%d", s.Count, s.Sides)
}

// Request asks for a seeded roll of Dice plus a flat Modifier.
type Request struct {
	Dice     []Spec
	Modifier int
	Seed     int64
}

// Roll is the outcome of a single Spec.
type Roll struct {
	Sides   int   `json:"sides"`
	Results []int `json:"results"`
	Total   int   `json:"total"`
}

// Result is the outcome of a request. Total includes the modifier.
type Result struct {
	Rolls    []Roll `json:"rolls"`
	Modifier int    `json:"modifier"`
	Total    int    `json:"total"`
}

// Formula renders specs and modifier in the usual 1d20+3 notation.
func Formula(specs []Spec, modifier int) string {
	parts := make([]string, 0, len(specs))
	for _, spec := range specs {
		parts = append(parts, spec.String())
	}
	out := strings.Join(parts, "+")
	switch {
	case modifier > 0:
		out += fmt.Sprintf("+%d", modifier)
	case modifier < 0:
		out += fmt.Sprintf("%d", modifier)
	}
	return out
}

// RollDice rolls dice based on the provided request.
//
// RollDice is deterministic with respect to Request.Seed: the same seed and
// the same Dice slice (order included) always produce the same Result. Rolls
// appear in the order of Request.Dice.
func RollDice(request Request) (Result, error) {
	rng := rand.New(rand.NewSource(request.Seed))
	result, err := RollWithRng(rng, request.Dice)
	if err != nil {
		return Result{}, err
	}
	result.Modifier = request.Modifier
	result.Total += request.Modifier
	return result, nil
}

// RollWithRng rolls dice using a provided random source.
func RollWithRng(rng *rand.Rand, specs []Spec) (Result, error) {
	if len(specs) == 0 {
		return Result{}, ErrMissingDice
	}

	rolls := make([]Roll, 0, len(specs))
	total := 0
	for _, spec := range specs {
		if spec.Sides <= 0 || spec.Count <= 0 {
			return Result{}, ErrInvalidDiceSpec
		}

		results := make([]int, spec.Count)
		rollTotal := 0
		for i := range spec.Count {
			value := rng.Intn(spec.Sides) + 1
			results[i] = value
			rollTotal += value
		}
		rolls = append(rolls, Roll{Sides: spec.Sides, Results: results, Total: rollTotal})
		total += rollTotal
	}

	return Result{Rolls: rolls, Total: total}, nil
}

package random

import "testing"

func TestNewSeedVaries(t *testing.T) {
	first, err := NewSeed()
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	second, err := NewSeed()
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if first == second {
		t.Fatalf("seeds repeated: %d", first)
	}
}

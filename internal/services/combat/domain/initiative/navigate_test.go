package initiative

import (
	"testing"

	"github.com/louisbranch/turnorder/internal/services/combat/domain/combat"
)

type slotFlags struct {
	delaying bool
	defeated bool
}

func sequence(flags ...slotFlags) []combat.RoundParticipant {
	out := make([]combat.RoundParticipant, len(flags))
	for i, f := range flags {
		out[i] = combat.RoundParticipant{Participant: combat.Participant{
			ID:       string(rune('a' + i)),
			Delaying: f.delaying,
			Defeated: f.defeated,
		}}
	}
	return out
}

func TestFindTurn_ForwardAndBackward(t *testing.T) {
	ok := slotFlags{}
	delay := slotFlags{delaying: true}
	down := slotFlags{defeated: true}

	tests := []struct {
		name  string
		seq   []combat.RoundParticipant
		start int
		opts  NavigateOptions
		want  int
	}{
		{name: "forward finds start", seq: sequence(ok, ok, ok), start: 1, want: 1},
		{name: "forward skips delaying", seq: sequence(ok, delay, ok), start: 1, want: 2},
		{name: "forward keeps defeated without skip", seq: sequence(ok, down, ok), start: 1, want: 1},
		{name: "forward skips defeated", seq: sequence(ok, down, ok), start: 1, opts: NavigateOptions{SkipDefeated: true}, want: 2},
		{name: "forward past end", seq: sequence(ok, ok), start: 2, want: -1},
		{name: "forward none ahead", seq: sequence(ok, delay, delay), start: 1, want: -1},
		{name: "forward wraps", seq: sequence(ok, delay, delay), start: 1, opts: NavigateOptions{Exhaustive: true}, want: 0},
		{
			name:  "forward wrap picks nearest before start",
			seq:   sequence(ok, ok, ok, delay),
			start: 3,
			opts:  NavigateOptions{Exhaustive: true},
			want:  2,
		},
		{name: "backward finds nearest", seq: sequence(ok, ok, delay), start: 2, opts: NavigateOptions{GoingBackwards: true}, want: 1},
		{name: "backward clamps start", seq: sequence(ok, ok), start: 9, opts: NavigateOptions{GoingBackwards: true}, want: 1},
		{name: "backward none before", seq: sequence(delay, delay, ok), start: 1, opts: NavigateOptions{GoingBackwards: true}, want: -1},
		{
			name:  "backward falls forward",
			seq:   sequence(delay, delay, ok, ok),
			start: 1,
			opts:  NavigateOptions{GoingBackwards: true, Exhaustive: true},
			want:  2,
		},
		{name: "empty", seq: nil, start: 0, opts: NavigateOptions{Exhaustive: true}, want: -1},
		{name: "all delaying", seq: sequence(delay, delay), start: 0, opts: NavigateOptions{Exhaustive: true}, want: -1},
		{name: "negative start forward", seq: sequence(delay, ok), start: -3, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindTurn(tt.seq, tt.start, tt.opts); got != tt.want {
				t.Fatalf("FindTurn = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFindTurn_SingleEligibleFoundFromAnyStart(t *testing.T) {
	const size = 6
	for eligible := 0; eligible < size; eligible++ {
		flags := make([]slotFlags, size)
		for i := range flags {
			flags[i] = slotFlags{delaying: i != eligible}
		}
		seq := sequence(flags...)
		for start := 0; start < size; start++ {
			for _, backwards := range []bool{false, true} {
				got := FindTurn(seq, start, NavigateOptions{Exhaustive: true, GoingBackwards: backwards})
				if got != eligible {
					t.Fatalf("eligible=%d start=%d backwards=%v: got %d", eligible, start, backwards, got)
				}
			}
			got := FindTurn(seq, start, NavigateOptions{})
			want := eligible
			if start > eligible {
				want = -1
			}
			if got != want {
				t.Fatalf("non-exhaustive eligible=%d start=%d: got %d, want %d", eligible, start, got, want)
			}
		}
	}
}

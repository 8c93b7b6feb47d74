package initiative

import (
	"slices"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/louisbranch/turnorder/internal/services/combat/domain/combat"
)

// Collators keep scratch buffers and are not safe for concurrent use.
var collators = sync.Pool{
	New: func() any {
		return collate.New(language.English)
	},
}

// CompareNames orders names with locale-aware, case-sensitive collation.
func CompareNames(a, b string) int {
	c := collators.Get().(*collate.Collator)
	defer collators.Put(c)
	return c.CompareString(a, b)
}

// Compare is the canonical ordering of round slots. It returns a negative
// value when a acts before b.
//
// Precedence:
//  1. a slot that took the initiative goes before one that did not;
//  2. an extra action goes after a regular slot;
//  3. rolled initiative goes before unrolled;
//  4. equal rolled initiative is broken by name;
//  5. higher rolled initiative goes first;
//  6. two unrolled slots are ordered by name.
func Compare(a, b combat.RoundParticipant) int {
	aTook, bTook := a.Took(), b.Took()
	if aTook != bTook {
		if aTook {
			return -1
		}
		return 1
	}
	aExtra, bExtra := a.IsExtra(), b.IsExtra()
	if aExtra != bExtra {
		if aExtra {
			return 1
		}
		return -1
	}

	ap, bp := a.Participant, b.Participant
	switch {
	case ap.HasInitiative() && !bp.HasInitiative():
		return -1
	case !ap.HasInitiative() && bp.HasInitiative():
		return 1
	case ap.HasInitiative() && bp.HasInitiative():
		ai, bi := *ap.Initiative, *bp.Initiative
		if ai == bi {
			return CompareNames(ap.Name, bp.Name)
		}
		if ai > bi {
			return -1
		}
		return 1
	default:
		return CompareNames(ap.Name, bp.Name)
	}
}

// Sort orders slots in place. Slots that compare equal keep their input order.
func Sort(slots []combat.RoundParticipant) {
	slices.SortStableFunc(slots, Compare)
}

// plain wraps a participant as an untagged slot, which orders participants by
// initiative alone.
func plain(p combat.Participant) combat.RoundParticipant {
	return combat.RoundParticipant{Participant: p}
}

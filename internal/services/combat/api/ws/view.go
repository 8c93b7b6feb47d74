// Package ws serves the read-only combat feed to viewers over HTTP and
// websockets.
package ws

import (
	"context"

	"github.com/louisbranch/turnorder/internal/services/combat/domain/authority"
	"github.com/louisbranch/turnorder/internal/services/combat/domain/combat"
	"github.com/louisbranch/turnorder/internal/services/combat/domain/initiative"
	"github.com/louisbranch/turnorder/internal/services/combat/domain/roll"
	"github.com/louisbranch/turnorder/internal/services/combat/storage"
)

// Message types sent to viewers.
const (
	TypeSnapshot = "snapshot"
	TypeNotice   = "notice"
	TypeRoll     = "roll"
)

// Display is presentation data for a participant's back-reference.
type Display struct {
	Actor string `json:"actor,omitempty"`
	Token string `json:"token,omitempty"`
	Img   string `json:"img,omitempty"`
}

// Resolver looks up display data for entity identifiers. Lookups only
// decorate the feed; a miss leaves the participant undecorated.
type Resolver interface {
	Resolve(ctx context.Context, ids combat.Identifiers) (Display, bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, ids combat.Identifiers) (Display, bool)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, ids combat.Identifiers) (Display, bool) {
	return f(ctx, ids)
}

// View is one feed frame: the document plus its projected round.
type View struct {
	Type        string                   `json:"type"`
	Scope       string                   `json:"scope"`
	Version     int64                    `json:"version"`
	WorldTimeMS int64                    `json:"worldTimeMs"`
	State       combat.State             `json:"state"`
	Round       initiative.Round         `json:"round"`
	Current     *combat.RoundParticipant `json:"current,omitempty"`
	Displays    map[string]Display       `json:"displays,omitempty"`
}

// NoticeMessage forwards a local notice to viewers.
type NoticeMessage struct {
	Type   string           `json:"type"`
	Notice authority.Notice `json:"notice"`
}

// RollMessage forwards a public initiative roll to viewers.
type RollMessage struct {
	Type string       `json:"type"`
	Roll roll.Message `json:"roll"`
}

// NewView projects snap and decorates participants through resolver, which
// may be nil.
func NewView(ctx context.Context, snap storage.Snapshot, resolver Resolver) View {
	round := initiative.Project(snap.State)
	view := View{
		Type:        TypeSnapshot,
		Scope:       snap.Scope,
		Version:     snap.Version,
		WorldTimeMS: snap.WorldTime.Milliseconds(),
		State:       snap.State,
		Round:       round,
	}
	if turn := snap.State.Turn; turn >= 0 && turn < round.Len() {
		current := round.Participants[turn]
		view.Current = &current
	}
	if resolver == nil {
		return view
	}
	for _, p := range snap.State.Participants {
		if p.EntityIdentifiers == nil {
			continue
		}
		display, ok := resolver.Resolve(ctx, *p.EntityIdentifiers)
		if !ok {
			continue
		}
		if view.Displays == nil {
			view.Displays = make(map[string]Display)
		}
		view.Displays[p.ID] = display
	}
	return view
}

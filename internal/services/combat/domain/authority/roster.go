package authority

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/louisbranch/turnorder/internal/services/combat/domain/command"
	"github.com/louisbranch/turnorder/internal/services/combat/relay"
	"github.com/rs/zerolog"
)

// Peer is one participant of the table as the roster sees it.
type Peer struct {
	ID        string
	GM        bool
	Connected bool
}

// Roster tracks peers and elects the authority: the connected game master
// with the lowest id.
type Roster struct {
	self   string
	bus    relay.Bus
	logger zerolog.Logger

	mu    sync.RWMutex
	peers map[string]Peer
}

// NewRoster returns a roster that already contains self as connected.
func NewRoster(self Peer, bus relay.Bus, logger zerolog.Logger) (*Roster, error) {
	self.ID = strings.TrimSpace(self.ID)
	if self.ID == "" {
		return nil, errors.New("peer id is required")
	}
	if bus == nil {
		return nil, errors.New("relay bus is required")
	}
	self.Connected = true
	return &Roster{
		self:   self.ID,
		bus:    bus,
		logger: logger.With().Str("component", "roster").Logger(),
		peers:  map[string]Peer{self.ID: self},
	}, nil
}

// Self returns the local peer id.
func (r *Roster) Self() string {
	return r.self
}

// Upsert adds or replaces a peer.
func (r *Roster) Upsert(peer Peer) {
	peer.ID = strings.TrimSpace(peer.ID)
	if peer.ID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if peer.ID == r.self {
		peer.Connected = true
	}
	r.peers[peer.ID] = peer
}

// SetConnected updates the connectivity of a known peer. The local peer is
// always connected.
func (r *Roster) SetConnected(id string, connected bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	peer, ok := r.peers[id]
	if !ok || id == r.self || peer.Connected == connected {
		return
	}
	peer.Connected = connected
	r.peers[id] = peer
	r.logger.Info().Str("peer_id", id).Bool("connected", connected).Msg("peer connectivity changed")
}

// Remove forgets a peer other than self.
func (r *Roster) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id == r.self {
		return
	}
	delete(r.peers, id)
}

// Leader returns the elected authority peer.
func (r *Roster) Leader() (Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var candidates []Peer
	for _, p := range r.peers {
		if p.GM && p.Connected {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return Peer{}, false
	}
	slices.SortFunc(candidates, func(a, b Peer) int {
		return strings.Compare(a.ID, b.ID)
	})
	return candidates[0], true
}

// IsAuthority reports whether the local peer is the elected authority.
func (r *Roster) IsAuthority() bool {
	leader, ok := r.Leader()
	return ok && leader.ID == r.self
}

// Relay publishes cmd to the elected authority.
func (r *Roster) Relay(ctx context.Context, cmd command.Command) error {
	leader, ok := r.Leader()
	if !ok || leader.ID == r.self {
		return ErrNoAuthority
	}
	err := r.bus.Publish(ctx, leader.ID, relay.NewEnvelope(r.self, cmd))
	if errors.Is(err, relay.ErrUnreachable) {
		r.logger.Warn().Err(err).Str("leader", leader.ID).Msg("authority unreachable")
		return ErrNoAuthority
	}
	return err
}

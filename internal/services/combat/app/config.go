package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/turnorder/internal/services/combat/api/ws"
	"github.com/louisbranch/turnorder/internal/services/combat/domain/authority"
	"github.com/louisbranch/turnorder/internal/services/combat/storage"
)

// EnvPrefix prefixes every combat peer environment variable.
const EnvPrefix = "TURNORDER_COMBAT_"

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreBBolt  = "bbolt"
	StoreMemory = "memory"
)

// Config holds combat peer configuration. Env names are relative to
// EnvPrefix.
type Config struct {
	PeerID string `env:"PEER_ID"`
	GM     bool   `env:"GM"`

	HTTPAddr  string `env:"HTTP_ADDR" envDefault:":8090"`
	RelayAddr string `env:"RELAY_ADDR" envDefault:":8091"`

	// AuthorityID and AuthorityAddr name a remote game master peer whose
	// relay this peer publishes to. A game master peer may only name an
	// authority whose id sorts before its own.
	AuthorityID   string `env:"AUTHORITY_ID"`
	AuthorityAddr string `env:"AUTHORITY_ADDR"`
	// AuthorityFeed is the authority's websocket feed, mirrored into the
	// local store while this peer is a proposer.
	AuthorityFeed string `env:"AUTHORITY_FEED"`

	Store  string `env:"STORE" envDefault:"sqlite"`
	DBPath string `env:"DB_PATH"`
	Scope  string `env:"SCOPE" envDefault:"world"`

	TurnInterval       time.Duration `env:"TURN_INTERVAL" envDefault:"6s"`
	AlwaysAdvanceClock bool          `env:"ALWAYS_ADVANCE_CLOCK"`

	PeerSecret string `env:"PEER_SECRET"`
	MaxViewers int    `env:"MAX_VIEWERS" envDefault:"64"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:     ":8090",
		RelayAddr:    ":8091",
		Store:        StoreSQLite,
		Scope:        storage.DefaultScope,
		TurnInterval: authority.DefaultTurnInterval,
		MaxViewers:   ws.DefaultMaxViewers,
		LogLevel:     "info",
	}
}

// Validate normalizes cfg and reports the first invalid setting.
func (c *Config) Validate() error {
	c.PeerID = strings.TrimSpace(c.PeerID)
	c.AuthorityID = strings.TrimSpace(c.AuthorityID)
	c.AuthorityAddr = strings.TrimSpace(c.AuthorityAddr)
	c.AuthorityFeed = strings.TrimSpace(c.AuthorityFeed)
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	c.Scope = strings.TrimSpace(c.Scope)

	if c.PeerID == "" {
		return errors.New(EnvPrefix + "PEER_ID is required")
	}
	switch c.Store {
	case "":
		c.Store = StoreSQLite
	case StoreSQLite, StoreBBolt, StoreMemory:
	default:
		return fmt.Errorf("unknown store %q: want %s, %s or %s", c.Store, StoreSQLite, StoreBBolt, StoreMemory)
	}
	if (c.AuthorityID == "") != (c.AuthorityAddr == "") {
		return errors.New(EnvPrefix + "AUTHORITY_ID and " + EnvPrefix + "AUTHORITY_ADDR must be set together")
	}
	if c.AuthorityID == c.PeerID && c.AuthorityID != "" {
		return errors.New("authority peer must differ from the local peer")
	}
	// The roster elects the connected game master with the lowest id. A game
	// master deferring to a peer it outranks would keep electing itself.
	if c.GM && c.AuthorityID != "" && c.AuthorityID > c.PeerID {
		return fmt.Errorf("game master %q cannot defer to %q: the authority id must sort before the local peer id", c.PeerID, c.AuthorityID)
	}
	if c.Scope == "" {
		c.Scope = storage.DefaultScope
	}
	if c.TurnInterval < 0 {
		return errors.New("turn interval must not be negative")
	}
	if c.MaxViewers <= 0 {
		c.MaxViewers = ws.DefaultMaxViewers
	}
	return nil
}

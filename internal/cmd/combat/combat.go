// Package combat parses combat peer flags and starts the peer runtime.
package combat

import (
	"context"
	"flag"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	entrypoint "github.com/louisbranch/turnorder/internal/platform/cmd"
	"github.com/louisbranch/turnorder/internal/services/combat/app"
)

// ParseConfig parses environment and flags into an app.Config.
func ParseConfig(fs *flag.FlagSet, args []string) (app.Config, error) {
	cfg := app.DefaultConfig()
	if err := entrypoint.ParsePrefixedConfig(app.EnvPrefix, &cfg); err != nil {
		return app.Config{}, err
	}
	fs.StringVar(&cfg.PeerID, "peer", cfg.PeerID, "Stable id of this peer")
	fs.BoolVar(&cfg.GM, "gm", cfg.GM, "Run this peer as a game master")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "Viewer feed listen address")
	fs.StringVar(&cfg.RelayAddr, "relay-addr", cfg.RelayAddr, "Relay gRPC listen address")
	fs.StringVar(&cfg.AuthorityID, "authority", cfg.AuthorityID, "Peer id of the remote game master")
	fs.StringVar(&cfg.AuthorityAddr, "authority-addr", cfg.AuthorityAddr, "Relay address of the remote game master")
	fs.StringVar(&cfg.AuthorityFeed, "authority-feed", cfg.AuthorityFeed, "Websocket feed of the remote game master")
	fs.StringVar(&cfg.Store, "store", cfg.Store, "Document store: sqlite, bbolt or memory")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Document store path")
	fs.StringVar(&cfg.Scope, "scope", cfg.Scope, "Document scope")
	fs.DurationVar(&cfg.TurnInterval, "turn-interval", cfg.TurnInterval, "World time per round")
	fs.BoolVar(&cfg.AlwaysAdvanceClock, "always-advance-clock", cfg.AlwaysAdvanceClock, "Advance the world clock on every round change")
	fs.IntVar(&cfg.MaxViewers, "max-viewers", cfg.MaxViewers, "Concurrent viewer connections")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return app.Config{}, err
	}
	return cfg, nil
}

// NewLogger returns a console logger at level, defaulting to info when level
// is empty or unknown.
func NewLogger(w io.Writer, level string) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	return zerolog.New(cw).Level(parsed).With().Timestamp().Str("service", entrypoint.ServiceCombat).Logger()
}

// Run starts the combat peer.
func Run(ctx context.Context, cfg app.Config) error {
	logger := NewLogger(os.Stderr, cfg.LogLevel)
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceCombat, func(ctx context.Context) error {
		return app.Run(ctx, cfg, logger)
	})
}

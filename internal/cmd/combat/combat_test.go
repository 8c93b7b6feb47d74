package combat

import (
	"bytes"
	"flag"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("combat", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != ":8090" || cfg.RelayAddr != ":8091" {
		t.Fatalf("addrs = %q %q, want :8090 :8091", cfg.HTTPAddr, cfg.RelayAddr)
	}
	if cfg.TurnInterval != 6*time.Second {
		t.Fatalf("turn interval = %v, want 6s", cfg.TurnInterval)
	}
	if cfg.Scope != "world" || cfg.Store != "sqlite" {
		t.Fatalf("scope/store = %q/%q, want world/sqlite", cfg.Scope, cfg.Store)
	}
}

func TestParseConfigEnvAndFlags(t *testing.T) {
	t.Setenv("TURNORDER_COMBAT_PEER_ID", "env-peer")
	t.Setenv("TURNORDER_COMBAT_GM", "true")
	t.Setenv("TURNORDER_COMBAT_TURN_INTERVAL", "10s")

	fs := flag.NewFlagSet("combat", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-peer", "flag-peer", "-store", "bbolt"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.PeerID != "flag-peer" {
		t.Fatalf("peer = %q, want flag override", cfg.PeerID)
	}
	if !cfg.GM {
		t.Fatal("gm = false, want env value")
	}
	if cfg.TurnInterval != 10*time.Second {
		t.Fatalf("turn interval = %v, want 10s", cfg.TurnInterval)
	}
	if cfg.Store != "bbolt" {
		t.Fatalf("store = %q, want bbolt", cfg.Store)
	}
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn")
	if logger.GetLevel() != zerolog.WarnLevel {
		t.Fatalf("level = %v, want warn", logger.GetLevel())
	}
	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("log output = %q", buf.String())
	}
	if NewLogger(&buf, "nonsense").GetLevel() != zerolog.InfoLevel {
		t.Fatal("unknown level should fall back to info")
	}
}

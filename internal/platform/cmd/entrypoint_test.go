package cmd

import (
	"context"
	"flag"
	"testing"
)

func TestParseArgs(t *testing.T) {
	if err := ParseArgs(nil, []string{}); err == nil {
		t.Fatal("expected parse args to reject nil parser")
	}

	fs := flag.NewFlagSet("combat", flag.ContinueOnError)
	peer := fs.String("peer", "", "peer id")
	if err := ParseArgs(fs, []string{"-peer", "gm"}); err != nil {
		t.Fatalf("parse args: %v", err)
	}
	if *peer != "gm" {
		t.Fatalf("peer = %q, want gm", *peer)
	}
	if err := ParseArgs(flag.NewFlagSet("empty", flag.ContinueOnError), nil); err != nil {
		t.Fatalf("parse nil args: %v", err)
	}
}

func TestRunWithTelemetryRejectsMissingInputs(t *testing.T) {
	if err := RunWithTelemetry(nil, "", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected missing service error")
	}
	if err := RunWithTelemetry(nil, ServiceCombat, nil); err == nil {
		t.Fatal("expected missing run function error")
	}
}

func TestParsePrefixedConfig(t *testing.T) {
	type prefixed struct {
		Mode string `env:"MODE" envDefault:"peer"`
	}
	t.Setenv("CMD_TEST_MODE", "authority")

	var cfg prefixed
	if err := ParsePrefixedConfig("CMD_TEST_", &cfg); err != nil {
		t.Fatalf("parse prefixed config: %v", err)
	}
	if cfg.Mode != "authority" {
		t.Fatalf("mode = %q, want authority", cfg.Mode)
	}
	if err := ParsePrefixedConfig[prefixed]("CMD_TEST_", nil); err == nil {
		t.Fatal("expected nil target error")
	}
}

func TestRunWithTelemetryRunsLoop(t *testing.T) {
	t.Setenv("TURNORDER_OTEL_ENDPOINT", "")
	ran := false
	err := RunWithTelemetry(context.Background(), ServiceCombat, func(context.Context) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !ran {
		t.Fatal("expected run loop to execute")
	}
}

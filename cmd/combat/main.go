package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	combatcmd "github.com/louisbranch/turnorder/internal/cmd/combat"
	"github.com/louisbranch/turnorder/internal/platform/config"
)

func main() {
	cfg, err := combatcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := combatcmd.Run(ctx, cfg); err != nil {
		config.Exitf("combat peer: %v", err)
	}
}

// Binary planonce runs every enabled planner a single time against the seeded state and exits.
// Pair it with venue.provider=log to preview the instructions a live run would send.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/MM0819/vega-market-maker-sub000/internal/app"
	"github.com/MM0819/vega-market-maker-sub000/internal/config"
	"github.com/MM0819/vega-market-maker-sub000/internal/util"
)

func main() {
	path := flag.String("config", "internal/config/config.yaml", "path to the YAML config")
	timeout := flag.Duration("timeout", 30*time.Second, "deadline for reference prices and submissions")
	flag.Parse()

	boot := util.NewLogger("info")
	cfg, err := config.Load(*path)
	if err != nil {
		boot.Fatal().Err(err).Msg("load config")
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		boot.Fatal().Err(err).Msg("invalid config")
	}
	log := util.NewLogger(cfg.App.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	mm, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build market maker")
	}
	defer mm.Close()

	if err := mm.PlanOnce(ctx); err != nil {
		log.Error().Err(err).Msg("plan once failed")
		mm.Close()
		os.Exit(1)
	}
	if l := mm.Ledger(); l != nil {
		log.Info().Int("instructions", len(l.Snapshot())).Msg("paper instructions recorded")
	}
}

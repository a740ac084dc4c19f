// Binary marketmaker runs the liquidity and quote planners on their schedules until interrupted.
package main

import (
	"context"
	"flag"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/MM0819/vega-market-maker-sub000/internal/app"
	"github.com/MM0819/vega-market-maker-sub000/internal/config"
	"github.com/MM0819/vega-market-maker-sub000/internal/metrics"
	"github.com/MM0819/vega-market-maker-sub000/internal/util"
)

func main() {
	path := flag.String("config", "internal/config/config.yaml", "path to the YAML config")
	envFile := flag.String("env", "", "optional .env file (defaults to ./.env)")
	flag.Parse()

	boot := util.NewLogger("info")
	cfg, err := config.Load(*path)
	if err != nil {
		boot.Fatal().Err(err).Msg("load config")
	}
	if *envFile != "" {
		cfg.ApplyEnv(*envFile)
	} else {
		cfg.ApplyEnv()
	}
	if err := cfg.Validate(); err != nil {
		boot.Fatal().Err(err).Msg("invalid config")
	}

	log := util.NewLogger(cfg.App.LogLevel).With().Str("app", cfg.App.Name).Str("env", cfg.App.Env).Logger()

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.App.MetricsAddr != "" {
		srv := metrics.Serve(cfg.App.MetricsAddr)
		log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	mm, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build market maker")
	}
	defer mm.Close()

	if err := mm.Run(ctx); err != nil {
		log.Error().Err(err).Msg("market maker failed")
		return
	}
	log.Info().Msg("shutting down")
}

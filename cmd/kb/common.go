package main

import (
	"context"
	"fmt"
	"os"

	"github.com/shirokuma-go/kb/internal/config"
	"github.com/shirokuma-go/kb/internal/engine"
	"github.com/shirokuma-go/kb/internal/enrich"
	"github.com/shirokuma-go/kb/internal/logging"
)

// resolvedConfig loads config.Config and overlays --data-dir if set.
func resolvedConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if dataDirFlag != "" {
		cfg.DataDir = dataDirFlag
	}
	return cfg, nil
}

// openEngine is the shared setup every subcommand that touches the
// index runs: resolve config, build the rotating logger, open the
// engine with AI enrichment wired in if ANTHROPIC_API_KEY is set.
func openEngine(ctx context.Context, watch bool) (*engine.Handle, *config.Config, error) {
	cfg, err := resolvedConfig()
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}

	log := logging.New(cfg.LogFile, logging.ParseLevel(cfg.LogLevel))

	var enricher engine.Enricher
	if client, err := enrich.NewClient("", log); err == nil {
		enricher = client
	}

	h, err := engine.Open(ctx, cfg.DataDir, engine.Options{
		DatabasePath: cfg.DatabasePath,
		Log:          log,
		Enricher:     enricher,
		Watch:        watch,
	})
	if err != nil {
		return nil, nil, err
	}
	return h, cfg, nil
}

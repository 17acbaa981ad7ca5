package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/hazyhaar/brine-ledger/pkg/catalog"
	"github.com/hazyhaar/brine-ledger/pkg/ledger"
)

func cmdSeed(args []string) {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	catalogPath := fs.String("catalog", "", "catalog manifest (default: catalog from config)")
	fs.Parse(args)

	cfg, logger, s := setup(*cfgPath)
	defer s.Close()

	path := *catalogPath
	if path == "" {
		path = cfg.Catalog
	}
	m, err := catalog.LoadManifest(path)
	if err != nil {
		logger.Error("load catalog", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := ledger.NewEngine(s, nil, logger).Prepare(ctx); err != nil {
		logger.Error("register norm components", "error", err)
		os.Exit(1)
	}
	stats, err := s.ApplyManifest(ctx, m)
	if err != nil {
		logger.Error("apply catalog", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Catalog %s: %d component(s), %d recipe(s) with %d item(s), %d product(s)\n",
		path, stats.Components, stats.Recipes, stats.Items, stats.Products)
}

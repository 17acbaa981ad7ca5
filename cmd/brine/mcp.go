package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	"github.com/hazyhaar/brine-ledger/pkg/api"
	"github.com/hazyhaar/brine-ledger/pkg/kit"
)

func cmdMCP(args []string) {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	fs.Parse(args)

	_, logger, s := setup(*cfgPath)
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc := api.NewService(s, nil, logger)
	if err := svc.Engine.Prepare(ctx); err != nil {
		logger.Error("register norm components", "error", err)
		os.Exit(1)
	}

	srv := server.NewMCPServer("brine", "1.0.0", server.WithToolCapabilities(false))
	api.RegisterMCPTools(srv, svc)

	logger.Info("MCP serving on stdio")
	if err := kit.ServeMCPLines(ctx, srv, os.Stdin, os.Stdout, logger); err != nil && ctx.Err() == nil {
		logger.Error("MCP session ended", "error", err)
		os.Exit(1)
	}
}

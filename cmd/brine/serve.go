package main

import (
	"context"
	"crypto/tls"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hazyhaar/brine-ledger/pkg/api"
	"github.com/hazyhaar/brine-ledger/pkg/catalog"
)

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	fs.Parse(args)

	cfg, logger, s := setup(*cfgPath)
	defer s.Close()

	svc := api.NewService(s, nil, logger)
	if err := svc.Engine.Prepare(context.Background()); err != nil {
		logger.Error("register norm components", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewRouter(svc, cfg.OperatorToken),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// SIGHUP: reload the catalog file.
	// SIGINT/SIGTERM: graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for range sighup {
			logger.Info("SIGHUP received, reloading catalog", "path", cfg.Catalog)
			m, err := catalog.LoadManifest(cfg.Catalog)
			if err != nil {
				logger.Error("catalog reload failed", "error", err)
				continue
			}
			stats, err := s.ApplyManifest(ctx, m)
			if err != nil {
				logger.Error("catalog reload failed", "error", err)
				continue
			}
			logger.Info("catalog reloaded", "components", stats.Components, "recipes", stats.Recipes, "products", stats.Products)
		}
	}()

	go func() {
		useTLS := cfg.TLS.CertFile != "" && cfg.TLS.KeyFile != ""
		logger.Info("brine listening", "addr", cfg.Addr, "driver", s.Driver(), "tls", useTLS, "gate", cfg.OperatorToken != "")
		var err error
		if useTLS {
			srv.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			err = srv.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

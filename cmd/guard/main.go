// Copyright 2026 The switchGuard Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package main provides the entry point for the switchGuard server. The guard
// sits in front of interchangeable AI-model backends, monitors their health,
// and transparently substitutes equivalent models on healthy providers when a
// requested backend is slow, unreachable, or missing the model.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/traylinx/switchGuard/internal/api"
	"github.com/traylinx/switchGuard/internal/buildinfo"
	"github.com/traylinx/switchGuard/internal/config"
	"github.com/traylinx/switchGuard/internal/discovery"
	"github.com/traylinx/switchGuard/internal/fallback"
	"github.com/traylinx/switchGuard/internal/health"
	"github.com/traylinx/switchGuard/internal/logging"
	"github.com/traylinx/switchGuard/internal/manager"
)

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Configure File Path")
	flag.Parse()

	// .env is optional; environment variables override nothing in the YAML,
	// they only supply credentials the file omits.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warnf("config file %s not found, using defaults", configPath)
			cfg = config.DefaultConfig()
		} else {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	logging.SetDebug(cfg.Debug)
	if err := logging.ConfigureLogOutput(cfg.LoggingToFile, ""); err != nil {
		log.Fatalf("failed to configure log output: %v", err)
	}

	log.Infof("switchGuard %s (%s, built %s) starting", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)

	registry, err := cfg.BuildRegistry()
	if err != nil {
		log.Fatalf("invalid provider configuration: %v", err)
	}

	equiv, err := fallback.NewEquivalence(cfg.EquivalenceTablePath)
	if err != nil {
		log.Fatalf("failed to load equivalence table: %v", err)
	}
	if err := equiv.StartWatcher(); err != nil {
		log.Warnf("equivalence table watcher unavailable: %v", err)
	}
	defer equiv.StopWatcher()

	monitor := health.NewMonitor(registry,
		health.WithDefaults(cfg.Health.Timeout, cfg.Health.CacheTTL))
	resolver := fallback.NewResolver(registry, monitor, equiv)
	mgr := manager.NewManager(registry, monitor, resolver,
		manager.WithCatalogTTL(cfg.Catalog.TTL),
		manager.WithFallbackDefaults(fallback.Options{
			PreferLocal: cfg.Fallback.PreferLocal,
			MaxAttempts: cfg.Fallback.MaxAttempts,
		}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	mgr.Initialize(initCtx, discovery.ForRegistry(registry))
	cancel()

	server := api.NewServer(mgr, monitor, cfg.Debug)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))
	}()

	select {
	case err := <-errCh:
		log.Fatalf("api server stopped: %v", err)
	case <-ctx.Done():
		log.Info("shutdown signal received, exiting")
	}
}

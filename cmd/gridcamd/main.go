// SPDX-License-Identifier: MIT

// gridcamd runs the camera wall daemon: the stream lifecycle engine plus
// its HTTP status API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mhartig/gridcam/internal/api"
	"github.com/mhartig/gridcam/internal/config"
	"github.com/mhartig/gridcam/internal/engine"
	"github.com/mhartig/gridcam/internal/log"
	"github.com/mhartig/gridcam/internal/player"
	"github.com/mhartig/gridcam/internal/registry"
	"github.com/mhartig/gridcam/internal/secrets"
	"github.com/mhartig/gridcam/internal/session"
)

var (
	version   = "v0.1.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	log.Configure(log.Config{
		Level:   "info",
		Service: "gridcam",
		Version: version,
	})
	logger := log.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	effectiveConfigPath := *configPath
	if effectiveConfigPath == "" {
		effectiveConfigPath = config.ParseString("GRIDCAM_CONFIG", "")
	}

	cfg, err := config.NewLoader(effectiveConfigPath).Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(log.FieldEvent, "config.load_failed").
			Str("config_path", effectiveConfigPath).
			Msg("failed to load configuration")
	}
	log.SetLevel(cfg.LogLevel)

	if effectiveConfigPath != "" {
		logger.Info().
			Str(log.FieldEvent, "config.loaded").
			Str("source", "file").
			Str("path", effectiveConfigPath).
			Msg("loaded configuration from file")
	} else {
		logger.Info().
			Str(log.FieldEvent, "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}

	logger.Info().
		Str(log.FieldEvent, "startup").
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Str("addr", cfg.ListenAddr).
		Int(log.FieldCapacity, cfg.MaxSessions).
		Msg("starting gridcam")

	reg, watchRegistry, err := buildRegistry(cfg)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("path", cfg.CamerasFile).
			Msg("failed to load camera registry")
	}

	var store secrets.Store
	if cfg.SecretsDir != "" {
		store = secrets.NewDir(cfg.SecretsDir)
		logger.Info().Str("secrets_dir", cfg.SecretsDir).Msg("using file-based secret store")
	} else {
		store = secrets.NewMemory()
		logger.Warn().Msg("no secrets directory configured, all cameras connect anonymously")
	}

	var factory player.Factory
	if cfg.PlayerCmd != "" {
		factory = player.NewCommandFactory(cfg.PlayerCmd)
		logger.Info().Str("player_cmd", cfg.PlayerCmd).Msg("using external player command")
	} else {
		factory = player.FactoryFunc(func(string) player.Player { return player.NewFake() })
		logger.Warn().Msg("no player command configured, streams will never become live")
	}

	eng, err := engine.New(reg, store, factory, engine.Options{
		Capacity:     cfg.MaxSessions,
		MinCellWidth: cfg.MinCellWidth,
		Session: session.Config{
			ConnectTimeout:  cfg.ConnectTimeout,
			DegradedTimeout: cfg.DegradedTimeout,
			BackoffBase:     cfg.BackoffBase,
			BackoffCap:      cfg.BackoffCap,
			MaxAuthFailures: cfg.MaxAuthFailures,
		},
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create engine")
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewServer(eng, api.Config{RateLimitRPS: 50}).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return eng.Run(gctx)
	})
	if watchRegistry != nil {
		g.Go(func() error {
			return watchRegistry(gctx)
		})
	}
	g.Go(func() error {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("daemon failed")
	}
	logger.Info().Msg("server exiting")
}

// buildRegistry picks the file-backed registry when a cameras file is
// configured, and an empty in-memory one otherwise. The returned watch
// function, if non-nil, must be run for file reloads to take effect.
func buildRegistry(cfg config.Config) (registry.Registry, func(context.Context) error, error) {
	if cfg.CamerasFile == "" {
		return registry.NewMemory(), nil, nil
	}
	f, err := registry.NewFile(cfg.CamerasFile)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Watch, nil
}

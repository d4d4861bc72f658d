// Copyright 2026 Hexresearch
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ergvein "github.com/hexresearch/ergvein-indexer"
	"github.com/hexresearch/ergvein-indexer/cache"
	"github.com/hexresearch/ergvein-indexer/discovery"
	"github.com/hexresearch/ergvein-indexer/internal/config"
	"github.com/hexresearch/ergvein-indexer/internal/telemetry"
	"github.com/hexresearch/ergvein-indexer/logic"
	"github.com/hexresearch/ergvein-indexer/storage"
)

type serveFlags struct {
	flagset *flag.FlagSet
	dbPath  string
}

func newServeFlags() *serveFlags {
	f := &serveFlags{
		flagset: flag.NewFlagSet("serve", flag.ExitOnError),
	}
	f.flagset.StringVar(&f.dbPath, "db", "", "path to the filter database. Overrides the config file")
	return f
}

func runServe(f *globalFlags, cfg *config.Config) {
	serveFlags := newServeFlags()
	err := serveFlags.flagset.Parse(f.flagset.Args()[1:])
	if err != nil {
		fmt.Printf("failed to parse subcommand args: %s\n", err)
		os.Exit(1)
	}
	if serveFlags.dbPath != "" {
		cfg.DatabasePath = serveFlags.dbPath
	}
	if err := serve(cfg); err != nil {
		slog.Error("indexer stopped", "error", err)
		os.Exit(1)
	}
}

func serve(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	metrics := telemetry.New()
	metrics.SetBuildInfo(Version, CommitSHA)
	if cfg.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.MetricsHandler())
		metricsServer := &http.Server{
			Addr:              cfg.MetricsListen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil &&
				!errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", "error", err)
			}
		}()
		defer metricsServer.Close()
	}

	if len(cfg.Etcd.Endpoints) > 0 {
		cli, err := discovery.NewClient(cfg.Etcd.Endpoints)
		if err != nil {
			return fmt.Errorf("etcd client: %w", err)
		}
		defer cli.Close()
		advertise := cfg.Etcd.AdvertiseAddress
		if advertise == "" {
			advertise = cfg.Listen
		}
		registration, err := discovery.Register(
			ctx,
			cli,
			cfg.Etcd.NodeId,
			advertise,
			cfg.Etcd.LeaseTTL,
			slog.Default(),
		)
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := registration.Close(closeCtx); err != nil {
				slog.Warn("failed to deregister", "error", err)
			}
		}()
	}

	// The refresh jobs for these caches run as separate services
	fees := cache.NewFeesCache()
	rates := cache.NewRatesCache()

	logicOptions := append(
		cfg.LogicOptions(),
		logic.WithStorage(store),
		logic.WithFees(fees),
		logic.WithRates(rates),
	)
	server := ergvein.NewServer(
		ergvein.WithServerLogger(slog.Default()),
		ergvein.WithMetrics(metrics),
		ergvein.WithSessionLogicOptions(logicOptions...),
		ergvein.WithSessionClosedFunc(func(id ergvein.ConnectionId, err error) {
			if err != nil {
				slog.Debug("session ended", "connection_id", id.String(), "error", err)
			}
		}),
	)
	return server.ListenAndServe(ctx, cfg.Listen)
}

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
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/hexresearch/ergvein-indexer/internal/config"
)

// Set at build time via ldflags
var (
	Version   = "devel"
	CommitSHA = "unknown"
)

type globalFlags struct {
	flagset    *flag.FlagSet
	configFile string
	address    string
	testnet    bool
	logLevel   string
}

func newGlobalFlags() *globalFlags {
	f := &globalFlags{
		flagset: flag.NewFlagSet(os.Args[0], flag.ExitOnError),
	}
	f.flagset.StringVar(
		&f.configFile,
		"config",
		"",
		"path to YAML config file",
	)
	f.flagset.StringVar(
		&f.address,
		"address",
		"",
		"TCP address in address:port format. Overrides the config file",
	)
	f.flagset.BoolVar(&f.testnet, "testnet", false, "serve testnet BTC filters")
	f.flagset.StringVar(
		&f.logLevel,
		"log-level",
		"",
		"log level (debug, info, warn, error). Overrides the config file",
	)
	return f
}

func main() {
	f := newGlobalFlags()
	err := f.flagset.Parse(os.Args[1:])
	if err != nil {
		fmt.Printf("failed to parse command args: %s\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(f.configFile)
	if err != nil {
		fmt.Printf("failed to load config: %s\n", err)
		os.Exit(1)
	}
	if f.address != "" {
		cfg.Listen = f.address
	}
	if f.testnet {
		cfg.Testnet = true
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Printf("failed to configure logging: %s\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	if len(f.flagset.Args()) > 0 {
		switch f.flagset.Arg(0) {
		case "serve":
			runServe(f, cfg)
		case "get-filters":
			runGetFilters(f, cfg)
		case "version":
			fmt.Printf("ergvein-indexer %s (%s)\n", Version, CommitSHA)
		default:
			fmt.Printf("Unknown subcommand: %s\n", f.flagset.Arg(0))
			os.Exit(1)
		}
	} else {
		fmt.Printf("You must specify a subcommand (serve or get-filters)\n")
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler), nil
}

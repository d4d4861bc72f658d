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

// Package config loads the indexer configuration from a YAML file and ERGVEIN_*
// environment variables
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/hexresearch/ergvein-indexer/logic"
)

const EnvPrefix = "ERGVEIN_"

type Config struct {
	Listen               string        `yaml:"listen"                 mapstructure:"listen"`
	Testnet              bool          `yaml:"testnet"                mapstructure:"testnet"`
	DatabasePath         string        `yaml:"database_path"          mapstructure:"database_path"`
	MetricsListen        string        `yaml:"metrics_listen"         mapstructure:"metrics_listen"`
	LogLevel             string        `yaml:"log_level"              mapstructure:"log_level"`
	LogFormat            string        `yaml:"log_format"             mapstructure:"log_format"`
	HandshakeTimeout     time.Duration `yaml:"handshake_timeout"      mapstructure:"handshake_timeout"`
	ConnectionTimeout    time.Duration `yaml:"connection_timeout"     mapstructure:"connection_timeout"`
	AnnouncePollInterval time.Duration `yaml:"announce_poll_interval" mapstructure:"announce_poll_interval"`
	MaxFilters           uint32        `yaml:"max_filters"            mapstructure:"max_filters"`
	Etcd                 EtcdConfig    `yaml:"etcd"                   mapstructure:"etcd"`
}

// EtcdConfig enables registration of the indexer in etcd when Endpoints is not empty
type EtcdConfig struct {
	Endpoints        []string `yaml:"endpoints"         mapstructure:"endpoints"`
	NodeId           string   `yaml:"node_id"           mapstructure:"node_id"`
	AdvertiseAddress string   `yaml:"advertise_address" mapstructure:"advertise_address"`
	LeaseTTL         int64    `yaml:"lease_ttl"         mapstructure:"lease_ttl"`
}

// Default returns the configuration used when nothing else is specified
func Default() *Config {
	return &Config{
		Listen:               "0.0.0.0:8667",
		DatabasePath:         "ergvein-filters.db",
		LogLevel:             "info",
		LogFormat:            "text",
		HandshakeTimeout:     logic.DefaultHandshakeTimeout,
		ConnectionTimeout:    logic.DefaultConnectionTimeout,
		AnnouncePollInterval: logic.DefaultAnnouncePollInterval,
		MaxFilters:           logic.MaxFiltersRequest,
		Etcd: EtcdConfig{
			LeaseTTL: 10,
		},
	}
}

// Load reads the config file at path, if any, and then applies environment overrides
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.Environ()); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from ERGVEIN_* variables. ERGVEIN_HANDSHAKE_TIMEOUT sets
// handshake_timeout and ERGVEIN_ETCD_ENDPOINTS sets etcd.endpoints as a comma separated list.
func (c *Config) ApplyEnv(environ []string) error {
	overrides := map[string]any{}
	etcdOverrides := map[string]any{}
	for _, entry := range environ {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		name := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		if etcdName, ok := strings.CutPrefix(name, "etcd_"); ok {
			etcdOverrides[etcdName] = value
			continue
		}
		overrides[name] = value
	}
	if len(etcdOverrides) > 0 {
		overrides["etcd"] = etcdOverrides
	}
	if len(overrides) == 0 {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           c,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(overrides); err != nil {
		return fmt.Errorf("environment overrides: %w", err)
	}
	return nil
}

// Validate checks for values the indexer cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("listen address must not be empty"))
	}
	if c.HandshakeTimeout <= 0 {
		errs = append(errs, errors.New("handshake_timeout must be positive"))
	}
	if c.ConnectionTimeout <= 0 {
		errs = append(errs, errors.New("connection_timeout must be positive"))
	}
	if c.AnnouncePollInterval <= 0 {
		errs = append(errs, errors.New("announce_poll_interval must be positive"))
	}
	if c.MaxFilters == 0 || c.MaxFilters > logic.MaxFiltersRequest {
		errs = append(
			errs,
			fmt.Errorf("max_filters must be between 1 and %d", logic.MaxFiltersRequest),
		)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log_format %q", c.LogFormat))
	}
	if len(c.Etcd.Endpoints) > 0 && c.Etcd.NodeId == "" {
		errs = append(errs, errors.New("etcd.node_id is required when etcd is enabled"))
	}
	return errors.Join(errs...)
}

// LogicOptions returns the protocol engine options for this config
func (c *Config) LogicOptions() []logic.ConfigOptionFunc {
	return []logic.ConfigOptionFunc{
		logic.WithTestnet(c.Testnet),
		logic.WithHandshakeTimeout(c.HandshakeTimeout),
		logic.WithConnectionTimeout(c.ConnectionTimeout),
		logic.WithAnnouncePollInterval(c.AnnouncePollInterval),
		logic.WithMaxFilters(c.MaxFilters),
	}
}

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

package logic

import (
	"context"
	"crypto/rand"
	"log/slog"
	"time"

	"github.com/hexresearch/ergvein-indexer/cache"
	"github.com/hexresearch/ergvein-indexer/protocol"
	"github.com/hexresearch/ergvein-indexer/storage"
)

const (
	// DefaultHandshakeTimeout is how long the peer has to complete the handshake
	DefaultHandshakeTimeout = 20 * time.Second
	// DefaultConnectionTimeout is how long a connection stays open after the handshake
	DefaultConnectionTimeout = 20 * time.Minute
	// DefaultAnnouncePollInterval is how often storage is polled for a new filter height
	DefaultAnnouncePollInterval = 3 * time.Second
	// MaxFiltersRequest limits the amount of filters served in one response
	MaxFiltersRequest uint32 = 2000
)

// Storage is the read side of the filter store
type Storage interface {
	FilterHeight() (uint64, error)
	ChainHeight() (uint64, error)
	ReadFilters(start uint64, count uint32) ([]storage.FilterRecord, error)
	WaitFilterHeightChange(ctx context.Context, since uint64, poll time.Duration) (uint64, error)
}

type FeeSource interface {
	Snapshot(currency protocol.Currency) (cache.Fees, bool)
}

type RateSource interface {
	Get(currency protocol.Currency) (map[protocol.Fiat]float64, bool)
}

type Metrics interface {
	AddFiltersServed(count int)
}

type NonceFunc func() ([protocol.NonceSize]byte, error)

type Config struct {
	Storage              Storage
	Fees                 FeeSource
	Rates                RateSource
	Metrics              Metrics
	Logger               *slog.Logger
	Testnet              bool
	HandshakeTimeout     time.Duration
	ConnectionTimeout    time.Duration
	AnnouncePollInterval time.Duration
	MaxFilters           uint32
	NonceFunc            NonceFunc
	NowFunc              func() time.Time
}

type ConfigOptionFunc func(*Config)

// NewConfig returns a Config with the defaults applied before the provided options
func NewConfig(options ...ConfigOptionFunc) Config {
	c := Config{
		HandshakeTimeout:     DefaultHandshakeTimeout,
		ConnectionTimeout:    DefaultConnectionTimeout,
		AnnouncePollInterval: DefaultAnnouncePollInterval,
		MaxFilters:           MaxFiltersRequest,
		NonceFunc:            randomNonce,
		NowFunc:              time.Now,
	}
	// Apply provided options functions
	for _, option := range options {
		option(&c)
	}
	return c
}

func WithStorage(storage Storage) ConfigOptionFunc {
	return func(c *Config) {
		c.Storage = storage
	}
}

func WithFees(fees FeeSource) ConfigOptionFunc {
	return func(c *Config) {
		c.Fees = fees
	}
}

func WithRates(rates RateSource) ConfigOptionFunc {
	return func(c *Config) {
		c.Rates = rates
	}
}

func WithMetrics(metrics Metrics) ConfigOptionFunc {
	return func(c *Config) {
		c.Metrics = metrics
	}
}

func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithTestnet switches the served currency from BTC to testnet BTC
func WithTestnet(testnet bool) ConfigOptionFunc {
	return func(c *Config) {
		c.Testnet = testnet
	}
}

func WithHandshakeTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.HandshakeTimeout = timeout
	}
}

func WithConnectionTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.ConnectionTimeout = timeout
	}
}

func WithAnnouncePollInterval(interval time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.AnnouncePollInterval = interval
	}
}

// WithMaxFilters lowers the per-request filter limit. It can never exceed MaxFiltersRequest.
func WithMaxFilters(maxFilters uint32) ConfigOptionFunc {
	return func(c *Config) {
		c.MaxFilters = min(maxFilters, MaxFiltersRequest)
	}
}

func WithNonceFunc(nonceFunc NonceFunc) ConfigOptionFunc {
	return func(c *Config) {
		c.NonceFunc = nonceFunc
	}
}

func WithNowFunc(nowFunc func() time.Time) ConfigOptionFunc {
	return func(c *Config) {
		c.NowFunc = nowFunc
	}
}

// randomNonce is a fresh random nonce used to detect connections to self
func randomNonce() ([protocol.NonceSize]byte, error) {
	var nonce [protocol.NonceSize]byte
	_, err := rand.Read(nonce[:])
	return nonce, err
}

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

// Package logic implements the per-connection protocol engine: the version handshake
// followed by the serving of filters, fees and rates to a single wallet.
package logic

import (
	"context"
	"log/slog"
	"time"

	"github.com/hexresearch/ergvein-indexer/protocol"
)

// Engine drives one session. Inbound messages are pushed to Inbox by the transport and
// responses are pulled from Outbox.
type Engine struct {
	peerAddr  string
	config    Config
	logger    *slog.Logger
	inbox     *Mailbox
	outbox    *Mailbox
	currency  protocol.Currency
	state     HandshakeState
	nonce     [protocol.NonceSize]byte
	peerNonce [protocol.NonceSize]byte

	// Filter height advertised in our Version, announcements start after it
	advertisedHeight uint64
}

// New returns an engine for the peer at peerAddr
func New(peerAddr string, options ...ConfigOptionFunc) *Engine {
	cfg := NewConfig(options...)
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetrics{}
	}
	if cfg.NonceFunc == nil {
		cfg.NonceFunc = randomNonce
	}
	if cfg.NowFunc == nil {
		cfg.NowFunc = time.Now
	}
	e := &Engine{
		peerAddr: peerAddr,
		config:   cfg,
		logger:   logger.With("component", "logic", "peer", peerAddr),
		inbox:    NewMailbox(),
		outbox:   NewMailbox(),
		currency: protocol.CurrencyBtc,
	}
	if cfg.Testnet {
		e.currency = protocol.CurrencyTBtc
	}
	return e
}

// Inbox receives messages decoded from the socket
func (e *Engine) Inbox() *Mailbox {
	return e.inbox
}

// Outbox yields messages to be written to the socket. It is closed when Run returns.
func (e *Engine) Outbox() *Mailbox {
	return e.outbox
}

// Currency is the single currency served by this engine
func (e *Engine) Currency() protocol.Currency {
	return e.currency
}

// HandshakeState reports the handshake progress. It must only be called after Run returns.
func (e *Engine) HandshakeState() HandshakeState {
	return e.state
}

// Run performs the handshake and then serves the peer until the connection timeout fires,
// a serve loop fails or ctx is cancelled. A nil result means the session closed normally.
// An error wrapping ErrAborted means ctx was cancelled.
func (e *Engine) Run(ctx context.Context) error {
	defer e.outbox.Close()
	defer e.inbox.Close()
	if err := e.handshake(ctx); err != nil {
		e.logResult("handshake failed", err)
		return err
	}
	e.logger.Info("handshake complete")
	err := e.serve(ctx)
	if err != nil {
		e.logResult("session failed", err)
	}
	return err
}

func (e *Engine) logResult(msg string, err error) {
	if IsAborted(err) {
		e.logger.Debug("aborted", "error", err)
		return
	}
	e.logger.Error(msg, "error", err)
}

func (e *Engine) send(msg protocol.Message) error {
	if err := e.outbox.Send(msg); err != nil {
		return ErrOutboxClosed
	}
	return nil
}

func (e *Engine) supported(currency protocol.Currency) bool {
	return currency == e.currency
}

type noopMetrics struct{}

func (noopMetrics) AddFiltersServed(int) {}

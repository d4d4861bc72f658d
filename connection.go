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

// Package ergvein implements the peer-facing side of the ergvein indexer.
//
// Wallets connect over TCP, perform a version handshake and then request compact block
// filters, fee estimates and fiat exchange rates. Each accepted connection is driven by a
// Connection, which couples the protocol engine from the logic package with the socket
// pump from the transport package so that a failure on either side stops the other.
//
// A Server accepts connections and runs a Connection for each of them.
package ergvein

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"runtime/debug"

	"github.com/google/uuid"

	"github.com/hexresearch/ergvein-indexer/logic"
	"github.com/hexresearch/ergvein-indexer/transport"
)

var (
	// ErrSessionPanic is returned when a session panicked. Only that session is affected.
	ErrSessionPanic = errors.New("session panicked")

	errTransportFinished = errors.New("transport finished")
)

// ConnectionId uniquely identifies a connection
type ConnectionId struct {
	Id         uuid.UUID
	RemoteAddr string
}

func (c ConnectionId) String() string {
	return fmt.Sprintf("%s (%s)", c.Id, c.RemoteAddr)
}

// The Connection type couples the protocol engine and the transport for a single socket
type Connection struct {
	id               ConnectionId
	conn             net.Conn
	logger           *slog.Logger
	logicOptions     []logic.ConfigOptionFunc
	transportOptions []transport.OptionFunc
	engine           *logic.Engine
	transport        *transport.Transport
}

// NewConnection returns a Connection for conn with the specified options
func NewConnection(conn net.Conn, options ...ConnectionOptionFunc) *Connection {
	c := &Connection{
		conn: conn,
	}
	// Apply provided options functions
	for _, option := range options {
		option(c)
	}
	if c.id.Id == uuid.Nil {
		c.id.Id = uuid.New()
	}
	if c.id.RemoteAddr == "" && conn.RemoteAddr() != nil {
		c.id.RemoteAddr = conn.RemoteAddr().String()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	// The engine and the transport add the peer address themselves
	sessionLogger := c.logger.With("connection_id", c.id.Id.String())
	c.logger = sessionLogger.With("peer", c.id.RemoteAddr)
	c.engine = logic.New(
		c.id.RemoteAddr,
		append(c.logicOptions, logic.WithLogger(sessionLogger))...,
	)
	c.transport = transport.New(
		conn,
		append(c.transportOptions, transport.WithLogger(sessionLogger))...,
	)
	return c
}

// Id returns the connection ID
func (c *Connection) Id() ConnectionId {
	return c.id
}

// Engine returns the protocol engine driving this connection
func (c *Connection) Engine() *logic.Engine {
	return c.engine
}

// Serve runs the session until it ends and returns its outcome. A nil result means the
// session ended normally: the connection timeout fired, the peer closed the connection or
// ctx was cancelled. The socket is closed when Serve returns.
func (c *Connection) Serve(ctx context.Context) error {
	// Both abort handles exist before either side starts
	logicCtx, abortLogic := context.WithCancelCause(ctx)
	defer abortLogic(nil)
	transportCtx, abortTransport := context.WithCancelCause(ctx)
	defer abortTransport(nil)

	logicErrChan := make(chan error, 1)
	go func() {
		err := c.runLogic(logicCtx)
		// When the inbox was closed the transport is already on its way out with its own error
		if err != nil && !logic.IsAborted(err) && !inboundClosed(err) {
			abortTransport(err)
		}
		logicErrChan <- err
	}()

	transportErr := c.transport.Run(transportCtx, c.engine.Outbox(), c.engine.Inbox())
	if transportErr != nil {
		abortLogic(transportErr)
	} else {
		abortLogic(errTransportFinished)
	}
	logicErr := <-logicErrChan
	err := c.outcome(logicErr, transportErr)
	if errors.Is(err, logic.ErrPanic) || errors.Is(err, transport.ErrPanic) {
		return fmt.Errorf("%w: %w", ErrSessionPanic, err)
	}
	return err
}

func (c *Connection) runLogic(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error(
				"panic in protocol engine",
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("%w: %v", ErrSessionPanic, r)
		}
	}()
	return c.engine.Run(ctx)
}

func inboundClosed(err error) bool {
	return errors.Is(err, logic.ErrInboxClosed) || errors.Is(err, logic.ErrHandshakeRecv)
}

// outcome picks the error that ended the session. A logic failure wins unless it only
// reflects the transport going away, in which case the transport error is the cause.
func (c *Connection) outcome(logicErr, transportErr error) error {
	if logicErr != nil && !logic.IsAborted(logicErr) && !inboundClosed(logicErr) {
		return logicErr
	}
	switch {
	case transportErr == nil:
		c.logger.Info("connection closed")
	case errors.Is(transportErr, transport.ErrPeerClosed):
		c.logger.Info("connection closed by peer")
	case errors.Is(transportErr, transport.ErrAborted):
		c.logger.Debug("transport aborted", "error", transportErr)
	default:
		c.logger.Error("transport failed", "error", transportErr)
		return transportErr
	}
	// A peer leaving before the handshake completed is still a failed handshake
	if errors.Is(logicErr, logic.ErrHandshakeRecv) {
		return logicErr
	}
	return nil
}

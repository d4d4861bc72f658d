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

package ergvein

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hexresearch/ergvein-indexer/logic"
	"github.com/hexresearch/ergvein-indexer/transport"
)

// Session outcome labels reported to Metrics
const (
	OutcomeOk            = "ok"
	OutcomeHandshake     = "handshake_error"
	OutcomeProtocol      = "protocol_error"
	OutcomeIo            = "io_error"
	OutcomePanic         = "panic"
	OutcomeInternalError = "internal_error"
)

const acceptRetryDelay = 100 * time.Millisecond

// ErrServerShutdown is the cause given to sessions cancelled by Shutdown
var ErrServerShutdown = errors.New("server shutting down")

// Metrics receives connection level events. logic.Metrics is embedded so the same value
// can be handed to every engine.
type Metrics interface {
	logic.Metrics
	ConnectionOpened()
	SessionClosed(outcome string)
}

// Server accepts wallet connections and serves each one in its own goroutine
type Server struct {
	logger            *slog.Logger
	metrics           Metrics
	logicOptions      []logic.ConfigOptionFunc
	transportOptions  []transport.OptionFunc
	manager           *ConnectionManager
	activeConnections atomic.Int64
	waitGroup         sync.WaitGroup
	mutex             sync.Mutex
	listener          net.Listener
	cancel            context.CancelCauseFunc
	onSessionClosed   ConnectionManagerConnClosedFunc
}

// NewServer returns a Server with the specified options
func NewServer(options ...ServerOptionFunc) *Server {
	s := &Server{}
	// Apply provided options functions
	for _, option := range options {
		option(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "server")
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	s.manager = NewConnectionManager(
		ConnectionManagerConfig{
			ConnClosedFunc: s.onSessionClosed,
		},
	)
	return s
}

// ListenAndServe binds addr and serves connections until ctx is done or Shutdown is
// called. A bind failure is returned immediately.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections from listener until ctx is done or Shutdown is called. Accept
// errors are logged and do not stop the loop. When Serve returns the listener is closed
// and every session it started has finished.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	sessionCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(ErrServerShutdown)
	s.mutex.Lock()
	s.listener = listener
	s.cancel = cancel
	s.mutex.Unlock()
	s.logger.Info("listening", "address", listener.Addr().String())
	stopChan := make(chan struct{})
	defer close(stopChan)
	go func() {
		select {
		case <-sessionCtx.Done():
		case <-stopChan:
		}
		_ = listener.Close()
	}()
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || sessionCtx.Err() != nil {
				s.logger.Info("listener closed, waiting for sessions")
				cancel(ErrServerShutdown)
				s.waitGroup.Wait()
				return nil
			}
			s.logger.Error("failed to accept connection", "error", err)
			select {
			case <-time.After(acceptRetryDelay):
			case <-sessionCtx.Done():
			}
			continue
		}
		s.startSession(sessionCtx, conn)
	}
}

// ServeConn serves a single already established connection and blocks until it ends
func (s *Server) ServeConn(ctx context.Context, conn net.Conn) error {
	return s.runSession(ctx, s.newConnection(conn))
}

func (s *Server) newConnection(conn net.Conn) *Connection {
	return NewConnection(
		conn,
		WithLogger(s.logger.With("component", "session")),
		WithLogicOptions(
			append(
				[]logic.ConfigOptionFunc{logic.WithMetrics(s.metrics)},
				s.logicOptions...,
			)...,
		),
		WithTransportOptions(s.transportOptions...),
	)
}

func (s *Server) startSession(ctx context.Context, conn net.Conn) {
	c := s.newConnection(conn)
	s.waitGroup.Add(1)
	go func() {
		defer s.waitGroup.Done()
		_ = s.runSession(ctx, c)
	}()
}

func (s *Server) runSession(ctx context.Context, c *Connection) (err error) {
	s.activeConnections.Add(1)
	s.metrics.ConnectionOpened()
	hostConnections := s.manager.AddConnection(c)
	s.logger.Debug(
		"accepted connection",
		"connection_id", c.Id().String(),
		"host_connections", hostConnections,
	)
	// Runs on every exit path, including a panic
	defer func() {
		s.activeConnections.Add(-1)
		s.metrics.SessionClosed(sessionOutcome(err))
		s.manager.RemoveConnection(c.Id(), err)
	}()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(
				"panic in session",
				"connection_id", c.Id().String(),
				"panic", r,
				"stack", string(debug.Stack()),
			)
			_ = c.conn.Close()
			err = fmt.Errorf("%w: %v", ErrSessionPanic, r)
		}
	}()
	return c.Serve(ctx)
}

// ActiveConnections returns the number of sessions currently running
func (s *Server) ActiveConnections() int64 {
	return s.activeConnections.Load()
}

// Connections returns the IDs of the sessions currently running
func (s *Server) Connections() []ConnectionId {
	return s.manager.Connections()
}

// Shutdown stops accepting connections, aborts all sessions and waits for them to finish
func (s *Server) Shutdown() {
	s.mutex.Lock()
	if s.cancel != nil {
		s.cancel(ErrServerShutdown)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.mutex.Unlock()
	s.waitGroup.Wait()
}

func sessionOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOk
	case errors.Is(err, ErrSessionPanic):
		return OutcomePanic
	case errors.Is(err, logic.ErrHandshakeSend),
		errors.Is(err, logic.ErrHandshakeTimeout),
		errors.Is(err, logic.ErrHandshakeRecv),
		errors.Is(err, logic.ErrHandshakeViolation),
		errors.Is(err, logic.ErrSelfConnection),
		errors.Is(err, logic.ErrIncompatibleVersion):
		return OutcomeHandshake
	case errors.Is(err, logic.ErrUnsupportedCurrency):
		return OutcomeProtocol
	}
	var ioErr *transport.IoError
	if errors.As(err, &ioErr) {
		return OutcomeIo
	}
	return OutcomeInternalError
}

type noopMetrics struct{}

func (noopMetrics) ConnectionOpened() {}

func (noopMetrics) SessionClosed(string) {}

func (noopMetrics) AddFiltersServed(int) {}

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
	"log/slog"

	"github.com/hexresearch/ergvein-indexer/logic"
	"github.com/hexresearch/ergvein-indexer/transport"
)

// ServerOptionFunc is a type that represents functions that modify the Server config
type ServerOptionFunc func(*Server)

// WithServerLogger specifies the logger. The default is slog.Default()
func WithServerLogger(logger *slog.Logger) ServerOptionFunc {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics specifies where connection and filter metrics are reported
func WithMetrics(metrics Metrics) ServerOptionFunc {
	return func(s *Server) {
		s.metrics = metrics
	}
}

// WithSessionLogicOptions specifies protocol engine options applied to every session
func WithSessionLogicOptions(options ...logic.ConfigOptionFunc) ServerOptionFunc {
	return func(s *Server) {
		s.logicOptions = append(s.logicOptions, options...)
	}
}

// WithSessionTransportOptions specifies transport options applied to every session
func WithSessionTransportOptions(options ...transport.OptionFunc) ServerOptionFunc {
	return func(s *Server) {
		s.transportOptions = append(s.transportOptions, options...)
	}
}

// WithSessionClosedFunc specifies a callback invoked with the outcome of every session
func WithSessionClosedFunc(closedFunc ConnectionManagerConnClosedFunc) ServerOptionFunc {
	return func(s *Server) {
		s.onSessionClosed = closedFunc
	}
}

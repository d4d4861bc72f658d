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

	"github.com/google/uuid"

	"github.com/hexresearch/ergvein-indexer/logic"
	"github.com/hexresearch/ergvein-indexer/transport"
)

// ConnectionOptionFunc is a type that represents functions that modify the Connection config
type ConnectionOptionFunc func(*Connection)

// WithConnectionId specifies the connection ID. A random one is generated if none is provided
func WithConnectionId(id uuid.UUID) ConnectionOptionFunc {
	return func(c *Connection) {
		c.id.Id = id
	}
}

// WithRemoteAddr overrides the peer address used in logs, which defaults to the socket's
// remote address
func WithRemoteAddr(addr string) ConnectionOptionFunc {
	return func(c *Connection) {
		c.id.RemoteAddr = addr
	}
}

// WithLogger specifies the logger. The default is slog.Default()
func WithLogger(logger *slog.Logger) ConnectionOptionFunc {
	return func(c *Connection) {
		c.logger = logger
	}
}

// WithLogicOptions specifies options for the protocol engine
func WithLogicOptions(options ...logic.ConfigOptionFunc) ConnectionOptionFunc {
	return func(c *Connection) {
		c.logicOptions = append(c.logicOptions, options...)
	}
}

// WithTransportOptions specifies options for the transport
func WithTransportOptions(options ...transport.OptionFunc) ConnectionOptionFunc {
	return func(c *Connection) {
		c.transportOptions = append(c.transportOptions, options...)
	}
}

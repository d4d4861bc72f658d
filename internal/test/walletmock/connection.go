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

// Package walletmock provides a scripted wallet on the far end of an in-memory connection
package walletmock

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/hexresearch/ergvein-indexer/cbor"
	"github.com/hexresearch/ergvein-indexer/transport"
)

// Connection mocks a wallet connection. The indexer side uses it as a net.Conn while the
// conversation is played on the other end of the pipe.
type Connection struct {
	mockConn     net.Conn
	conn         net.Conn
	conversation []ConversationEntry
	errorChan    chan error
}

// NewConnection returns a new Connection and starts playing the conversation
func NewConnection(conversation []ConversationEntry) *Connection {
	c := &Connection{
		conversation: conversation,
		errorChan:    make(chan error, 1),
	}
	c.conn, c.mockConn = net.Pipe()
	go c.asyncLoop()
	return c
}

// ErrorChan receives the conversation result: nil when every entry was played
func (c *Connection) ErrorChan() <-chan error {
	return c.errorChan
}

// Read provides a proxy to the indexer-side connection's Read function
func (c *Connection) Read(b []byte) (n int, err error) {
	return c.conn.Read(b)
}

// Write provides a proxy to the indexer-side connection's Write function
func (c *Connection) Write(b []byte) (n int, err error) {
	return c.conn.Write(b)
}

// Close closes both sides of the connection
func (c *Connection) Close() error {
	if err := c.conn.Close(); err != nil {
		return err
	}
	return c.mockConn.Close()
}

func (c *Connection) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Connection) SetDeadline(t time.Time) error {
	return c.conn.SetDeadline(t)
}

func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func (c *Connection) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}

func (c *Connection) asyncLoop() {
	for idx, entry := range c.conversation {
		var err error
		switch entry.Type {
		case EntryTypeInput:
			err = c.processInputEntry(entry)
		case EntryTypeOutput:
			err = c.processOutputEntry(entry)
		case EntryTypeClose:
			err = c.mockConn.Close()
		case EntryTypeExpectClose:
			err = c.processExpectClose()
		default:
			err = fmt.Errorf("unknown conversation entry type: %d: %#v", entry.Type, entry)
		}
		if err != nil {
			c.errorChan <- fmt.Errorf("conversation entry %d: %w", idx, err)
			_ = c.mockConn.Close()
			return
		}
	}
	c.errorChan <- nil
}

func (c *Connection) processInputEntry(entry ConversationEntry) error {
	frame, err := transport.ReadFrame(c.mockConn, 0)
	if err != nil {
		return fmt.Errorf("read error: %w", err)
	}
	if entry.InputMessage != nil {
		expected, err := cbor.Encode(entry.InputMessage)
		if err != nil {
			return err
		}
		if !bytes.Equal(expected, frame.Payload) {
			return fmt.Errorf(
				"message does not match expected value: got %x, expected %x",
				frame.Payload,
				expected,
			)
		}
		return nil
	}
	if frame.Type() != entry.InputMessageType {
		return fmt.Errorf(
			"input message is not of expected type: expected %s, got %s",
			entry.InputMessageType,
			frame.Type(),
		)
	}
	return nil
}

func (c *Connection) processOutputEntry(entry ConversationEntry) error {
	for _, msg := range entry.OutputMessages {
		if err := transport.WriteMessage(c.mockConn, msg); err != nil {
			return err
		}
	}
	if entry.OutputRaw != nil {
		if _, err := c.mockConn.Write(entry.OutputRaw); err != nil {
			return err
		}
	}
	return nil
}

func (c *Connection) processExpectClose() error {
	frame, err := transport.ReadFrame(c.mockConn, 0)
	if err == nil {
		return fmt.Errorf("expected connection close, got %s", frame.Type())
	}
	if errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("expected connection close: %w", err)
}

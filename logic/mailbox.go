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
	"errors"
	"io"
	"sync"

	"github.com/hexresearch/ergvein-indexer/protocol"
)

var ErrMailboxClosed = errors.New("mailbox closed")

// Mailbox is an unbounded FIFO of messages with a single consumer. Send never blocks, so
// the socket reader is never held up by a slow engine and the engine is never held up by a
// slow socket writer.
type Mailbox struct {
	mutex     sync.Mutex
	items     []protocol.Message
	closed    bool
	readyChan chan struct{}
	doneChan  chan struct{}
}

func NewMailbox() *Mailbox {
	return &Mailbox{
		readyChan: make(chan struct{}, 1),
		doneChan:  make(chan struct{}),
	}
}

// Send appends a message. It fails with ErrMailboxClosed after Close.
func (m *Mailbox) Send(msg protocol.Message) error {
	m.mutex.Lock()
	if m.closed {
		m.mutex.Unlock()
		return ErrMailboxClosed
	}
	m.items = append(m.items, msg)
	m.mutex.Unlock()
	// Wake up the consumer if it's waiting
	select {
	case m.readyChan <- struct{}{}:
	default:
	}
	return nil
}

// Close stops accepting new messages. Messages already queued can still be received.
func (m *Mailbox) Close() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.doneChan)
}

// Recv waits for the next message. It returns io.EOF once the mailbox is closed and empty,
// or ctx.Err() if ctx is done first.
func (m *Mailbox) Recv(ctx context.Context) (protocol.Message, error) {
	for {
		if msg, ok := m.TryRecv(); ok {
			return msg, nil
		}
		m.mutex.Lock()
		if m.closed && len(m.items) == 0 {
			m.mutex.Unlock()
			return nil, io.EOF
		}
		m.mutex.Unlock()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-m.readyChan:
		case <-m.doneChan:
			// Loop around to drain what is left
		}
	}
}

// TryRecv returns the next message without waiting
func (m *Mailbox) TryRecv() (protocol.Message, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if len(m.items) == 0 {
		return nil, false
	}
	msg := m.items[0]
	m.items[0] = nil
	m.items = m.items[1:]
	return msg, true
}

// Len returns the number of queued messages
func (m *Mailbox) Len() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.items)
}

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

package logic_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hexresearch/ergvein-indexer/logic"
	"github.com/hexresearch/ergvein-indexer/protocol"
)

func TestMailboxOrder(t *testing.T) {
	m := logic.NewMailbox()
	for i := range 100 {
		require.NoError(t, m.Send(protocol.NewMsgPing(uint64(i))))
	}
	assert.Equal(t, 100, m.Len())
	for i := range 100 {
		msg, err := m.Recv(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(i), msg.(*protocol.MsgPing).Nonce)
	}
	_, ok := m.TryRecv()
	assert.False(t, ok)
}

func TestMailboxCloseDrains(t *testing.T) {
	m := logic.NewMailbox()
	require.NoError(t, m.Send(protocol.NewMsgPing(1)))
	require.NoError(t, m.Send(protocol.NewMsgPing(2)))
	m.Close()
	m.Close()
	assert.ErrorIs(t, m.Send(protocol.NewMsgPing(3)), logic.ErrMailboxClosed)
	for _, nonce := range []uint64{1, 2} {
		msg, err := m.Recv(context.Background())
		require.NoError(t, err)
		assert.Equal(t, nonce, msg.(*protocol.MsgPing).Nonce)
	}
	_, err := m.Recv(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestMailboxRecvWakeup(t *testing.T) {
	defer goleak.VerifyNone(t)
	m := logic.NewMailbox()
	resultChan := make(chan protocol.Message, 1)
	go func() {
		msg, _ := m.Recv(context.Background())
		resultChan <- msg
	}()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, m.Send(protocol.NewMsgPong(42)))
	select {
	case msg := <-resultChan:
		assert.Equal(t, uint64(42), msg.(*protocol.MsgPong).Nonce)
	case <-time.After(2 * time.Second):
		t.Fatal("did not receive message")
	}
}

func TestMailboxRecvClosedWhileWaiting(t *testing.T) {
	defer goleak.VerifyNone(t)
	m := logic.NewMailbox()
	errChan := make(chan error, 1)
	go func() {
		_, err := m.Recv(context.Background())
		errChan <- err
	}()
	time.Sleep(10 * time.Millisecond)
	m.Close()
	select {
	case err := <-errChan:
		assert.ErrorIs(t, err, io.EOF)
	case <-time.After(2 * time.Second):
		t.Fatal("Recv did not return after Close")
	}
}

func TestMailboxRecvContext(t *testing.T) {
	m := logic.NewMailbox()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := m.Recv(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

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

package transport_test

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hexresearch/ergvein-indexer/logic"
	"github.com/hexresearch/ergvein-indexer/protocol"
	"github.com/hexresearch/ergvein-indexer/transport"
)

const testTimeout = 2 * time.Second

type pipeTest struct {
	peer    net.Conn
	source  *logic.Mailbox
	sink    *logic.Mailbox
	cancel  context.CancelCauseFunc
	errChan chan error
}

func startTransport(t *testing.T) *pipeTest {
	t.Helper()
	local, peer := net.Pipe()
	p := &pipeTest{
		peer:    peer,
		source:  logic.NewMailbox(),
		sink:    logic.NewMailbox(),
		errChan: make(chan error, 1),
	}
	ctx, cancel := context.WithCancelCause(context.Background())
	p.cancel = cancel
	tr := transport.New(local, transport.WithFlushTimeout(time.Second))
	go func() {
		p.errChan <- tr.Run(ctx, p.source, p.sink)
	}()
	return p
}

func (p *pipeTest) result(t *testing.T) error {
	t.Helper()
	select {
	case err := <-p.errChan:
		return err
	case <-time.After(testTimeout):
		t.Fatal("transport did not return")
	}
	return nil
}

func (p *pipeTest) recvInbound(t *testing.T) protocol.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	msg, err := p.sink.Recv(ctx)
	require.NoError(t, err)
	return msg
}

func TestTransportPumpsBothWays(t *testing.T) {
	defer goleak.VerifyNone(t)
	p := startTransport(t)
	defer p.peer.Close()
	require.NoError(t, transport.WriteMessage(p.peer, protocol.NewMsgPing(11)))
	ping, ok := p.recvInbound(t).(*protocol.MsgPing)
	require.True(t, ok)
	assert.Equal(t, uint64(11), ping.Nonce)

	require.NoError(t, p.source.Send(protocol.NewMsgPong(11)))
	msg, err := transport.ReadMessage(p.peer, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), msg.(*protocol.MsgPong).Nonce)

	// Closing the source ends the transport once everything is written
	require.NoError(t, p.source.Send(protocol.NewMsgPong(12)))
	p.source.Close()
	msg, err = transport.ReadMessage(p.peer, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), msg.(*protocol.MsgPong).Nonce)
	assert.NoError(t, p.result(t))
	_, err = transport.ReadMessage(p.peer, 0)
	assert.ErrorIs(t, err, io.EOF)
}

func TestTransportPeerClosed(t *testing.T) {
	defer goleak.VerifyNone(t)
	p := startTransport(t)
	require.NoError(t, transport.WriteMessage(p.peer, protocol.NewMsgPing(1)))
	require.IsType(t, &protocol.MsgPing{}, p.recvInbound(t))
	require.NoError(t, p.peer.Close())
	// The sink is closed when the read side ends
	_, err := p.sink.Recv(context.Background())
	assert.ErrorIs(t, err, io.EOF)
	// The logic side closes its outbox in response
	p.source.Close()
	assert.ErrorIs(t, p.result(t), transport.ErrPeerClosed)
}

func TestTransportDecodeError(t *testing.T) {
	defer goleak.VerifyNone(t)
	p := startTransport(t)
	defer p.peer.Close()
	// Header claims a Ping but the payload is garbage
	_, err := p.peer.Write([]byte{0, 0, 0, 4, 0, 0, 0, 2, 0xff, 0xff})
	require.NoError(t, err)
	err = p.result(t)
	var ioErr *transport.IoError
	require.True(t, errors.As(err, &ioErr), "expected IoError, got %v", err)
	assert.Equal(t, "decode", ioErr.Op)
}

func TestTransportFrameTooLarge(t *testing.T) {
	defer goleak.VerifyNone(t)
	local, peer := net.Pipe()
	defer peer.Close()
	tr := transport.New(local, transport.WithMaxPayloadLength(4))
	errChan := make(chan error, 1)
	go func() {
		errChan <- tr.Run(context.Background(), logic.NewMailbox(), logic.NewMailbox())
	}()
	_, err := peer.Write([]byte{0, 0, 0, 4, 0, 0, 1, 0})
	require.NoError(t, err)
	select {
	case err := <-errChan:
		var ioErr *transport.IoError
		require.True(t, errors.As(err, &ioErr))
		assert.Equal(t, "read", ioErr.Op)
		assert.ErrorIs(t, err, transport.ErrFrameTooLarge)
	case <-time.After(testTimeout):
		t.Fatal("transport did not return")
	}
}

func TestTransportAbortFlushesQueued(t *testing.T) {
	defer goleak.VerifyNone(t)
	p := startTransport(t)
	defer p.peer.Close()
	received := make(chan []protocol.MessageType, 1)
	go func() {
		var types []protocol.MessageType
		for {
			msg, err := transport.ReadMessage(p.peer, 0)
			if err != nil {
				received <- types
				return
			}
			types = append(types, msg.Type())
		}
	}()
	require.NoError(t, p.source.Send(protocol.NewMsgPong(1)))
	require.NoError(
		t,
		p.source.Send(
			protocol.NewMsgReject(
				protocol.MessageTypeGetFilters,
				protocol.RejectInternalError,
				"Not supported currency ERGO",
			),
		),
	)
	cause := errors.New("logic failed")
	p.cancel(cause)
	err := p.result(t)
	assert.ErrorIs(t, err, transport.ErrAborted)
	assert.ErrorIs(t, err, cause)
	select {
	case types := <-received:
		assert.Equal(
			t,
			[]protocol.MessageType{protocol.MessageTypePong, protocol.MessageTypeReject},
			types,
		)
	case <-time.After(testTimeout):
		t.Fatal("peer did not see the connection close")
	}
}

func TestTransportAbortIdle(t *testing.T) {
	defer goleak.VerifyNone(t)
	p := startTransport(t)
	defer p.peer.Close()
	p.cancel(nil)
	err := p.result(t)
	assert.ErrorIs(t, err, transport.ErrAborted)
	assert.ErrorIs(t, err, context.Canceled)
}

// panicSource fails the writer pump
type panicSource struct{}

func (panicSource) Recv(context.Context) (protocol.Message, error) {
	panic("source exploded")
}

func (panicSource) TryRecv() (protocol.Message, bool) {
	return nil, false
}

func TestWriterPanicEndsRun(t *testing.T) {
	defer goleak.VerifyNone(t)
	local, peer := net.Pipe()
	defer peer.Close()
	sink := logic.NewMailbox()
	tr := transport.New(local)
	errChan := make(chan error, 1)
	go func() {
		errChan <- tr.Run(context.Background(), panicSource{}, sink)
	}()
	select {
	case err := <-errChan:
		require.ErrorIs(t, err, transport.ErrPanic)
		assert.Contains(t, err.Error(), "writer")
	case <-time.After(testTimeout):
		t.Fatal("transport did not return")
	}
	// The socket is closed and the inbound sink with it
	_, err := peer.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	_, err = sink.Recv(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

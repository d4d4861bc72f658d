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

// Package transport moves protocol messages between a socket and the protocol engine.
//
// A Transport owns one connection. It pumps decoded frames from the socket into a Sink and
// drains a Source onto the socket, keeping FIFO order in each direction. The engine never
// sees the socket, only the Source/Sink pair.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"runtime/debug"
	"time"

	"github.com/hexresearch/ergvein-indexer/protocol"
)

const DefaultFlushTimeout = 2 * time.Second

var (
	// ErrPeerClosed is returned when the peer closes the connection at a frame boundary
	ErrPeerClosed = errors.New("connection closed by peer")
	// ErrAborted is returned when the transport was cancelled from the outside
	ErrAborted = errors.New("transport aborted")

	// ErrPanic is returned when one of the pumps panicked
	ErrPanic = errors.New("panic in transport")

	errSinkClosed = errors.New("inbound sink closed")
)

// IoError is a fatal decode, encode or socket failure
type IoError struct {
	Op  string
	Err error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("transport %s: %s", e.Op, e.Err)
}

func (e *IoError) Unwrap() error {
	return e.Err
}

// Source provides outbound messages. Recv returns io.EOF once the source is closed and
// drained. TryRecv never blocks.
type Source interface {
	Recv(ctx context.Context) (protocol.Message, error)
	TryRecv() (protocol.Message, bool)
}

// Sink accepts inbound messages. Send fails once the sink is closed.
type Sink interface {
	Send(msg protocol.Message) error
	Close()
}

type Transport struct {
	conn             net.Conn
	maxPayloadLength uint32
	flushTimeout     time.Duration
	logger           *slog.Logger
}

type OptionFunc func(*Transport)

// WithMaxPayloadLength bounds the size of inbound frames
func WithMaxPayloadLength(length uint32) OptionFunc {
	return func(t *Transport) {
		t.maxPayloadLength = length
	}
}

// WithFlushTimeout bounds how long queued outbound messages may take to drain on abort
func WithFlushTimeout(timeout time.Duration) OptionFunc {
	return func(t *Transport) {
		t.flushTimeout = timeout
	}
}

func WithLogger(logger *slog.Logger) OptionFunc {
	return func(t *Transport) {
		t.logger = logger
	}
}

func New(conn net.Conn, opts ...OptionFunc) *Transport {
	t := &Transport{
		conn:             conn,
		maxPayloadLength: DefaultMaxPayloadLength,
		flushTimeout:     DefaultFlushTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	return t
}

// Run pumps messages until one side finishes or ctx is cancelled. It returns nil when the
// source was closed and fully written, ErrPeerClosed on a clean EOF from the peer, an
// *IoError on any decode or socket failure and an error wrapping ErrAborted when ctx was
// cancelled. The connection is closed and both pumps have stopped when Run returns.
func (t *Transport) Run(ctx context.Context, source Source, sink Sink) error {
	readErrChan := make(chan error, 1)
	writeErrChan := make(chan error, 1)
	writeCtx, cancelWrite := context.WithCancel(context.Background())
	defer cancelWrite()
	go func() {
		readErrChan <- t.readLoop(sink)
	}()
	go func() {
		writeErrChan <- t.writeLoop(writeCtx, source)
	}()
	var ret error
	readDone := false
	select {
	case <-ctx.Done():
		ret = t.abort(ctx, cancelWrite, writeErrChan, source)
	case err := <-writeErrChan:
		// A nil error means the source closed and everything queued was written
		ret = err
	case err := <-readErrChan:
		readDone = true
		if errors.Is(err, errSinkClosed) {
			// The engine went away, so its outbox is about to close too
			select {
			case <-ctx.Done():
				ret = t.abort(ctx, cancelWrite, writeErrChan, source)
			case err := <-writeErrChan:
				ret = err
			}
			break
		}
		ret = err
		cancelWrite()
		_ = t.conn.Close()
		<-writeErrChan
	}
	_ = t.conn.Close()
	if !readDone {
		<-readErrChan
	}
	return ret
}

// abort stops the writer, flushes whatever is already queued under the flush timeout and
// then lets the caller close the socket
func (t *Transport) abort(
	ctx context.Context,
	cancelWrite context.CancelFunc,
	writeErrChan chan error,
	source Source,
) error {
	_ = t.conn.SetWriteDeadline(time.Now().Add(t.flushTimeout))
	cancelWrite()
	writeErr := <-writeErrChan
	if writeErr == nil || errors.Is(writeErr, context.Canceled) {
		t.flush(source)
	}
	return fmt.Errorf("%w: %w", ErrAborted, context.Cause(ctx))
}

func (t *Transport) flush(source Source) {
	for {
		msg, ok := source.TryRecv()
		if !ok {
			return
		}
		if err := WriteMessage(t.conn, msg); err != nil {
			t.logger.Debug(
				"failed to flush message",
				"component", "transport",
				"peer", t.remoteAddr(),
				"message_type", msg.Type().String(),
				"error", err,
			)
			return
		}
	}
}

func (t *Transport) readLoop(sink Sink) (err error) {
	defer sink.Close()
	defer t.recoverPump("reader", &err)
	for {
		frame, err := ReadFrame(t.conn, t.maxPayloadLength)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrPeerClosed
			}
			t.logger.Debug(
				"failed to read from socket",
				"component", "transport",
				"peer", t.remoteAddr(),
				"error", err,
			)
			return &IoError{Op: "read", Err: err}
		}
		msg, err := frame.Message()
		if err != nil {
			return &IoError{Op: "decode", Err: err}
		}
		if err := sink.Send(msg); err != nil {
			return errSinkClosed
		}
	}
}

func (t *Transport) writeLoop(ctx context.Context, source Source) (err error) {
	defer t.recoverPump("writer", &err)
	for {
		msg, err := source.Recv(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		frame, err := NewFrame(msg)
		if err != nil {
			return &IoError{Op: "encode", Err: err}
		}
		if err := WriteFrame(t.conn, frame); err != nil {
			return &IoError{Op: "write", Err: err}
		}
	}
}

func (t *Transport) recoverPump(name string, err *error) {
	if r := recover(); r != nil {
		t.logger.Error(
			"panic in transport",
			"component", "transport",
			"peer", t.remoteAddr(),
			"pump", name,
			"panic", r,
			"stack", string(debug.Stack()),
		)
		*err = fmt.Errorf("%w: %s: %v", ErrPanic, name, r)
	}
}

func (t *Transport) remoteAddr() string {
	if addr := t.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

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
	"fmt"
	"io"
	"strings"

	"github.com/hexresearch/ergvein-indexer/protocol"
)

// HandshakeState is a set of flags for the handshake messages received so far
type HandshakeState uint8

const (
	HandshakeStateAwaitingBoth HandshakeState = 0
	HandshakeStateGotVersion   HandshakeState = 1 << 0
	HandshakeStateGotAck       HandshakeState = 1 << 1
	HandshakeStateHandshaked                  = HandshakeStateGotVersion | HandshakeStateGotAck
)

func (s HandshakeState) String() string {
	switch s {
	case HandshakeStateAwaitingBoth:
		return "AwaitingBoth"
	case HandshakeStateHandshaked:
		return "Handshaked"
	}
	var parts []string
	if s&HandshakeStateGotVersion != 0 {
		parts = append(parts, "GotVersion")
	}
	if s&HandshakeStateGotAck != 0 {
		parts = append(parts, "GotAck")
	}
	return strings.Join(parts, "|")
}

func (e *Engine) versionMessage() (*protocol.MsgVersion, error) {
	if e.config.Storage == nil {
		return nil, fmt.Errorf("%w: no storage configured", ErrStorage)
	}
	filterHeight, err := e.config.Storage.FilterHeight()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	chainHeight, err := e.config.Storage.ChainHeight()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	nonce, err := e.config.NonceFunc()
	if err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	e.nonce = nonce
	e.advertisedHeight = filterHeight
	scanBlocks := []protocol.ScanBlock{
		{
			Currency:   e.currency,
			Version:    protocol.FilterVersion,
			ScanHeight: filterHeight,
			Height:     chainHeight,
		},
	}
	// #nosec G115
	now := uint64(e.config.NowFunc().Unix())
	return protocol.NewMsgVersion(protocol.CurrentVersion, now, nonce, scanBlocks), nil
}

// handshake sends our Version and waits for the peer's Version and VersionAck in any order
func (e *Engine) handshake(ctx context.Context) error {
	msgVersion, err := e.versionMessage()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHandshakeSend, err)
	}
	if err := e.send(msgVersion); err != nil {
		return fmt.Errorf("%w: %w", ErrHandshakeSend, err)
	}
	handshakeCtx, cancel := context.WithTimeoutCause(
		ctx,
		e.config.HandshakeTimeout,
		ErrHandshakeTimeout,
	)
	defer cancel()
	for e.state != HandshakeStateHandshaked {
		msg, err := e.inbox.Recv(handshakeCtx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrHandshakeRecv
			}
			if ctx.Err() != nil {
				return abortedError(ctx)
			}
			return ErrHandshakeTimeout
		}
		switch msg := msg.(type) {
		case *protocol.MsgVersion:
			if err := e.handleVersion(msg); err != nil {
				return err
			}
		case *protocol.MsgVersionAck:
			e.logger.Debug("received version ack")
			e.state |= HandshakeStateGotAck
		default:
			return fmt.Errorf(
				"%w: received %s before handshake completed",
				ErrHandshakeViolation,
				msg.Type(),
			)
		}
	}
	return nil
}

func (e *Engine) handleVersion(msg *protocol.MsgVersion) error {
	if !protocol.Compatible(protocol.CurrentVersion, msg.Version) {
		return &IncompatibleVersionError{Version: msg.Version}
	}
	if msg.Nonce == e.nonce {
		return ErrSelfConnection
	}
	e.logger.Debug("received version", "version", msg.Version.String())
	e.peerNonce = msg.Nonce
	e.state |= HandshakeStateGotVersion
	if err := e.send(protocol.NewMsgVersionAck()); err != nil {
		return fmt.Errorf("%w: %w", ErrHandshakeSend, err)
	}
	return nil
}

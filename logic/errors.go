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

	"github.com/hexresearch/ergvein-indexer/protocol"
)

// Session-fatal errors. None of them are retried.
var (
	ErrHandshakeSend       = errors.New("handshake: failed to send")
	ErrHandshakeTimeout    = errors.New("handshake: timed out")
	ErrHandshakeRecv       = errors.New("handshake: inbound stream closed")
	ErrHandshakeViolation  = errors.New("handshake: protocol violation")
	ErrSelfConnection      = errors.New("handshake: connected to self, nonce identical")
	ErrIncompatibleVersion = errors.New("handshake: incompatible version")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrOutboxClosed        = errors.New("outbound stream closed")
	ErrInboxClosed         = errors.New("inbound stream closed")
	ErrLoopEnded           = errors.New("serve loop ended unexpectedly")
	ErrStorage             = errors.New("storage failure")
	ErrPanic               = errors.New("panic in protocol engine")
)

// ErrAborted marks a cooperative cancellation. It is an intentional shutdown, not a failure.
var ErrAborted = errors.New("logic aborted")

type IncompatibleVersionError struct {
	Version protocol.Version
}

func (e *IncompatibleVersionError) Error() string {
	return fmt.Sprintf("%s: peer version %s", ErrIncompatibleVersion, e.Version)
}

func (e *IncompatibleVersionError) Unwrap() error {
	return ErrIncompatibleVersion
}

type UnsupportedCurrencyError struct {
	Currency protocol.Currency
}

func (e *UnsupportedCurrencyError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnsupportedCurrency, e.Currency)
}

func (e *UnsupportedCurrencyError) Unwrap() error {
	return ErrUnsupportedCurrency
}

// IsAborted reports whether err is the result of a cooperative cancellation
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted)
}

func abortedError(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrAborted, context.Cause(ctx))
}

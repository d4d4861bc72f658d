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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hexresearch/ergvein-indexer/logic"
	"github.com/hexresearch/ergvein-indexer/protocol"
	"github.com/hexresearch/ergvein-indexer/storage"
)

const testTimeout = 2 * time.Second

var (
	localNonce = [protocol.NonceSize]byte{1, 2, 3, 4, 5, 6, 7, 8}
	peerNonce  = [protocol.NonceSize]byte{8, 7, 6, 5, 4, 3, 2, 1}
	testTime   = time.Unix(1700000000, 0)
)

// memoryStorage keeps filters for heights 1 through the filter height
type memoryStorage struct {
	mutex        sync.Mutex
	filterHeight uint64
	chainHeight  uint64
}

func newMemoryStorage(filterHeight uint64) *memoryStorage {
	return &memoryStorage{filterHeight: filterHeight, chainHeight: filterHeight + 6}
}

func testBlockId(height uint64) chainhash.Hash {
	return chainhash.HashH([]byte{byte(height), byte(height >> 8), byte(height >> 16)})
}

func (s *memoryStorage) setFilterHeight(height uint64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.filterHeight = height
}

func (s *memoryStorage) FilterHeight() (uint64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.filterHeight, nil
}

func (s *memoryStorage) ChainHeight() (uint64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.chainHeight, nil
}

func (s *memoryStorage) ReadFilters(start uint64, count uint32) ([]storage.FilterRecord, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var ret []storage.FilterRecord
	for height := max(start, 1); height <= s.filterHeight && height < start+uint64(count); height++ {
		ret = append(ret, storage.FilterRecord{
			Height:  height,
			BlockId: testBlockId(height),
			Filter:  []byte{0x01, byte(height)},
		})
	}
	return ret, nil
}

func (s *memoryStorage) WaitFilterHeightChange(
	ctx context.Context,
	since uint64,
	poll time.Duration,
) (uint64, error) {
	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(poll):
		}
		if height, _ := s.FilterHeight(); height != since {
			return height, nil
		}
	}
}

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) FilterHeight() (uint64, error) {
	args := m.Called()
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockStorage) ChainHeight() (uint64, error) {
	args := m.Called()
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockStorage) ReadFilters(start uint64, count uint32) ([]storage.FilterRecord, error) {
	args := m.Called(start, count)
	records, _ := args.Get(0).([]storage.FilterRecord)
	return records, args.Error(1)
}

func (m *mockStorage) WaitFilterHeightChange(
	ctx context.Context,
	since uint64,
	poll time.Duration,
) (uint64, error) {
	args := m.Called(ctx, since, poll)
	return args.Get(0).(uint64), args.Error(1)
}

type countingMetrics struct {
	served atomic.Int64
}

func (m *countingMetrics) AddFiltersServed(count int) {
	m.served.Add(int64(count))
}

type runningEngine struct {
	*logic.Engine
	cancel  context.CancelCauseFunc
	errChan chan error
}

func startEngine(t *testing.T, options ...logic.ConfigOptionFunc) *runningEngine {
	t.Helper()
	// Registered first so that it runs after the engine is stopped
	t.Cleanup(func() {
		goleak.VerifyNone(t)
	})
	options = append(
		[]logic.ConfigOptionFunc{
			logic.WithNonceFunc(func() ([protocol.NonceSize]byte, error) {
				return localNonce, nil
			}),
			logic.WithNowFunc(func() time.Time { return testTime }),
			logic.WithAnnouncePollInterval(5 * time.Millisecond),
		},
		options...,
	)
	e := logic.New("127.0.0.1:50000", options...)
	ctx, cancel := context.WithCancelCause(context.Background())
	r := &runningEngine{
		Engine:  e,
		cancel:  cancel,
		errChan: make(chan error, 1),
	}
	go func() {
		r.errChan <- e.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel(nil)
		select {
		case <-r.errChan:
		case <-time.After(testTimeout):
			t.Error("engine did not stop")
		}
	})
	return r
}

// recv waits for the next outbound message
func (r *runningEngine) recv(t *testing.T) protocol.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	msg, err := r.Outbox().Recv(ctx)
	require.NoError(t, err)
	return msg
}

func (r *runningEngine) send(t *testing.T, msg protocol.Message) {
	t.Helper()
	require.NoError(t, r.Inbox().Send(msg))
}

// result waits for Run to return. The result is put back for the cleanup.
func (r *runningEngine) result(t *testing.T) error {
	t.Helper()
	select {
	case err := <-r.errChan:
		r.errChan <- err
		return err
	case <-time.After(testTimeout):
		t.Fatal("engine did not finish")
	}
	return nil
}

func peerVersion() *protocol.MsgVersion {
	return protocol.NewMsgVersion(protocol.CurrentVersion, uint64(testTime.Unix()), peerNonce, nil)
}

// handshake completes the handshake with the peer version sent first
func (r *runningEngine) handshake(t *testing.T) {
	t.Helper()
	require.IsType(t, &protocol.MsgVersion{}, r.recv(t))
	r.send(t, peerVersion())
	require.IsType(t, &protocol.MsgVersionAck{}, r.recv(t))
	r.send(t, protocol.NewMsgVersionAck())
}

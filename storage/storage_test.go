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

package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil/gcs"
	"github.com/btcsuite/btcd/btcutil/gcs/builder"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hexresearch/ergvein-indexer/storage"
)

func openStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(filepath.Join(t.TempDir(), "filters.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, s.Close())
	})
	return s
}

func buildFilter(t *testing.T, blockId chainhash.Hash, items ...string) []byte {
	t.Helper()
	data := make([][]byte, 0, len(items))
	for _, item := range items {
		data = append(data, []byte(item))
	}
	f, err := gcs.BuildGCSFilter(
		builder.DefaultP,
		builder.DefaultM,
		builder.DeriveKey(&blockId),
		data,
	)
	require.NoError(t, err)
	ret, err := f.NBytes()
	require.NoError(t, err)
	return ret
}

func blockHash(height uint64) chainhash.Hash {
	return chainhash.DoubleHashH([]byte{byte(height), byte(height >> 8)})
}

func TestEmptyStore(t *testing.T) {
	s := openStore(t)
	height, err := s.FilterHeight()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), height)
	chainHeight, err := s.ChainHeight()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), chainHeight)
	records, err := s.ReadFilters(0, 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestPutAndReadFilters(t *testing.T) {
	s := openStore(t)
	for height := uint64(1); height <= 5; height++ {
		id := blockHash(height)
		require.NoError(t, s.PutFilter(height, id, buildFilter(t, id, "script", id.String())))
	}
	height, err := s.FilterHeight()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), height)

	records, err := s.ReadFilters(2, 3)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, record := range records {
		expected := uint64(2 + i)
		assert.Equal(t, expected, record.Height)
		assert.Equal(t, blockHash(expected), record.BlockId)
		assert.NotEmpty(t, record.Filter)
	}

	// Reading past the end returns what's there
	records, err = s.ReadFilters(4, 10)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestReadFiltersReturnsOwnedRecords(t *testing.T) {
	s := openStore(t)
	id := blockHash(1)
	filter := buildFilter(t, id, "script")
	require.NoError(t, s.PutFilter(1, id, filter))
	records, err := s.ReadFilters(1, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, filter, records[0].Filter)
	records[0].Filter[0] ^= 0xff
	again, err := s.ReadFilters(1, 1)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, filter, again[0].Filter)
	assert.Equal(t, id, again[0].BlockId)
}

func TestReadFiltersStopsAtGap(t *testing.T) {
	s := openStore(t)
	for _, height := range []uint64{1, 2, 4} {
		id := blockHash(height)
		require.NoError(t, s.PutFilter(height, id, buildFilter(t, id, "a")))
	}
	records, err := s.ReadFilters(1, 10)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	records, err = s.ReadFilters(3, 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFilterHeightNeverDecreases(t *testing.T) {
	s := openStore(t)
	id := blockHash(10)
	require.NoError(t, s.PutFilter(10, id, buildFilter(t, id, "a")))
	id = blockHash(3)
	require.NoError(t, s.PutFilter(3, id, buildFilter(t, id, "b")))
	height, err := s.FilterHeight()
	require.NoError(t, err)
	assert.Equal(t, uint64(10), height)
}

func TestPutFilterRejectsInvalidFilter(t *testing.T) {
	s := openStore(t)
	for _, data := range [][]byte{nil, {0xff}} {
		err := s.PutFilter(1, blockHash(1), data)
		assert.ErrorIs(t, err, storage.ErrInvalidFilter)
	}
	height, err := s.FilterHeight()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), height)
}

func TestSetChainHeight(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.SetChainHeight(812345))
	height, err := s.ChainHeight()
	require.NoError(t, err)
	assert.Equal(t, uint64(812345), height)
}

func TestWaitFilterHeightChange(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := openStore(t)
	id := blockHash(7)
	filter := buildFilter(t, id, "c")
	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = s.PutFilter(7, id, filter)
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	height, err := s.WaitFilterHeightChange(ctx, 0, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), height)
}

func TestWaitFilterHeightChangeCancel(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	_, err := s.WaitFilterHeightChange(ctx, 0, 5*time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
}

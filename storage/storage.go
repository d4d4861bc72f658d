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

// Package storage implements the filter store read by the sessions and written by the
// external filter builder. It is backed by a single bbolt file.
package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/btcsuite/btcd/btcutil/gcs"
	"github.com/btcsuite/btcd/btcutil/gcs/builder"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/jinzhu/copier"
	bolt "go.etcd.io/bbolt"

	"github.com/hexresearch/ergvein-indexer/cbor"
)

var (
	bucketFilters = []byte("filters")
	bucketMeta    = []byte("meta")

	keyFiltersHeight = []byte("filters_height")
	keyChainHeight   = []byte("chain_height")
)

var ErrInvalidFilter = errors.New("invalid filter")

// FilterRecord is a filter along with the block it was built from
type FilterRecord struct {
	Height  uint64
	BlockId chainhash.Hash
	Filter  []byte
}

type filterRecordCbor struct {
	cbor.StructAsArray
	BlockId [chainhash.HashSize]byte
	Filter  []byte
}

type Store struct {
	db     *bolt.DB
	logger *slog.Logger
}

type OptionFunc func(*Store)

func WithLogger(logger *slog.Logger) OptionFunc {
	return func(s *Store) {
		s.logger = logger
	}
}

// Open opens or creates the store at path
func Open(path string, options ...OptionFunc) (*Store, error) {
	s := &Store{}
	for _, option := range options {
		option(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "storage")
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketFilters, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}
	s.db = db
	s.logger.Debug("opened filter store", "path", path)
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func heightKey(height uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, height)
	return key
}

func (s *Store) readMeta(key []byte) (uint64, error) {
	var ret uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		val := tx.Bucket(bucketMeta).Get(key)
		if val == nil {
			return nil
		}
		if len(val) != 8 {
			return fmt.Errorf("corrupt meta value %q: %d bytes", key, len(val))
		}
		ret = binary.BigEndian.Uint64(val)
		return nil
	})
	return ret, err
}

// FilterHeight is the height of the newest stored filter. It is 0 for an empty store.
func (s *Store) FilterHeight() (uint64, error) {
	return s.readMeta(keyFiltersHeight)
}

// ChainHeight is the height of the chain tip known to the indexer
func (s *Store) ChainHeight() (uint64, error) {
	return s.readMeta(keyChainHeight)
}

func (s *Store) SetChainHeight(height uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(keyChainHeight, heightKey(height))
	})
}

// ReadFilters returns up to count filters in ascending height order starting at start.
// The result stops early at the first missing height.
func (s *Store) ReadFilters(start uint64, count uint32) ([]FilterRecord, error) {
	var ret []FilterRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(bucketFilters).Cursor()
		expected := start
		for k, v := cursor.Seek(heightKey(start)); k != nil && uint32(len(ret)) < count; k, v = cursor.Next() {
			height := binary.BigEndian.Uint64(k)
			if height != expected {
				break
			}
			var tmp filterRecordCbor
			if _, err := cbor.Decode(v, &tmp); err != nil {
				return fmt.Errorf("decode filter at height %d: %w", height, err)
			}
			// Records must not share memory with the value, which is only valid inside the transaction
			record := FilterRecord{Height: height}
			if err := copier.CopyWithOption(&record, &tmp, copier.Option{DeepCopy: true}); err != nil {
				return fmt.Errorf("copy filter at height %d: %w", height, err)
			}
			ret = append(ret, record)
			expected++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// PutFilter stores a BIP158 basic filter for the block at height and advances the filter
// height if needed
func (s *Store) PutFilter(height uint64, blockId chainhash.Hash, filter []byte) error {
	if _, err := gcs.FromNBytes(builder.DefaultP, builder.DefaultM, filter); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFilter, err)
	}
	data, err := cbor.Encode(&filterRecordCbor{BlockId: blockId, Filter: filter})
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketFilters).Put(heightKey(height), data); err != nil {
			return err
		}
		meta := tx.Bucket(bucketMeta)
		current := meta.Get(keyFiltersHeight)
		if current == nil || binary.BigEndian.Uint64(current) < height {
			return meta.Put(keyFiltersHeight, heightKey(height))
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Debug("stored filter", "height", height, "block", blockId.String())
	return nil
}

// WaitFilterHeightChange polls the filter height every poll interval and returns the new
// height once it differs from since
func (s *Store) WaitFilterHeightChange(
	ctx context.Context,
	since uint64,
	poll time.Duration,
) (uint64, error) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-ticker.C:
		}
		height, err := s.FilterHeight()
		if err != nil {
			return 0, err
		}
		if height != since {
			return height, nil
		}
	}
}

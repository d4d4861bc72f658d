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

package ergvein_test

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/hexresearch/ergvein-indexer/storage"
)

// staticStorage serves filters for heights 1 through height and never changes. panicMode
// makes the handshake panic, readPanic makes serving filters panic.
type staticStorage struct {
	height    uint64
	panicMode bool
	readPanic bool
}

func (s *staticStorage) FilterHeight() (uint64, error) {
	if s.panicMode {
		panic("storage exploded")
	}
	return s.height, nil
}

func (s *staticStorage) ChainHeight() (uint64, error) {
	return s.height, nil
}

func (s *staticStorage) ReadFilters(start uint64, count uint32) ([]storage.FilterRecord, error) {
	if s.readPanic {
		panic("filter read exploded")
	}
	var ret []storage.FilterRecord
	for height := max(start, 1); height <= s.height && height < start+uint64(count); height++ {
		ret = append(ret, storage.FilterRecord{
			Height:  height,
			BlockId: chainhash.HashH([]byte{byte(height)}),
			Filter:  []byte{0x00},
		})
	}
	return ret, nil
}

func (s *staticStorage) WaitFilterHeightChange(
	ctx context.Context,
	_ uint64,
	_ time.Duration,
) (uint64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

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

// Package cache holds the fee and exchange rate caches read by every session. The refresh
// jobs that populate them live outside of this module.
package cache

import (
	"sync"

	"github.com/hexresearch/ergvein-indexer/protocol"
)

// Fees are fee rates in satoshis per byte for three confirmation targets
type Fees struct {
	FastestFee  uint64
	HalfHourFee uint64
	HourFee     uint64
}

type FeesCache struct {
	mutex sync.Mutex
	fees  map[protocol.Currency]Fees
}

func NewFeesCache() *FeesCache {
	return &FeesCache{
		fees: make(map[protocol.Currency]Fees),
	}
}

func (c *FeesCache) Set(currency protocol.Currency, fees Fees) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.fees[currency] = fees
}

// Snapshot returns a copy of the fees for currency. The lock is only held for the copy.
func (c *FeesCache) Snapshot(currency protocol.Currency) (Fees, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	fees, ok := c.fees[currency]
	return fees, ok
}

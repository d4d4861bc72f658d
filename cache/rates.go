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

package cache

import (
	"maps"
	"sync"

	"github.com/hexresearch/ergvein-indexer/protocol"
)

type RatesCache struct {
	mutex sync.RWMutex
	rates map[protocol.Currency]map[protocol.Fiat]float64
}

func NewRatesCache() *RatesCache {
	return &RatesCache{
		rates: make(map[protocol.Currency]map[protocol.Fiat]float64),
	}
}

func (c *RatesCache) Set(currency protocol.Currency, fiat protocol.Fiat, rate float64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	fiats, ok := c.rates[currency]
	if !ok {
		fiats = make(map[protocol.Fiat]float64)
		c.rates[currency] = fiats
	}
	fiats[fiat] = rate
}

// Get returns a copy of the fiat rates known for currency. The returned map is owned by
// the caller.
func (c *RatesCache) Get(currency protocol.Currency) (map[protocol.Fiat]float64, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	fiats, ok := c.rates[currency]
	if !ok {
		return nil, false
	}
	return maps.Clone(fiats), true
}

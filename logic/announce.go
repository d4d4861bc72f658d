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
	"fmt"

	"github.com/hexresearch/ergvein-indexer/protocol"
)

// announceLoop pushes the newest filter to the peer every time the filter height moves away
// from the last height the peer was told about
func (e *Engine) announceLoop(ctx context.Context) error {
	since := e.advertisedHeight
	for {
		height, err := e.config.Storage.WaitFilterHeightChange(
			ctx,
			since,
			e.config.AnnouncePollInterval,
		)
		if err != nil {
			if ctx.Err() != nil {
				return abortedError(ctx)
			}
			return fmt.Errorf("%w: %w", ErrStorage, err)
		}
		since = height
		filters, err := e.readFilters(height, 1)
		if err != nil {
			return err
		}
		e.logger.Debug("announcing filter", "height", height)
		if err := e.send(protocol.NewMsgFilters(e.currency, filters)); err != nil {
			return err
		}
	}
}

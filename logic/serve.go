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
	"runtime/debug"
	"sync"
	"time"

	"github.com/hexresearch/ergvein-indexer/protocol"
)

type serveLoop struct {
	name string
	run  func(context.Context) error
}

type serveResult struct {
	name string
	err  error
}

// serve races the connection timeout against the request and announce loops. The first
// loop to finish decides the outcome and the others are cancelled and waited for.
func (e *Engine) serve(ctx context.Context) error {
	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	loops := []serveLoop{
		{name: "timeout", run: e.timeoutLoop},
		{name: "requests", run: e.requestLoop},
		{name: "announce", run: e.announceLoop},
	}
	resultChan := make(chan serveResult, len(loops))
	var wg sync.WaitGroup
	for _, loop := range loops {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resultChan <- serveResult{name: loop.name, err: e.runLoop(serveCtx, loop)}
		}()
	}
	result := <-resultChan
	cancel()
	wg.Wait()
	if result.err != nil {
		return result.err
	}
	if result.name == "timeout" {
		e.logger.Info("connection closed by mandatory timeout")
		return nil
	}
	e.logger.Error("serve loop ended without error", "loop", result.name)
	return fmt.Errorf("%w: %s", ErrLoopEnded, result.name)
}

// runLoop turns a panic in a loop into an error so that only this session ends
func (e *Engine) runLoop(ctx context.Context, loop serveLoop) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error(
				"panic in serve loop",
				"loop", loop.name,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("%w: %s loop: %v", ErrPanic, loop.name, r)
		}
	}()
	return loop.run(ctx)
}

func (e *Engine) timeoutLoop(ctx context.Context) error {
	timer := time.NewTimer(e.config.ConnectionTimeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return abortedError(ctx)
	case <-timer.C:
		return nil
	}
}

// requestLoop answers requests strictly in arrival order
func (e *Engine) requestLoop(ctx context.Context) error {
	for {
		msg, err := e.inbox.Recv(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrInboxClosed
			}
			return abortedError(ctx)
		}
		if err := e.handleRequest(msg); err != nil {
			return err
		}
	}
}

func (e *Engine) handleRequest(msg protocol.Message) error {
	switch msg := msg.(type) {
	case *protocol.MsgGetFilters:
		return e.handleGetFilters(msg)
	case *protocol.MsgPing:
		return e.send(protocol.NewMsgPong(msg.Nonce))
	case *protocol.MsgGetFee:
		return e.handleGetFee(msg)
	case *protocol.MsgGetRates:
		return e.handleGetRates(msg)
	default:
		e.logger.Debug("ignoring message", "type", msg.Type().String())
	}
	return nil
}

func (e *Engine) handleGetFilters(msg *protocol.MsgGetFilters) error {
	e.logger.Debug(
		"filters requested",
		"currency", msg.Currency.String(),
		"start", msg.Start,
		"amount", msg.Amount,
	)
	if !e.supported(msg.Currency) {
		reject := protocol.NewMsgReject(
			protocol.MessageTypeGetFilters,
			protocol.RejectInternalError,
			"Not supported currency "+msg.Currency.String(),
		)
		if err := e.send(reject); err != nil {
			return err
		}
		return &UnsupportedCurrencyError{Currency: msg.Currency}
	}
	height, err := e.config.Storage.FilterHeight()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	var filters []protocol.Filter
	if msg.Start <= height {
		count := min(msg.Amount, e.config.MaxFilters)
		if available := height - msg.Start + 1; available < uint64(count) {
			// #nosec G115
			count = uint32(available)
		}
		if count > 0 {
			filters, err = e.readFilters(msg.Start, count)
			if err != nil {
				return err
			}
		}
		e.config.Metrics.AddFiltersServed(len(filters))
		e.logger.Debug("sending filters", "count", len(filters), "start", msg.Start)
	}
	return e.send(protocol.NewMsgFilters(msg.Currency, filters))
}

func (e *Engine) readFilters(start uint64, count uint32) ([]protocol.Filter, error) {
	records, err := e.config.Storage.ReadFilters(start, count)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	filters := make([]protocol.Filter, 0, len(records))
	for i := range records {
		filters = append(filters, protocol.Filter{
			BlockId: records[i].BlockId[:],
			Filter:  records[i].Filter,
		})
	}
	return filters, nil
}

// handleGetFee answers every requested entry of a supported currency that has fees cached,
// so a repeated currency is answered repeatedly. Unsupported currencies are left out.
func (e *Engine) handleGetFee(msg *protocol.MsgGetFee) error {
	var resps []protocol.FeeResp
	for _, currency := range msg.Currencies {
		if !e.supported(currency) || e.config.Fees == nil {
			continue
		}
		fees, ok := e.config.Fees.Snapshot(currency)
		if !ok {
			continue
		}
		resps = append(resps, protocol.FeeResp{
			Currency: currency,
			Fees: protocol.FeeBtc{
				FastConserv:     fees.FastestFee,
				FastEconom:      fees.FastestFee,
				ModerateConserv: fees.HalfHourFee,
				ModerateEconom:  fees.HalfHourFee,
				CheapConserv:    fees.HourFee,
				CheapEconom:     fees.HourFee,
			},
		})
	}
	return e.send(protocol.NewMsgFee(resps))
}

// handleGetRates answers with one entry per supported currency present in the rates cache,
// holding the requested fiats that have a rate
func (e *Engine) handleGetRates(msg *protocol.MsgGetRates) error {
	var resps []protocol.RateResp
	for _, req := range msg.Requests {
		if !e.supported(req.Currency) || e.config.Rates == nil {
			continue
		}
		rates, ok := e.config.Rates.Get(req.Currency)
		if !ok {
			continue
		}
		fiatRates := []protocol.FiatRate{}
		for _, fiat := range req.Fiats {
			if rate, ok := rates[fiat]; ok {
				fiatRates = append(fiatRates, protocol.FiatRate{Fiat: fiat, Rate: rate})
			}
		}
		resps = append(resps, protocol.RateResp{Currency: req.Currency, Rates: fiatRates})
	}
	return e.send(protocol.NewMsgRates(resps))
}

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

package protocol

import "fmt"

type Currency uint32

const (
	CurrencyBtc       Currency = 0
	CurrencyTBtc      Currency = 1
	CurrencyErgo      Currency = 2
	CurrencyTErgo     Currency = 3
	CurrencyUsdtOmni  Currency = 4
	CurrencyTUsdtOmni Currency = 5
)

func (c Currency) String() string {
	switch c {
	case CurrencyBtc:
		return "BTC"
	case CurrencyTBtc:
		return "TBTC"
	case CurrencyErgo:
		return "ERGO"
	case CurrencyTErgo:
		return "TERGO"
	case CurrencyUsdtOmni:
		return "USDTO"
	case CurrencyTUsdtOmni:
		return "TUSDTO"
	}
	return fmt.Sprintf("Currency(%d)", uint32(c))
}

type Fiat uint32

const (
	FiatUsd Fiat = 0
	FiatEur Fiat = 1
	FiatRub Fiat = 2
)

func (f Fiat) String() string {
	switch f {
	case FiatUsd:
		return "USD"
	case FiatEur:
		return "EUR"
	case FiatRub:
		return "RUB"
	}
	return fmt.Sprintf("Fiat(%d)", uint32(f))
}

// RejectData classifies why a request was rejected
type RejectData uint32

const (
	RejectZeroBytesReceived  RejectData = 0
	RejectHeaderParsing      RejectData = 1
	RejectIncorrectChecksum  RejectData = 2
	RejectIncorrectMagic     RejectData = 3
	RejectMessageParsing     RejectData = 4
	RejectIncorrectHandshake RejectData = 5
	RejectInternalError      RejectData = 6
)

func (r RejectData) String() string {
	switch r {
	case RejectZeroBytesReceived:
		return "zero bytes received"
	case RejectHeaderParsing:
		return "header parsing"
	case RejectIncorrectChecksum:
		return "incorrect checksum"
	case RejectIncorrectMagic:
		return "incorrect magic"
	case RejectMessageParsing:
		return "message parsing"
	case RejectIncorrectHandshake:
		return "incorrect handshake"
	case RejectInternalError:
		return "internal error"
	}
	return fmt.Sprintf("RejectData(%d)", uint32(r))
}

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

import (
	"fmt"

	"github.com/hexresearch/ergvein-indexer/cbor"
)

// NonceSize is the length of the random handshake nonce
const NonceSize = 8

// NewMsgFromCbor decodes the CBOR payload of a message of the given type
func NewMsgFromCbor(msgType MessageType, data []byte) (Message, error) {
	var ret Message
	switch msgType {
	case MessageTypeVersion:
		ret = &MsgVersion{}
	case MessageTypeVersionAck:
		ret = &MsgVersionAck{}
	case MessageTypeGetFilters:
		ret = &MsgGetFilters{}
	case MessageTypeFilters:
		ret = &MsgFilters{}
	case MessageTypePing:
		ret = &MsgPing{}
	case MessageTypePong:
		ret = &MsgPong{}
	case MessageTypeGetFee:
		ret = &MsgGetFee{}
	case MessageTypeFee:
		ret = &MsgFee{}
	case MessageTypeGetRates:
		ret = &MsgGetRates{}
	case MessageTypeRates:
		ret = &MsgRates{}
	case MessageTypeReject:
		ret = &MsgReject{}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMessageType, uint32(msgType))
	}
	if _, err := cbor.Decode(data, ret); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMessageDecode, msgType, err)
	}
	if ret.Type() != msgType {
		return nil, fmt.Errorf(
			"%w: payload carries type %s, expected %s",
			ErrMessageDecode,
			ret.Type(),
			msgType,
		)
	}
	// Store the raw message CBOR
	ret.SetCbor(data)
	return ret, nil
}

// ScanBlock describes how far the indexer got for a single currency
type ScanBlock struct {
	cbor.StructAsArray
	Currency   Currency
	Version    Version
	ScanHeight uint64
	Height     uint64
}

type MsgVersion struct {
	MessageBase
	Version    Version
	Time       uint64
	Nonce      [NonceSize]byte
	ScanBlocks []ScanBlock
}

func NewMsgVersion(
	version Version,
	time uint64,
	nonce [NonceSize]byte,
	scanBlocks []ScanBlock,
) *MsgVersion {
	m := &MsgVersion{
		MessageBase: MessageBase{
			MessageType: MessageTypeVersion,
		},
		Version:    version,
		Time:       time,
		Nonce:      nonce,
		ScanBlocks: scanBlocks,
	}
	return m
}

type MsgVersionAck struct {
	MessageBase
}

func NewMsgVersionAck() *MsgVersionAck {
	m := &MsgVersionAck{
		MessageBase: MessageBase{
			MessageType: MessageTypeVersionAck,
		},
	}
	return m
}

type MsgGetFilters struct {
	MessageBase
	Currency Currency
	Start    uint64
	Amount   uint32
}

func NewMsgGetFilters(currency Currency, start uint64, amount uint32) *MsgGetFilters {
	m := &MsgGetFilters{
		MessageBase: MessageBase{
			MessageType: MessageTypeGetFilters,
		},
		Currency: currency,
		Start:    start,
		Amount:   amount,
	}
	return m
}

// Filter is a compact block filter identified by the block it was built from
type Filter struct {
	cbor.StructAsArray
	BlockId []byte
	Filter  []byte
}

type MsgFilters struct {
	MessageBase
	Currency Currency
	Filters  []Filter
}

// NewMsgFilters builds a filters response. A nil filter list is sent as an empty list.
func NewMsgFilters(currency Currency, filters []Filter) *MsgFilters {
	if filters == nil {
		filters = []Filter{}
	}
	m := &MsgFilters{
		MessageBase: MessageBase{
			MessageType: MessageTypeFilters,
		},
		Currency: currency,
		Filters:  filters,
	}
	return m
}

type MsgPing struct {
	MessageBase
	Nonce uint64
}

func NewMsgPing(nonce uint64) *MsgPing {
	m := &MsgPing{
		MessageBase: MessageBase{
			MessageType: MessageTypePing,
		},
		Nonce: nonce,
	}
	return m
}

type MsgPong struct {
	MessageBase
	Nonce uint64
}

func NewMsgPong(nonce uint64) *MsgPong {
	m := &MsgPong{
		MessageBase: MessageBase{
			MessageType: MessageTypePong,
		},
		Nonce: nonce,
	}
	return m
}

type MsgGetFee struct {
	MessageBase
	Currencies []Currency
}

func NewMsgGetFee(currencies []Currency) *MsgGetFee {
	m := &MsgGetFee{
		MessageBase: MessageBase{
			MessageType: MessageTypeGetFee,
		},
		Currencies: currencies,
	}
	return m
}

// FeeBtc carries fee rates in satoshis per byte for the three confirmation targets
type FeeBtc struct {
	cbor.StructAsArray
	FastConserv     uint64
	FastEconom      uint64
	ModerateConserv uint64
	ModerateEconom  uint64
	CheapConserv    uint64
	CheapEconom     uint64
}

type FeeResp struct {
	cbor.StructAsArray
	Currency Currency
	Fees     FeeBtc
}

type MsgFee struct {
	MessageBase
	Fees []FeeResp
}

func NewMsgFee(fees []FeeResp) *MsgFee {
	if fees == nil {
		fees = []FeeResp{}
	}
	m := &MsgFee{
		MessageBase: MessageBase{
			MessageType: MessageTypeFee,
		},
		Fees: fees,
	}
	return m
}

type RateRequest struct {
	cbor.StructAsArray
	Currency Currency
	Fiats    []Fiat
}

type FiatRate struct {
	cbor.StructAsArray
	Fiat Fiat
	Rate float64
}

type RateResp struct {
	cbor.StructAsArray
	Currency Currency
	Rates    []FiatRate
}

type MsgGetRates struct {
	MessageBase
	Requests []RateRequest
}

func NewMsgGetRates(requests []RateRequest) *MsgGetRates {
	m := &MsgGetRates{
		MessageBase: MessageBase{
			MessageType: MessageTypeGetRates,
		},
		Requests: requests,
	}
	return m
}

type MsgRates struct {
	MessageBase
	Rates []RateResp
}

func NewMsgRates(rates []RateResp) *MsgRates {
	if rates == nil {
		rates = []RateResp{}
	}
	m := &MsgRates{
		MessageBase: MessageBase{
			MessageType: MessageTypeRates,
		},
		Rates: rates,
	}
	return m
}

type MsgReject struct {
	MessageBase
	Id      MessageType
	Data    RejectData
	Message string
}

func NewMsgReject(id MessageType, data RejectData, message string) *MsgReject {
	m := &MsgReject{
		MessageBase: MessageBase{
			MessageType: MessageTypeReject,
		},
		Id:      id,
		Data:    data,
		Message: message,
	}
	return m
}

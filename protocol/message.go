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

// MessageType identifies the payload carried by a frame
type MessageType uint32

const (
	MessageTypeVersion    MessageType = 0
	MessageTypeVersionAck MessageType = 1
	MessageTypeGetFilters MessageType = 2
	MessageTypeFilters    MessageType = 3
	MessageTypePing       MessageType = 4
	MessageTypePong       MessageType = 5
	MessageTypeGetFee     MessageType = 6
	MessageTypeFee        MessageType = 7
	MessageTypeGetRates   MessageType = 8
	MessageTypeRates      MessageType = 9
	MessageTypeReject     MessageType = 10
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeVersion:
		return "Version"
	case MessageTypeVersionAck:
		return "VersionAck"
	case MessageTypeGetFilters:
		return "GetFilters"
	case MessageTypeFilters:
		return "Filters"
	case MessageTypePing:
		return "Ping"
	case MessageTypePong:
		return "Pong"
	case MessageTypeGetFee:
		return "GetFee"
	case MessageTypeFee:
		return "Fee"
	case MessageTypeGetRates:
		return "GetRates"
	case MessageTypeRates:
		return "Rates"
	case MessageTypeReject:
		return "Reject"
	}
	return fmt.Sprintf("Unknown(%d)", uint32(t))
}

// Provide a common interface for message utility functions
type Message interface {
	SetCbor([]byte)
	Cbor() []byte
	Type() MessageType
}

// MessageBase is embedded in every message. The message type is the first element of the
// CBOR array, mirroring the type carried in the frame header.
type MessageBase struct {
	// Tells the CBOR decoder to convert to/from a struct and a CBOR array
	_           struct{} `cbor:",toarray"`
	rawCbor     []byte
	MessageType MessageType
}

func (m *MessageBase) SetCbor(data []byte) {
	if data == nil {
		m.rawCbor = nil
		return
	}
	m.rawCbor = make([]byte, len(data))
	copy(m.rawCbor, data)
}

func (m *MessageBase) Cbor() []byte {
	return m.rawCbor
}

func (m *MessageBase) Type() MessageType {
	return m.MessageType
}

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

package walletmock

import (
	"github.com/hexresearch/ergvein-indexer/protocol"
)

// MockNonce is the nonce sent by the mock wallet in its version message
var MockNonce = [protocol.NonceSize]byte{0xde, 0xad, 0xbe, 0xef, 0xca, 0xfe, 0xba, 0xbe}

type EntryType int

const (
	EntryTypeNone   EntryType = 0
	EntryTypeInput  EntryType = 1
	EntryTypeOutput EntryType = 2
	EntryTypeClose  EntryType = 3
	// EntryTypeExpectClose waits for the indexer to close the connection
	EntryTypeExpectClose EntryType = 4
)

type ConversationEntry struct {
	Type             EntryType
	OutputMessages   []protocol.Message
	OutputRaw        []byte
	InputMessage     protocol.Message
	InputMessageType protocol.MessageType
}

// ConversationEntryVersion matches the version message sent by the indexer on connect
var ConversationEntryVersion = ConversationEntry{
	Type:             EntryTypeInput,
	InputMessageType: protocol.MessageTypeVersion,
}

// ConversationEntryVersionAck matches the indexer acknowledging our version
var ConversationEntryVersionAck = ConversationEntry{
	Type:             EntryTypeInput,
	InputMessageType: protocol.MessageTypeVersionAck,
}

// ConversationEntryHandshakeResponse sends our version and acknowledges the indexer's one
var ConversationEntryHandshakeResponse = ConversationEntry{
	Type: EntryTypeOutput,
	OutputMessages: []protocol.Message{
		protocol.NewMsgVersion(protocol.CurrentVersion, 0, MockNonce, nil),
		protocol.NewMsgVersionAck(),
	},
}

// ConversationHandshake is a complete handshake from the wallet side
var ConversationHandshake = []ConversationEntry{
	ConversationEntryVersion,
	ConversationEntryHandshakeResponse,
	ConversationEntryVersionAck,
}

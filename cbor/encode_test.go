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

package cbor_test

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexresearch/ergvein-indexer/cbor"
)

type testRecord struct {
	cbor.StructAsArray
	Height uint64
	Data   []byte
}

type testBlockRecord struct {
	cbor.StructAsArray
	BlockId [4]byte
}

func TestEncode(t *testing.T) {
	testDefs := []struct {
		name    string
		object  any
		cborHex string
	}{
		{name: "list of numbers", object: []any{1, 2, 3}, cborHex: "83010203"},
		{
			name:    "struct as array",
			object:  testRecord{Height: 100, Data: []byte{1, 2, 3}},
			cborHex: "82186443010203",
		},
		{
			name:    "sorted map keys",
			object:  map[int]string{2: "b", 1: "a"},
			cborHex: "a2016161026162",
		},
		{
			name:    "byte array as byte string",
			object:  testBlockRecord{BlockId: [4]byte{0xde, 0xad, 0xbe, 0xef}},
			cborHex: "8144deadbeef",
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			cborData, err := cbor.Encode(testDef.object)
			require.NoError(t, err)
			assert.Equal(t, testDef.cborHex, hex.EncodeToString(cborData))
		})
	}
}

func TestEncodeDecodeByteArray(t *testing.T) {
	cborData, err := cbor.Encode(testBlockRecord{BlockId: [4]byte{1, 2, 3, 4}})
	require.NoError(t, err)
	var dest testBlockRecord
	_, err = cbor.Decode(cborData, &dest)
	require.NoError(t, err)
	assert.Equal(t, [4]byte{1, 2, 3, 4}, dest.BlockId)
}

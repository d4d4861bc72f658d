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

package cbor

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sync"

	_cbor "github.com/fxamacker/cbor/v2"
)

var (
	ErrEmptyData = errors.New("empty CBOR data")
	ErrNotList   = errors.New("CBOR item is not a list")
	ErrEmptyList = errors.New("CBOR list is empty")
)

// Limits for data received from peers
const (
	maxNestedLevels  = 16
	maxArrayElements = 65536
)

var decMode = sync.OnceValues(func() (_cbor.DecMode, error) {
	return _cbor.DecOptions{
		ExtraReturnErrors: _cbor.ExtraDecErrorUnknownField,
		MaxNestedLevels:   maxNestedLevels,
		MaxArrayElements:  maxArrayElements,
		MaxMapPairs:       maxArrayElements,
	}.DecMode()
})

// Decode decodes the first CBOR item in data into dest and returns the number of bytes consumed
func Decode(data []byte, dest any) (int, error) {
	dm, err := decMode()
	if err != nil {
		return 0, err
	}
	dec := dm.NewDecoder(bytes.NewReader(data))
	err = dec.Decode(dest)
	return dec.NumBytesRead(), err
}

// ListLength returns the number of items in the CBOR list at the start of data
func ListLength(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, ErrEmptyData
	}
	if data[0]&CborTypeMask != CborTypeArray {
		return 0, ErrNotList
	}
	info := data[0] &^ CborTypeMask
	var length uint64
	switch {
	case info <= CborMaxUintSimple:
		return int(info), nil
	case info == 24 && len(data) >= 2:
		length = uint64(data[1])
	case info == 25 && len(data) >= 3:
		length = uint64(binary.BigEndian.Uint16(data[1:3]))
	case info == 26 && len(data) >= 5:
		length = uint64(binary.BigEndian.Uint32(data[1:5]))
	default:
		// Indefinite length and 8 byte lengths need a full decode
		var tmp []RawMessage
		if _, err := Decode(data, &tmp); err != nil {
			return 0, err
		}
		return len(tmp), nil
	}
	if length > maxArrayElements {
		return 0, errors.New("CBOR list too long")
	}
	return int(length), nil
}

// MessageId returns the unsigned integer at the head of a CBOR list. Every protocol
// message carries its type there.
func MessageId(data []byte) (uint64, error) {
	listLen, err := ListLength(data)
	if err != nil {
		return 0, err
	}
	if listLen == 0 {
		return 0, ErrEmptyList
	}
	// Small lists that start with a small uint are the common case
	if data[0]&^CborTypeMask <= CborMaxUintSimple && len(data) > 1 &&
		data[1] <= CborMaxUintSimple {
		return uint64(data[1]), nil
	}
	var items []RawMessage
	if _, err := Decode(data, &items); err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, ErrEmptyList
	}
	var id uint64
	if _, err := Decode(items[0], &id); err != nil {
		return 0, err
	}
	return id, nil
}

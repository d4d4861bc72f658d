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

// Package cbor wraps github.com/fxamacker/cbor/v2 with the encoding conventions used on the
// wire and in storage.
//
// Messages and records are structs encoded as CBOR arrays. Embed StructAsArray (or a type
// that carries the toarray option) to get that behavior:
//
//	type Record struct {
//	    cbor.StructAsArray
//	    Height uint64
//	    Data   []byte
//	}
//
// Encoding uses core deterministic ordering, so equal values always produce equal bytes.
package cbor

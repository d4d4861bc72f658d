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

package protocol_test

import (
	"testing"

	"github.com/hexresearch/ergvein-indexer/protocol"
)

func TestCompatible(t *testing.T) {
	testDefs := []struct {
		local    protocol.Version
		remote   protocol.Version
		expected bool
	}{
		{
			local:    protocol.Version{Major: 1, Minor: 0, Patch: 0},
			remote:   protocol.Version{Major: 1, Minor: 0, Patch: 0},
			expected: true,
		},
		{
			local:    protocol.Version{Major: 1, Minor: 0, Patch: 0},
			remote:   protocol.Version{Major: 1, Minor: 4, Patch: 2},
			expected: true,
		},
		{
			local:    protocol.Version{Major: 1, Minor: 0, Patch: 0},
			remote:   protocol.Version{Major: 2, Minor: 0, Patch: 0},
			expected: false,
		},
		{
			local:    protocol.Version{Major: 0, Minor: 3, Patch: 0},
			remote:   protocol.Version{Major: 0, Minor: 3, Patch: 9},
			expected: true,
		},
		{
			local:    protocol.Version{Major: 0, Minor: 3, Patch: 0},
			remote:   protocol.Version{Major: 0, Minor: 4, Patch: 0},
			expected: false,
		},
	}
	for _, testDef := range testDefs {
		if got := protocol.Compatible(testDef.local, testDef.remote); got != testDef.expected {
			t.Errorf(
				"Compatible(%s, %s) = %v, expected %v",
				testDef.local,
				testDef.remote,
				got,
				testDef.expected,
			)
		}
	}
}

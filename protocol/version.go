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

// Version is a semantic protocol version
type Version struct {
	cbor.StructAsArray
	Major uint16
	Minor uint16
	Patch uint16
}

// CurrentVersion is the protocol version spoken by this indexer
var CurrentVersion = Version{Major: 1, Minor: 0, Patch: 0}

// FilterVersion is the version of the filter format announced for each currency
var FilterVersion = Version{Major: 1, Minor: 0, Patch: 0}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compatible reports whether a peer speaking remote can talk to a node speaking local.
// Major versions must match. While the major version is 0 the minor version must match too.
// Patch versions never affect compatibility.
func Compatible(local, remote Version) bool {
	if local.Major != remote.Major {
		return false
	}
	if local.Major == 0 && local.Minor != remote.Minor {
		return false
	}
	return true
}

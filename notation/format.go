// Copyright 2024 Google LLC
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

package notation

import "github.com/pkg/errors"

// Format is a tensor's storage description: an ordered sequence of
// per-dimension Levels (storage order) plus the permutation from storage
// order to logical dimension order. ModeOrder[i] is the logical dimension
// stored at storage position i — e.g. a row-major dense matrix has
// ModeOrder [0,1]; CSC instead of CSR would have ModeOrder [1,0].
type Format struct {
	Levels    []Level
	ModeOrder []int
}

// NewFormat builds a Format, validating that ModeOrder is a permutation
// of [0, len(levels)) and that every level kind is implemented.
func NewFormat(levels []Level, modeOrder []int) (Format, error) {
	if len(modeOrder) != len(levels) {
		return Format{}, errors.Errorf(
			"format has %d levels but a mode order of length %d", len(levels), len(modeOrder))
	}
	seen := make([]bool, len(modeOrder))
	for _, m := range modeOrder {
		if m < 0 || m >= len(seen) || seen[m] {
			return Format{}, errors.Errorf("mode order %v is not a permutation of [0,%d)", modeOrder, len(levels))
		}
		seen[m] = true
	}
	for i, lvl := range levels {
		if !lvl.Kind.Implemented() {
			return Format{}, errors.Errorf("level %d has unsupported kind %s", i, lvl.Kind)
		}
	}
	return Format{Levels: levels, ModeOrder: modeOrder}, nil
}

// RowMajor builds a Format whose storage order matches logical dimension
// order, one Level per kind given.
func RowMajor(kinds ...LevelKind) Format {
	levels := make([]Level, len(kinds))
	order := make([]int, len(kinds))
	for i, k := range kinds {
		levels[i] = Level{Kind: k}
		order[i] = i
	}
	return Format{Levels: levels, ModeOrder: order}
}

// Rank returns the number of dimensions described by the format.
func (f Format) Rank() int { return len(f.Levels) }

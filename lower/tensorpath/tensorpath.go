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

// Package tensorpath builds, for a single access into a tensor, the
// ordered sequence of (level, index variable) steps that the lowering
// engine walks to descend through that tensor's storage. It is the
// bridge between index-notation Access nodes (logical dimension order)
// and a tensor's physical storage order.
package tensorpath

import (
	"github.com/sparsealg/taco/notation"
)

// Step is one level of a tensor path: the storage level at this
// position plus the index variable that ranges over it.
type Step struct {
	Level  notation.Level
	IdxVar notation.IndexVar
}

// Path is the ordered list of steps for one access, in storage order
// (step 0 is the outermost, slowest-varying level).
type Path struct {
	Access *notation.Access
	Steps  []Step
}

// Make builds the tensor path for an access, walking the access's
// index-variable list in storage order: the format's ModeOrder gives,
// for each storage position, which logical dimension (and therefore
// which element of access.Vars) is bound at that level.
func Make(access *notation.Access) Path {
	format := access.Tensor.Format
	steps := make([]Step, format.Rank())
	for storagePos, logicalDim := range format.ModeOrder {
		steps[storagePos] = Step{
			Level:  format.Levels[storagePos],
			IdxVar: access.Vars[logicalDim],
		}
	}
	return Path{Access: access, Steps: steps}
}

// Len returns the number of levels in the path.
func (p Path) Len() int { return len(p.Steps) }

// StepOf returns the step that binds v, and whether v appears in this
// path at all. A variable appears in at most one step since a tensor's
// format assigns each logical dimension to exactly one storage level.
func (p Path) StepOf(v notation.IndexVar) (int, bool) {
	for i, s := range p.Steps {
		if s.IdxVar == v {
			return i, true
		}
	}
	return 0, false
}

// Variables returns the path's index variables in storage order.
func (p Path) Variables() []notation.IndexVar {
	out := make([]notation.IndexVar, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.IdxVar
	}
	return out
}

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

import "fmt"

// Property is a bit set of the computations a lowering call is asked to
// perform for an Assignment. A caller typically asks for Assemble and
// Compute together; Print is used to request debug IR dumps alongside
// either.
type Property uint8

const (
	// Assemble builds the result tensor's sparse structure (its position
	// and coordinate arrays) without necessarily computing values.
	Assemble Property = 1 << iota
	// Compute fills in the result tensor's values array, assuming its
	// structure already exists (or is being assembled in the same pass).
	Compute
	// Accumulate means the result tensor already holds a partial value at
	// every location the assignment writes to, so stores must add into it
	// rather than overwrite it. Implied automatically whenever the
	// assignment's top-level operator is +=.
	Accumulate
	// Print requests a human-readable form of the emitted IR. Lower
	// accepts the bit but does not act on it; the returned Function's
	// String method renders the IR on demand.
	Print
)

// Has reports whether ps contains every bit in p.
func (ps Property) Has(p Property) bool { return ps&p == p }

// Assignment binds a result TensorVar access to the index-notation
// expression that computes it, e.g. A(i,j) = B(i,k) * C(k,j). Properties
// records which of Assemble/Compute/Accumulate/Print a lowering call
// should perform for it.
type Assignment struct {
	Lhs        *Access
	Rhs        IndexExpr
	Properties Property
}

// NewAssignment returns an assignment of rhs to lhs with the given
// properties, deriving Accumulate automatically when accumulate is true
// (the caller's += vs = distinction at the notation layer).
func NewAssignment(lhs *Access, rhs IndexExpr, properties Property, accumulate bool) *Assignment {
	if accumulate {
		properties |= Accumulate
	}
	a := &Assignment{Lhs: lhs, Rhs: rhs, Properties: properties}
	lhs.Tensor.SetAssignment(a)
	return a
}

// FreeVars returns the index variables appearing on the left-hand side,
// in access order. Every free variable of the right-hand side that is
// not one of these is, by definition, a reduction variable of this
// assignment.
func (a *Assignment) FreeVars() []IndexVar { return a.Lhs.Vars }

// ReductionVars returns the index variables used on the right-hand side
// but not on the left-hand side, in first-seen order.
func (a *Assignment) ReductionVars() []IndexVar {
	free := map[IndexVar]bool{}
	for _, v := range a.FreeVars() {
		free[v] = true
	}
	var out []IndexVar
	seen := map[IndexVar]bool{}
	for _, v := range Vars(a.Rhs) {
		if free[v] || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func (a *Assignment) String() string {
	op := "="
	if a.Properties.Has(Accumulate) {
		op = "+="
	}
	return fmt.Sprintf("%s %s %s", a.Lhs, op, a.Rhs)
}

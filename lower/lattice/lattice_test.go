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

package lattice_test

import (
	"testing"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/backend/shape"

	"github.com/sparsealg/taco/ir"
	"github.com/sparsealg/taco/lower/iterators"
	"github.com/sparsealg/taco/lower/lattice"
	"github.com/sparsealg/taco/lower/tensorpath"
	"github.com/sparsealg/taco/notation"
)

type seqNames struct{}

func (seqNames) Name(root string) string { return root }

func sparseVec(name string) *notation.TensorVar {
	return notation.NewTensorVar(name, &shape.Shape{DType: dtype.Float64, AxisLengths: []int{5}}, notation.RowMajor(notation.Sparse))
}

func denseVec(name string) *notation.TensorVar {
	return notation.NewTensorVar(name, &shape.Shape{DType: dtype.Float64, AxisLengths: []int{5}}, notation.RowMajor(notation.Dense))
}

// y(i) = B(i) + C(i), both sparse: union lattice with 3 points.
func TestUnionLatticeHasThreePoints(t *testing.T) {
	i := notation.New("i")
	b, c := sparseVec("B"), sparseVec("C")
	bAcc, cAcc := notation.NewAccess(b, i), notation.NewAccess(c, i)
	rhs := &notation.AddExpr{A: bAcc, B: cAcc}

	its := iterators.New(seqNames{})
	bIter := its.AddPath(tensorpath.Make(bAcc), ir.TensorVar("B", dtype.Float64), false)[0]
	cIter := its.AddPath(tensorpath.Make(cAcc), ir.TensorVar("C", dtype.Float64), false)[0]

	lat := lattice.Make(i, rhs, func(a *notation.Access) iterators.Iterator {
		if a == bAcc {
			return bIter
		}
		return cIter
	})

	if len(lat.Points) != 3 {
		t.Fatalf("got %d points, want 3 (B alone, C alone, B+C)", len(lat.Points))
	}
	top := lat.Top()
	if len(top.Range) != 2 {
		t.Errorf("top point should range over both iterators, got %d", len(top.Range))
	}
}

// a = b(i) * c(i), one dense one sparse: intersection lattice has 1 point.
func TestIntersectionLatticeHasOnePoint(t *testing.T) {
	i := notation.New("i")
	b, c := denseVec("B"), sparseVec("C")
	bAcc, cAcc := notation.NewAccess(b, i), notation.NewAccess(c, i)
	rhs := &notation.MulExpr{A: bAcc, B: cAcc}

	its := iterators.New(seqNames{})
	bIter := its.AddPath(tensorpath.Make(bAcc), ir.TensorVar("B", dtype.Float64), false)[0]
	cIter := its.AddPath(tensorpath.Make(cAcc), ir.TensorVar("C", dtype.Float64), false)[0]

	lat := lattice.Make(i, rhs, func(a *notation.Access) iterators.Iterator {
		if a == bAcc {
			return bIter
		}
		return cIter
	})

	if len(lat.Points) != 1 {
		t.Fatalf("got %d points, want 1", len(lat.Points))
	}
}

// Dense's Locate capability demotes it out of the range set when
// co-iterating with a sparse operand.
func TestDenseIteratorDemotedToLocate(t *testing.T) {
	i := notation.New("i")
	b, c := denseVec("B"), sparseVec("C")
	bAcc, cAcc := notation.NewAccess(b, i), notation.NewAccess(c, i)
	rhs := &notation.AddExpr{A: bAcc, B: cAcc}

	its := iterators.New(seqNames{})
	bIter := its.AddPath(tensorpath.Make(bAcc), ir.TensorVar("B", dtype.Float64), false)[0]
	cIter := its.AddPath(tensorpath.Make(cAcc), ir.TensorVar("C", dtype.Float64), false)[0]

	lat := lattice.Make(i, rhs, func(a *notation.Access) iterators.Iterator {
		if a == bAcc {
			return bIter
		}
		return cIter
	})

	top := lat.Top()
	if len(top.Range) != 1 || top.Range[0] != cIter {
		t.Errorf("top.Range = %v, want only the sparse iterator (dense demoted)", top.Range)
	}
	if len(top.Locate) != 1 || top.Locate[0] != bIter {
		t.Errorf("top.Locate = %v, want the dense iterator", top.Locate)
	}
}

func TestSwitchMergeEligibleOnFourWayUnion(t *testing.T) {
	i := notation.New("i")
	names := []string{"A", "B", "C", "D"}
	var accs []*notation.Access
	iterOfAcc := map[*notation.Access]iterators.Iterator{}
	its := iterators.New(seqNames{})
	for _, n := range names {
		tv := sparseVec(n)
		acc := notation.NewAccess(tv, i)
		accs = append(accs, acc)
		it := its.AddPath(tensorpath.Make(acc), ir.TensorVar(n, dtype.Float64), false)[0]
		iterOfAcc[acc] = it
	}
	rhs := notation.IndexExpr(accs[0])
	for _, acc := range accs[1:] {
		rhs = &notation.AddExpr{A: rhs, B: acc}
	}

	lat := lattice.Make(i, rhs, func(a *notation.Access) iterators.Iterator { return iterOfAcc[a] })
	if !lat.SwitchMergeEligible() {
		t.Error("a 4-way sparse union should be switch-merge eligible (2^4-1=15 points)")
	}
	if len(lat.Points) != 15 {
		t.Errorf("got %d points, want 15", len(lat.Points))
	}
}

func TestExhaustedIteratorsIsTopMinusSub(t *testing.T) {
	i := notation.New("i")
	b, c := sparseVec("B"), sparseVec("C")
	bAcc, cAcc := notation.NewAccess(b, i), notation.NewAccess(c, i)
	its := iterators.New(seqNames{})
	bIter := its.AddPath(tensorpath.Make(bAcc), ir.TensorVar("B", dtype.Float64), false)[0]
	cIter := its.AddPath(tensorpath.Make(cAcc), ir.TensorVar("C", dtype.Float64), false)[0]

	top := lattice.Point{Range: []iterators.Iterator{bIter, cIter}}
	sub := lattice.Point{Range: []iterators.Iterator{bIter}}
	exhausted := lattice.ExhaustedIterators(top, sub)
	if len(exhausted) != 1 || exhausted[0] != cIter {
		t.Errorf("ExhaustedIterators = %v, want [cIter]", exhausted)
	}
}

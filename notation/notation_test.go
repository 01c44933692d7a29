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

package notation_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/backend/shape"

	"github.com/sparsealg/taco/notation"
)

func vec(name string, kind notation.LevelKind) *notation.TensorVar {
	return notation.NewTensorVar(name, &shape.Shape{DType: dtype.Float64, AxisLengths: []int{10}}, notation.RowMajor(kind))
}

func TestFormatRejectsBadModeOrder(t *testing.T) {
	_, err := notation.NewFormat([]notation.Level{{Kind: notation.Dense}, {Kind: notation.Sparse}}, []int{0, 0})
	if err == nil {
		t.Fatal("expected an error for a non-permutation mode order")
	}
}

func TestFormatRejectsUnimplementedKind(t *testing.T) {
	_, err := notation.NewFormat([]notation.Level{{Kind: notation.Offset}}, []int{0})
	if err == nil {
		t.Fatal("expected an error for an unimplemented level kind")
	}
}

func TestLevelCapabilitiesNonUniqueDropsUnique(t *testing.T) {
	unique := notation.Level{Kind: notation.Sparse}
	dup := notation.Level{Kind: notation.Sparse, NonUnique: true}
	if !unique.Capabilities().Has(notation.Unique) {
		t.Error("plain sparse level should be Unique")
	}
	if dup.Capabilities().Has(notation.Unique) {
		t.Error("non-unique sparse level should not report Unique")
	}
}

func TestAssignmentReductionVars(t *testing.T) {
	i, j, k := notation.New("i"), notation.New("j"), notation.New("k")
	b := vec("B", notation.Dense)
	c := vec("C", notation.Dense)
	a := vec("A", notation.Dense)

	rhs := &notation.MulExpr{
		A: notation.NewAccess(b, i, k),
		B: notation.NewAccess(c, k, j),
	}
	assign := notation.NewAssignment(notation.NewAccess(a, i, j), rhs, notation.Compute, false)

	if diff := cmp.Diff([]notation.IndexVar{i, j}, assign.FreeVars()); diff != "" {
		t.Errorf("FreeVars() diff (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]notation.IndexVar{k}, assign.ReductionVars()); diff != "" {
		t.Errorf("ReductionVars() diff (-want +got):\n%s", diff)
	}
}

func TestNewAssignmentAccumulateSetsProperty(t *testing.T) {
	i := notation.New("i")
	a := vec("A", notation.Dense)
	b := vec("B", notation.Dense)
	assign := notation.NewAssignment(notation.NewAccess(a, i), notation.NewAccess(b, i), notation.Compute, true)
	if !assign.Properties.Has(notation.Accumulate) {
		t.Error("expected Accumulate to be set when accumulate=true")
	}
}

func TestVarsDeduplicatesInFirstSeenOrder(t *testing.T) {
	i, j := notation.New("i"), notation.New("j")
	b := vec("B", notation.Dense)
	rhs := &notation.AddExpr{
		A: notation.NewAccess(b, i, j),
		B: notation.NewAccess(b, i, i),
	}
	got := notation.Vars(rhs)
	want := []notation.IndexVar{i, j}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Vars() diff (-want +got):\n%s", diff)
	}
}

func TestAccessesCollectsEveryUseIncludingDuplicates(t *testing.T) {
	i := notation.New("i")
	b := vec("B", notation.Dense)
	acc := notation.NewAccess(b, i)
	rhs := &notation.AddExpr{A: acc, B: acc}
	got := notation.Accesses(rhs)
	if len(got) != 2 {
		t.Fatalf("got %d accesses, want 2", len(got))
	}
}

func TestReplaceSubstitutesByPointerIdentity(t *testing.T) {
	i, j := notation.New("i"), notation.New("j")
	b := vec("B", notation.Dense)
	c := vec("C", notation.Dense)
	bij := notation.NewAccess(b, i, j)
	cij := notation.NewAccess(c, i, j)
	sum := &notation.AddExpr{A: bij, B: cij}

	replacement := notation.Lit(0, dtype.Float64)
	got := notation.Replace(sum, map[notation.IndexExpr]notation.IndexExpr{bij: replacement})

	want := &notation.AddExpr{A: replacement, B: cij}
	if diff := cmp.Diff(want, got, cmpopts.EquateComparable(&notation.TensorVar{})); diff != "" {
		t.Errorf("Replace() diff (-want +got):\n%s", diff)
	}
}

func TestReplaceLeavesUnmatchedExpressionUnchanged(t *testing.T) {
	i := notation.New("i")
	b := vec("B", notation.Dense)
	acc := notation.NewAccess(b, i)
	got := notation.Replace(acc, map[notation.IndexExpr]notation.IndexExpr{})
	if got != notation.IndexExpr(acc) {
		t.Error("expected Replace to return the same node when nothing matches")
	}
}

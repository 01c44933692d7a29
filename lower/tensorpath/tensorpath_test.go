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

package tensorpath_test

import (
	"testing"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/backend/shape"

	"github.com/sparsealg/taco/lower/tensorpath"
	"github.com/sparsealg/taco/notation"
)

func TestMakeRowMajorFollowsAccessOrder(t *testing.T) {
	i, j := notation.New("i"), notation.New("j")
	a := notation.NewTensorVar("A",
		&shape.Shape{DType: dtype.Float64, AxisLengths: []int{3, 3}},
		notation.RowMajor(notation.Dense, notation.Sparse))
	path := tensorpath.Make(notation.NewAccess(a, i, j))

	if path.Len() != 2 {
		t.Fatalf("got %d steps, want 2", path.Len())
	}
	if path.Steps[0].IdxVar != i || path.Steps[0].Level.Kind != notation.Dense {
		t.Errorf("step 0 = %+v, want i/Dense", path.Steps[0])
	}
	if path.Steps[1].IdxVar != j || path.Steps[1].Level.Kind != notation.Sparse {
		t.Errorf("step 1 = %+v, want j/Sparse", path.Steps[1])
	}
}

func TestMakeColumnMajorPermutesModeOrder(t *testing.T) {
	i, j := notation.New("i"), notation.New("j")
	a := notation.NewTensorVar("A",
		&shape.Shape{DType: dtype.Float64, AxisLengths: []int{3, 3}},
		notation.Format{
			Levels:    []notation.Level{{Kind: notation.Dense}, {Kind: notation.Sparse}},
			ModeOrder: []int{1, 0}, // CSC: storage level 0 is logical dim 1 (j).
		})
	path := tensorpath.Make(notation.NewAccess(a, i, j))

	if path.Steps[0].IdxVar != j {
		t.Errorf("storage level 0 should bind j (CSC), got %v", path.Steps[0].IdxVar)
	}
	if path.Steps[1].IdxVar != i {
		t.Errorf("storage level 1 should bind i (CSC), got %v", path.Steps[1].IdxVar)
	}
}

func TestStepOfFindsBoundVariable(t *testing.T) {
	i, j, k := notation.New("i"), notation.New("j"), notation.New("k")
	a := notation.NewTensorVar("A",
		&shape.Shape{DType: dtype.Float64, AxisLengths: []int{3, 3}},
		notation.RowMajor(notation.Dense, notation.Sparse))
	path := tensorpath.Make(notation.NewAccess(a, i, j))

	if pos, ok := path.StepOf(j); !ok || pos != 1 {
		t.Errorf("StepOf(j) = (%d, %v), want (1, true)", pos, ok)
	}
	if _, ok := path.StepOf(k); ok {
		t.Error("StepOf(k) should report false: k is not in this path")
	}
}

func TestVariablesReturnsStorageOrder(t *testing.T) {
	i, j := notation.New("i"), notation.New("j")
	a := notation.NewTensorVar("A",
		&shape.Shape{DType: dtype.Float64, AxisLengths: []int{3, 3}},
		notation.Format{
			Levels:    []notation.Level{{Kind: notation.Dense}, {Kind: notation.Sparse}},
			ModeOrder: []int{1, 0},
		})
	got := tensorpath.Make(notation.NewAccess(a, i, j)).Variables()
	want := []notation.IndexVar{j, i}
	for idx := range want {
		if got[idx] != want[idx] {
			t.Errorf("Variables()[%d] = %v, want %v", idx, got[idx], want[idx])
		}
	}
}

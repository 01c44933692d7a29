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

package lower_test

import (
	"strings"
	"testing"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/backend/shape"

	"github.com/sparsealg/taco/ir"
	"github.com/sparsealg/taco/lower"
	"github.com/sparsealg/taco/notation"
)

func vec(name string, n int, kind notation.LevelKind) *notation.TensorVar {
	return notation.NewTensorVar(name, &shape.Shape{DType: dtype.Float64, AxisLengths: []int{n}}, notation.RowMajor(kind))
}

// csr builds a rows x cols matrix stored dense-over-sparse (CSR): the
// outer (row) dimension is Dense, the inner (column) dimension Sparse.
func csr(name string, rows, cols int) *notation.TensorVar {
	return notation.NewTensorVar(name, &shape.Shape{DType: dtype.Float64, AxisLengths: []int{rows, cols}}, notation.RowMajor(notation.Dense, notation.Sparse))
}

func denseMatrix(name string, rows, cols int) *notation.TensorVar {
	return notation.NewTensorVar(name, &shape.Shape{DType: dtype.Float64, AxisLengths: []int{rows, cols}}, notation.RowMajor(notation.Dense, notation.Dense))
}

// allStmts flattens s and everything nested under it into one slice,
// depth first, for structural assertions a test can scan without
// hand-rolling the traversal every time.
func allStmts(s ir.Stmt) []ir.Stmt {
	var out []ir.Stmt
	var walk func(ir.Stmt)
	walk = func(s ir.Stmt) {
		if s == nil {
			return
		}
		out = append(out, s)
		switch n := s.(type) {
		case *ir.Block:
			for _, c := range n.Stmts {
				walk(c)
			}
		case *ir.For:
			walk(n.Body)
		case *ir.While:
			walk(n.Body)
		case *ir.IfThenElse:
			walk(n.Then)
			walk(n.Else)
		case *ir.Case:
			for _, cl := range n.Clauses {
				walk(cl.Body)
			}
		case *ir.Switch:
			for _, cl := range n.Clauses {
				walk(cl.Body)
			}
		}
	}
	walk(s)
	return out
}

func countWhiles(s ir.Stmt) int {
	n := 0
	for _, stmt := range allStmts(s) {
		if _, ok := stmt.(*ir.While); ok {
			n++
		}
	}
	return n
}

func has[T ir.Stmt](s ir.Stmt) bool {
	for _, stmt := range allStmts(s) {
		if _, ok := stmt.(T); ok {
			return true
		}
	}
	return false
}

// y(i) = A(i,j) * x(j), A CSR, x and y dense: a single sparse range
// iterator at j (x's dense j-level demotes to Locate), no case
// dispatch needed since the lattice has one point.
func TestLowerSpMV(t *testing.T) {
	i, j := notation.New("i"), notation.New("j")
	a := csr("A", 3, 3)
	x := vec("x", 3, notation.Dense)
	y := vec("y", 3, notation.Dense)

	lhs := notation.NewAccess(y, i)
	aAcc := notation.NewAccess(a, i, j)
	xAcc := notation.NewAccess(x, j)
	notation.NewAssignment(lhs, &notation.MulExpr{A: aAcc, B: xAcc}, notation.Compute, false)

	fn, err := lower.Lower(y, "spmv", notation.Compute, 8)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if fn.Name != "spmv" {
		t.Errorf("Name = %q, want spmv", fn.Name)
	}
	if len(fn.Parameters) != 2 {
		t.Errorf("Parameters = %v, want 2 (A, x)", fn.Parameters)
	}
	if countWhiles(fn.Body) < 2 {
		t.Errorf("want a merge loop at both i and j, got %d while loops", countWhiles(fn.Body))
	}
	if !has[*ir.Store](fn.Body) {
		t.Error("expected a store into y.Values")
	}
}

// y(i) = B(i) + C(i), both sparse, y dense: a genuine union lattice
// (3 points), so the per-point dispatch must be a Case, not a single
// fallthrough body and not a Switch (only 2 operands, switch-merge
// needs at least 3).
func TestLowerSpMSpVUnion(t *testing.T) {
	i := notation.New("i")
	b := vec("B", 3, notation.Sparse)
	c := vec("C", 3, notation.Sparse)
	y := vec("y", 3, notation.Dense)

	lhs := notation.NewAccess(y, i)
	bAcc, cAcc := notation.NewAccess(b, i), notation.NewAccess(c, i)
	notation.NewAssignment(lhs, &notation.AddExpr{A: bAcc, B: cAcc}, notation.Compute, false)

	fn, err := lower.Lower(y, "spmspv", notation.Compute, 8)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if !has[*ir.Case](fn.Body) {
		t.Error("expected a Case dispatch over the union's sub-lattice")
	}
	if has[*ir.Switch](fn.Body) {
		t.Error("a 2-operand union should not be switch-merge eligible")
	}
}

// a = b(i) * c(i), a scalar, b dense, c sparse: a pure reduction with
// no free variables, so the zero-init policy must fire even though the
// result has no level of its own to check for an Insert capability.
func TestLowerInnerProductReduction(t *testing.T) {
	i := notation.New("i")
	bv := vec("b", 5, notation.Dense)
	cv := vec("c", 5, notation.Sparse)
	av := notation.NewScalar("a", dtype.Float64)

	lhs := notation.NewAccess(av)
	bAcc, cAcc := notation.NewAccess(bv, i), notation.NewAccess(cv, i)
	notation.NewAssignment(lhs, &notation.MulExpr{A: bAcc, B: cAcc}, notation.Compute, false)

	fn, err := lower.Lower(av, "innerprod", notation.Compute, 1)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if !has[*ir.For](fn.Body) {
		t.Error("expected a zero-init loop ahead of the reduction")
	}
	if !has[*ir.While](fn.Body) {
		t.Error("expected a merge loop over i")
	}
}

// A(i,j) = B(i,k) * C(k,j), both CSR: the classic three-level nest
// (free i, free j, reduction k) with a temporary accumulator at k.
func TestLowerSpGEMM(t *testing.T) {
	i, j, k := notation.New("i"), notation.New("j"), notation.New("k")
	b := csr("B", 2, 2)
	c := csr("C", 2, 2)
	a := csr("A", 2, 2)

	lhs := notation.NewAccess(a, i, j)
	bAcc := notation.NewAccess(b, i, k)
	cAcc := notation.NewAccess(c, k, j)
	notation.NewAssignment(lhs, &notation.MulExpr{A: bAcc, B: cAcc}, notation.Compute, false)

	fn, err := lower.Lower(a, "spgemm", notation.Compute, 8)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if len(fn.Parameters) != 2 {
		t.Errorf("Parameters = %v, want 2 (B, C)", fn.Parameters)
	}
	if n := countWhiles(fn.Body); n < 3 {
		t.Errorf("want a loop for each of i, j, k, got %d while loops", n)
	}
	var sawDecl bool
	for _, s := range allStmts(fn.Body) {
		if va, ok := s.(*ir.VarAssign); ok && va.Decl {
			sawDecl = true
		}
	}
	if !sawDecl {
		t.Error("expected a declared accumulator temporary for the k reduction")
	}
}

// A(i,j) = B(i,j), A dense, B sparse (CSR): the result's j-level is
// Insert-capable but B's j-level is not Full, so every cell B leaves
// absent must be pre-zeroed.
func TestLowerDenseTimesSparseZeroInit(t *testing.T) {
	i, j := notation.New("i"), notation.New("j")
	bm := csr("B", 2, 2)
	am := denseMatrix("A", 2, 2)

	lhs := notation.NewAccess(am, i, j)
	bAcc := notation.NewAccess(bm, i, j)
	notation.NewAssignment(lhs, bAcc, notation.Compute, false)

	fn, err := lower.Lower(am, "densesparse", notation.Compute, 8)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if !has[*ir.For](fn.Body) {
		t.Error("expected a zero-init pass over A's values before the copy loop")
	}
}

// y(i) = a(i) + b(i) + c(i) + d(i), four sparse operands: a perfect
// 2^4-1 cover, so the merge must dispatch through a Switch keyed on
// the runtime indicator bitmask rather than an if-chain Case.
func TestLowerSwitchMerge(t *testing.T) {
	i := notation.New("i")
	names := []string{"a", "b", "c", "d"}
	var accs []*notation.Access
	for _, n := range names {
		tv := vec(n, 3, notation.Sparse)
		accs = append(accs, notation.NewAccess(tv, i))
	}
	y := vec("y", 3, notation.Dense)
	lhs := notation.NewAccess(y, i)

	var rhs notation.IndexExpr = accs[0]
	for _, acc := range accs[1:] {
		rhs = &notation.AddExpr{A: rhs, B: acc}
	}
	notation.NewAssignment(lhs, rhs, notation.Compute, false)

	fn, err := lower.Lower(y, "switchmerge", notation.Compute, 8)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if !has[*ir.Switch](fn.Body) {
		t.Error("expected a Switch dispatch on the four-way union's indicator bitmask")
	}
}

// A(i,j) = (s(i) + t(i)) * B(i,j), everything dense: s(i)+t(i) depends
// only on i, j's ancestor, so it must be hoisted into a temporary
// declared once per i iteration rather than recomputed at every j.
func TestLowerHoistsAvailableExpression(t *testing.T) {
	i, j := notation.New("i"), notation.New("j")
	s := vec("s", 2, notation.Dense)
	tv := vec("t", 2, notation.Dense)
	b := denseMatrix("B", 2, 2)
	a := denseMatrix("A", 2, 2)

	lhs := notation.NewAccess(a, i, j)
	sAcc, tAcc := notation.NewAccess(s, i), notation.NewAccess(tv, i)
	bAcc := notation.NewAccess(b, i, j)
	sum := &notation.AddExpr{A: sAcc, B: tAcc}
	notation.NewAssignment(lhs, &notation.MulExpr{A: sum, B: bAcc}, notation.Compute, false)

	fn, err := lower.Lower(a, "hoisttest", notation.Compute, 4)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	var sawHoist bool
	for _, st := range allStmts(fn.Body) {
		va, ok := st.(*ir.VarAssign)
		if !ok || !va.Decl {
			continue
		}
		if _, ok := va.Rhs.(*ir.BinaryExpr); ok {
			sawHoist = true
		}
	}
	if !sawHoist {
		t.Error("expected s(i)+t(i) hoisted into a declared temporary ahead of the j loop")
	}
}

// vecNonUnique builds a rank-1 tensor whose single Sparse level may
// store repeated coordinates within its one segment, e.g. an
// unconsolidated COO-style input awaiting a sum over duplicates.
func vecNonUnique(name string, n int) *notation.TensorVar {
	format := notation.Format{
		Levels:    []notation.Level{{Kind: notation.Sparse, NonUnique: true}},
		ModeOrder: []int{0},
	}
	return notation.NewTensorVar(name, &shape.Shape{DType: dtype.Float64, AxisLengths: []int{n}}, format)
}

// y(i) = b(i), b a non-unique sparse vector: the merge loop over b
// must skip an entire run of duplicate coordinates in one advance
// rather than revisiting the same coordinate once per stored entry.
func TestLowerNonUniqueSparseDedup(t *testing.T) {
	i := notation.New("i")
	b := vecNonUnique("b", 5)
	y := vec("y", 5, notation.Dense)

	lhs := notation.NewAccess(y, i)
	bAcc := notation.NewAccess(b, i)
	notation.NewAssignment(lhs, bAcc, notation.Compute, false)

	fn, err := lower.Lower(y, "nonuniquededup", notation.Compute, 4)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	var sawSegend bool
	for _, st := range allStmts(fn.Body) {
		va, ok := st.(*ir.VarAssign)
		if !ok || !va.Decl {
			continue
		}
		if strings.Contains(va.Lhs.String(), "segend") {
			sawSegend = true
		}
	}
	if !sawSegend {
		t.Error("expected a declared segend scan skipping b's duplicate coordinate run")
	}
}

// Lower rejects a result with no assignment attached rather than
// panicking or emitting a malformed function.
func TestLowerRejectsNonConcreteResult(t *testing.T) {
	y := vec("y", 3, notation.Dense)
	if _, err := lower.Lower(y, "bad", notation.Compute, 8); err == nil {
		t.Error("expected an error for a tensor with no assignment bound to it")
	}
}

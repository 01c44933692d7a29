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

// Package lower turns a concrete index-notation assignment into a loop
// nest expressed in the ir package. Lower is the package's one entry
// point; everything else (itergraph, lattice, iterators, tensorpath,
// exprtools) is plumbing the entry point wires together into one
// Context, which then drives the recursive per-level lowering in
// engine.go.
//
// Persisted state layout: every result/operand TensorVar is, at
// runtime, a packed argument of one (ptr, idx) integer array pair per
// non-dense storage level (dense levels contribute only their
// dimension) followed by one contiguous values array. GetProperty
// nodes in the generated IR index into this layout; no Go struct in
// this module models it directly, since the backend that interprets
// the IR owns the actual memory layout.
package lower

import (
	"github.com/pkg/errors"

	"github.com/sparsealg/taco/ir"
	"github.com/sparsealg/taco/lower/assert"
	"github.com/sparsealg/taco/lower/itergraph"
	"github.com/sparsealg/taco/lower/iterators"
	"github.com/sparsealg/taco/lower/tensorpath"
	"github.com/sparsealg/taco/notation"
)

// Lower generates the IR function computing result's assignment.
// allocSize is the capacity of the result's values buffer when the
// result has a sparse (append) level. When it has none, allocSize is
// not used: the capacity is the product of the result's insert-level
// dimensions, or 1 for a scalar result.
func Lower(result *notation.TensorVar, funcName string, properties notation.Property, allocSize int64) (fn *ir.Function, err error) {
	if ierr := IsLowerable(result); ierr != nil {
		return nil, ierr
	}
	assign := result.Assignment()
	if assign.Properties.Has(notation.Accumulate) {
		properties |= notation.Accumulate
	}

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		fatal, ok := r.(*assert.Fatal)
		if !ok {
			panic(r)
		}
		fn, err = nil, errors.Wrap(fatal, "lower")
	}()

	names := NewNameGen()
	c := newContext(result, properties, names)
	c.Iterators = iterators.New(names)

	resultPath := tensorpath.Make(assign.Lhs)
	resultTensorIR := c.tensorIR(result)
	resultIters := c.Iterators.AddPath(resultPath, resultTensorIR, true)
	c.resultInfo = accessInfo{path: resultPath, iters: resultIters}

	var paramTensors []*notation.TensorVar
	seenTensor := map[*notation.TensorVar]bool{}
	var operandPaths []tensorpath.Path
	for _, acc := range notation.Accesses(assign.Rhs) {
		if !seenTensor[acc.Tensor] {
			seenTensor[acc.Tensor] = true
			paramTensors = append(paramTensors, acc.Tensor)
		}
		if _, ok := c.operands[acc]; ok {
			continue
		}
		path := tensorpath.Make(acc)
		iters := c.Iterators.AddPath(path, c.tensorIR(acc.Tensor), false)
		c.operands[acc] = accessInfo{path: path, iters: iters}
		operandPaths = append(operandPaths, path)
	}

	g := itergraph.Build(assign, resultPath, operandPaths)
	c.Graph = g

	valuesArr := &ir.GetProperty{Tensor: resultTensorIR, Prop: ir.Values, Typ: result.DType()}
	prologue, capacity := c.setupResultStorage(resultIters, valuesArr, allocSize)
	c.capacity = capacity

	var body []ir.Stmt
	body = append(body, prologue...)

	roots := g.Roots()
	switch {
	case len(roots) == 0:
		// No index variable at all: a direct scalar-to-scalar copy.
		val := c.evalExpr(assign.Rhs)
		body = append(body, c.writeValue(val, nil, Target{Tensor: result, Pos: ir.Int(0)}, ir.Int(0), properties.Has(notation.Accumulate)))
	default:
		body = append(body, c.lowerVar(Target{Tensor: result, Pos: ir.Int(0)}, roots[0], assign.Rhs, nil))
	}

	for _, it := range resultIters {
		switch {
		case it.HasAppend():
			body = append(body, it.GetAppendFinalizeLevel(ir.Int(0), capacity)...)
		case it.HasInsert():
			body = append(body, it.GetInsertFinalizeLevel(ir.Int(0), capacity)...)
		}
	}

	params := make([]ir.Expr, len(paramTensors))
	for i, tv := range paramTensors {
		params[i] = c.tensorIR(tv)
	}

	return &ir.Function{
		Name:       funcName,
		Results:    []ir.Expr{resultTensorIR},
		Parameters: params,
		Body:       ir.MakeBlock(body...),
	}, nil
}

// setupResultStorage emits the one-time allocation statements for the
// result's storage ahead of the main loop nest: the per-level sizing
// calls that engine.go's lowerVar deliberately never makes, since that
// function's body runs once per loop iteration of every enclosing
// level and a one-time allocation cannot safely live there.
//
// Per-append geometric doubling as values are produced is not
// implemented; every append/insert level and the values array are
// instead sized once up front (append levels from allocSize, insert
// levels from the product of their dimensions), consistent with
// engine.go moving all one-time setup here rather than interleaving it
// with the recursion.
func (c *Context) setupResultStorage(resultIters []iterators.Iterator, valuesArr ir.Expr, allocSize int64) ([]ir.Stmt, *ir.Var) {
	var stmts []ir.Stmt
	bound := ir.Expr(ir.Int(1))
	hasAppend := false
	for _, it := range resultIters {
		switch {
		case it.HasAppend():
			hasAppend = true
			stmts = append(stmts, it.GetAppendInitEdges(ir.Int(0), bound)...)
			bound = ir.Int(allocSize)
			stmts = append(stmts, it.GetAppendInitLevel(ir.Int(0), bound)...)
			// The append cursor is one counter for this level's whole run,
			// monotonically increasing across every parent segment; it is
			// declared here, once, rather than reset inside engine.go's
			// per-segment prologue.
			stmts = append(stmts, &ir.VarAssign{Lhs: it.IterVar(), Rhs: ir.Int(0), Decl: true})
		case it.HasInsert():
			bound = ir.Simplify(ir.Mul(bound, it.Dimension()))
			stmts = append(stmts, it.GetInsertInitCoords(ir.Int(0), bound)...)
			stmts = append(stmts, it.GetInsertInitLevel(ir.Int(0), bound)...)
		}
	}
	switch {
	case len(resultIters) == 0:
		bound = ir.Int(1)
	case hasAppend:
		bound = ir.Int(allocSize)
	}

	capacity := ir.IntVar(c.Names.Name("cap"))
	prologue := append([]ir.Stmt{&ir.VarAssign{Lhs: capacity, Rhs: bound, Decl: true}}, stmts...)
	prologue = append(prologue, &ir.Allocate{Arr: valuesArr, Size: capacity})
	if c.needsZeroInit(resultIters) {
		zeroVar := ir.IntVar(c.Names.Name("z"))
		prologue = append(prologue, &ir.For{
			Var: zeroVar, Begin: ir.Int(0), End: capacity, Increment: ir.Int(1),
			Body: &ir.Store{Arr: valuesArr, Loc: zeroVar, Val: zeroLiteral(c.result.DType())},
			Kind: ir.Serial,
		})
	}
	return prologue, capacity
}

// needsZeroInit decides whether the result's value segment must be
// explicitly zero-written before the compute loop runs: either some
// result level is written by compound-store because a
// reduction variable sits below it, or some dense/insert result
// dimension is paired with a non-full operand level, whose gaps would
// otherwise leave the corresponding result cells untouched. Accumulate
// means the caller already holds the partial state that must be
// preserved, so nothing is zeroed. A scalar result is zeroed whenever
// the iteration graph has a root (its one value is reduced into). A
// non-scalar result with no Insert-capable level at all (pure
// append/assemble) never pre-exists content to zero.
func (c *Context) needsZeroInit(resultIters []iterators.Iterator) bool {
	if c.Properties.Has(notation.Accumulate) {
		return false
	}
	resultHasInsert := false
	for _, it := range resultIters {
		if it.HasInsert() {
			resultHasInsert = true
		}
	}
	if c.result.IsScalar() {
		return len(c.Graph.Roots()) > 0
	}
	if !resultHasInsert {
		return false
	}
	for _, it := range resultIters {
		if hasReductionDescendant(c.Graph, it.IndexVar()) {
			return true
		}
	}
	for _, info := range c.operands {
		for _, it := range info.iters {
			if it.IsFull() {
				continue
			}
			if rit, ok := c.resultIteratorFor(it.IndexVar()); ok && rit.HasInsert() {
				return true
			}
		}
	}
	return false
}

func hasReductionDescendant(g *itergraph.Graph, v notation.IndexVar) bool {
	for _, d := range g.Descendants(v) {
		if g.IsReduction(d) {
			return true
		}
	}
	return false
}

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

package lower

import (
	"sort"

	"github.com/gx-org/backend/dtype"
	"golang.org/x/exp/maps"

	"github.com/sparsealg/taco/ir"
	"github.com/sparsealg/taco/lower/assert"
	"github.com/sparsealg/taco/lower/exprtools"
	"github.com/sparsealg/taco/lower/iterators"
	"github.com/sparsealg/taco/lower/lattice"
	"github.com/sparsealg/taco/notation"
)

// Target names where a level's compute and assembly write: the result
// tensor and the position within it that the level currently bound to
// should write its contribution at.
type Target struct {
	Tensor *notation.TensorVar
	Pos    ir.Expr
}

// lowerVar generates the loop nest for one iteration-graph variable:
// the merge over every operand path bound to v, the per-lattice-point
// case dispatch, and the recursion into v's child (if any). A child
// variable is lowered once for every case clause of its parent that
// recurses into it.
func (c *Context) lowerVar(target Target, v notation.IndexVar, e notation.IndexExpr, accumulateInto *ir.Var) ir.Stmt {
	lat := lattice.Make(v, e, c.accessIterator(v))
	top := lat.Top()
	resultIter, hasResultIter := c.resultIteratorFor(v)

	type setup struct {
		it      iterators.Iterator
		prelude []ir.Stmt
	}
	setups := make([]setup, len(top.Range))
	for i, it := range top.Range {
		var prelude []ir.Stmt
		if it.HasCoordPosIter() {
			prelude, _, _ = it.GetPosIter(c.parentPos(it))
		} else {
			prelude, _, _ = it.GetCoordIter()
		}
		setups[i] = setup{it: it, prelude: prelude}
		c.posOf[it] = it.IterVar()
	}

	var prologue []ir.Stmt
	for _, s := range setups {
		prologue = append(prologue, s.prelude...)
	}
	prologue = append(prologue, c.hoistAvailable(v, e)...)

	inBounds := func(it iterators.Iterator) ir.Expr { return ir.Lt(it.IterVar(), it.EndVar()) }

	// A lattice built from Add/Sub admits points narrower than top (a
	// partial match is a valid case: one operand ran out while others
	// still have coordinates), so the merge must keep going as long as
	// any range iterator remains. A lattice with no such point is a
	// pure intersection: the merge stops the moment any one of them
	// does, since no narrower case is ever valid.
	hasPartial := false
	for _, q := range lat.GetSubLattice(top) {
		if len(q.Range) > 0 && len(q.Range) < len(top.Range) {
			hasPartial = true
			break
		}
	}
	var boundsTerms []ir.Expr
	for _, it := range top.Range {
		boundsTerms = append(boundsTerms, inBounds(it))
	}
	var loopCond ir.Expr
	if hasPartial {
		loopCond = orReduce(boundsTerms)
	} else {
		loopCond = ir.Conjunction(boundsTerms)
	}

	idxVar := ir.IntVar(c.Names.Name(v.Name + "_crd"))
	var body []ir.Stmt
	// Dereference every still-live range iterator, guarding the read so
	// an iterator that has already run off the end of its segment (only
	// possible in the partial-match case above) is left alone rather
	// than read out of bounds.
	segends := map[iterators.Iterator]ir.Expr{}
	for _, s := range setups {
		it := s.it
		var deref []ir.Stmt
		if it.HasCoordPosIter() {
			deref, _, _ = it.GetPosAccess(it.IterVar())
		} else {
			deref, _, _ = it.GetCoordAccess()
		}
		body = append(body, &ir.IfThenElse{Cond: inBounds(it), Then: ir.MakeBlock(deref...)})
		// A non-unique coord-pos level can store the same coordinate at
		// several adjacent positions; scan the run once here so the
		// advance step below can skip it as a whole instead of revisiting
		// it one stored entry at a time.
		if it.HasCoordPosIter() && !it.IsUnique() {
			segPrelude, segend := it.GetSegend(it.IterVar(), it.DerivedVar())
			body = append(body, &ir.IfThenElse{Cond: inBounds(it), Then: ir.MakeBlock(segPrelude...)})
			segends[it] = segend
		}
	}

	// Fold the live derived coordinates down to their minimum: the
	// merged coordinate this iteration visits.
	body = append(body, &ir.VarAssign{Lhs: idxVar, Rhs: ir.Int(1 << 62), Decl: true})
	for _, s := range setups {
		it := s.it
		cond := ir.And(inBounds(it), ir.Lt(it.DerivedVar(), idxVar))
		body = append(body, &ir.IfThenElse{Cond: cond, Then: &ir.VarAssign{Lhs: idxVar, Rhs: it.DerivedVar()}})
	}
	c.idxVars[v] = idxVar

	switchMerge := lat.SwitchMergeEligible()
	if switchMerge {
		indicatorVar := ir.IntVar(c.Names.Name(v.Name + "_ind"))
		c.indicatorVars[v] = indicatorVar
		body = append(body, &ir.VarAssign{Lhs: indicatorVar, Rhs: ir.Int(0), Decl: true})
		for i, s := range setups {
			it := s.it
			present := ir.Cast(ir.And(inBounds(it), ir.Eq(it.DerivedVar(), idxVar)), dtype.Int64)
			term := ir.Mul(present, ir.Int(1<<uint(i)))
			body = append(body, &ir.VarAssign{Lhs: indicatorVar, Rhs: ir.Simplify(ir.Add(indicatorVar, term))})
		}
	}

	// Dereferencing through Locate can miss (no entry at this coordinate
	// in a level that isn't Full): whenever the access hands back a
	// non-literal valid, it is unsafe to assume the locate landed on a
	// real entry, so the iterator is recorded in the guarded set and its
	// validity flag is conjoined into the case guard below.
	guarded := map[iterators.Iterator]ir.Expr{}
	for _, it := range top.Locate {
		prelude, pos, valid := it.GetLocate(c.parentPos(it), idxVar)
		body = append(body, prelude...)
		c.posOf[it] = pos
		if lit, isLit := ir.IsLiteralBool(valid); !(isLit && lit) {
			body = append(body, &ir.VarAssign{Lhs: it.ValidVar(), Rhs: valid, Decl: true})
			guarded[it] = it.ValidVar()
		}
	}

	var writePos ir.Expr = target.Pos
	if hasResultIter {
		switch {
		case resultIter.HasAppend():
			pos := resultIter.IterVar()
			body = append(body, resultIter.GetAppendCoord(pos, idxVar))
			body = append(body, &ir.VarAssign{Lhs: resultIter.PosVar(), Rhs: pos, Decl: true})
			body = append(body, &ir.VarAssign{Lhs: resultIter.IterVar(), Rhs: ir.Simplify(ir.Add(pos, ir.Int(1)))})
			writePos = resultIter.PosVar()
		case resultIter.HasInsert():
			prelude, pos, valid := resultIter.GetLocate(target.Pos, idxVar)
			body = append(body, prelude...)
			writePos = pos
			if lit, isLit := ir.IsLiteralBool(valid); !(isLit && lit) {
				body = append(body, &ir.VarAssign{Lhs: resultIter.ValidVar(), Rhs: valid, Decl: true})
				guarded[resultIter] = resultIter.ValidVar()
			}
		}
		c.posOf[resultIter] = writePos
	}

	childTarget := target
	if hasResultIter {
		childTarget = Target{Tensor: target.Tensor, Pos: writePos}
	}
	forceAccumulate := c.Properties.Has(notation.Accumulate) || c.Graph.IsReduction(v)

	clauses := c.caseClauses(lat, top, v, childTarget, accumulateInto, writePos, forceAccumulate, switchMerge, idxVar, guarded)
	body = append(body, clauses)

	for _, s := range setups {
		it := s.it
		matched := ir.And(inBounds(it), ir.Eq(it.DerivedVar(), idxVar))
		next := ir.Simplify(ir.Add(it.IterVar(), ir.Int(1)))
		if segend, ok := segends[it]; ok {
			next = segend
		}
		body = append(body, &ir.IfThenElse{Cond: matched, Then: &ir.VarAssign{Lhs: it.IterVar(), Rhs: next}})
	}

	loop := &ir.While{Cond: loopCond, Body: ir.MakeBlock(body...)}

	var epilogue []ir.Stmt
	if hasResultIter && resultIter.HasAppend() {
		epilogue = append(epilogue, resultIter.GetAppendEdges(target.Pos, resultIter.BeginVar(), resultIter.IterVar())...)
	}
	if hasResultIter && resultIter.HasAppend() {
		// The append cursor itself is a single monotonically-increasing
		// counter initialized once in setupResultStorage, not here: this
		// prologue runs once per parent segment (e.g. once per result row),
		// so it only stashes where the current segment starts.
		prologue = append(prologue,
			&ir.VarAssign{Lhs: resultIter.BeginVar(), Rhs: resultIter.IterVar(), Decl: true},
		)
	}

	return ir.MakeBlock(append(append(prologue, loop), epilogue...)...)
}

// allValidDerefs AND-reduces the validity flags of every iterator
// recorded in guarded, in an order fixed by the iterators' own names
// rather than Go's unspecified map iteration order, so the same
// lattice point always prints the same guard expression.
func allValidDerefs(guarded map[iterators.Iterator]ir.Expr) ir.Expr {
	keys := maps.Keys(guarded)
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	terms := make([]ir.Expr, len(keys))
	for i, it := range keys {
		terms[i] = guarded[it]
	}
	return ir.Conjunction(terms)
}

// hoistAvailable computes e's available sub-expressions at v's level
// (those depending only on v's strict ancestors, already bound by an
// enclosing loop) and declares each one, not already hoisted or
// per-child reduced, into a scalar temporary ahead of v's merge loop.
// A bare access or literal is left alone: hoisting it would add a
// temporary without saving any recomputation.
func (c *Context) hoistAvailable(v notation.IndexVar, e notation.IndexExpr) []ir.Stmt {
	ancestors := c.Graph.Ancestors(v)
	if len(ancestors) == 0 {
		return nil
	}
	var stmts []ir.Stmt
	for _, avail := range exprtools.GetAvailableExpressions(e, ancestors) {
		switch avail.(type) {
		case *notation.Access, *notation.LiteralExpr:
			continue
		}
		if _, ok := c.temps.Load(avail); ok {
			continue
		}
		val := c.evalExpr(avail)
		temp, _ := c.temp(avail, "avail")
		stmts = append(stmts, &ir.VarAssign{Lhs: temp, Rhs: val, Decl: true})
	}
	return stmts
}

// caseClauses builds the dispatch over lat's sub-lattice of top,
// skipping the wrapper entirely when there is only one case to run.
func (c *Context) caseClauses(
	lat *lattice.Lattice, top lattice.Point, v notation.IndexVar,
	childTarget Target, accumulateInto *ir.Var, writePos ir.Expr, forceAccumulate, switchMerge bool, idxVar *ir.Var,
	guarded map[iterators.Iterator]ir.Expr,
) ir.Stmt {
	subPoints := lat.GetSubLattice(top)
	var dispatched ir.Stmt
	if len(subPoints) == 1 {
		dispatched = c.pointBody(subPoints[0], v, childTarget, accumulateInto, writePos, forceAccumulate)
	} else {
		var clauses []ir.CaseClause
		for _, q := range subPoints {
			var cond ir.Expr
			if switchMerge {
				cond = lattice.IndicatorMask(top.Range, q.Range)
			} else {
				var terms []ir.Expr
				for _, it := range q.Range {
					terms = append(terms, ir.And(ir.Lt(it.IterVar(), it.EndVar()), ir.Eq(it.DerivedVar(), idxVar)))
				}
				cond = ir.Conjunction(terms)
			}
			clauses = append(clauses, ir.CaseClause{Cond: cond, Body: c.pointBody(q, v, childTarget, accumulateInto, writePos, forceAccumulate)})
		}
		if switchMerge {
			dispatched = ir.MakeCase(clauses, c.indicatorVars[v], lat.IsFull())
		} else {
			dispatched = ir.MakeCase(clauses, nil, lat.IsFull())
		}
	}

	// The validity guard applies identically regardless of how the case
	// itself was dispatched: a switch on the indicator bitmask only
	// replaces the range-iterator equality test, never the locate
	// iterators' validity test.
	if guard := allValidDerefs(guarded); !ir.IsTrue(guard) {
		return &ir.IfThenElse{Cond: guard, Then: dispatched}
	}
	return dispatched
}

// pointBody emits the statement for one lattice point: either the
// compute/write for a leaf variable, or the recursion into v's single
// child with the residual appropriately projected.
func (c *Context) pointBody(q lattice.Point, v notation.IndexVar, childTarget Target, accumulateInto *ir.Var, writePos ir.Expr, forceAccumulate bool) ir.Stmt {
	children := c.Graph.Children(v)
	if len(children) == 0 {
		val := c.evalExpr(q.Residual)
		return c.writeValue(val, accumulateInto, childTarget, writePos, forceAccumulate)
	}
	child := children[0]

	if !c.Graph.IsReduction(v) && c.Graph.HasFreeVariableDescendant(v) {
		// Still extending the free chain: no value is ready to write at
		// this level, only assembled structure (already handled by the
		// caller). Pass the whole residual through unchanged.
		return c.lowerVar(childTarget, child, q.Residual, accumulateInto)
	}

	childVars := append(c.Graph.Descendants(child), child)
	childExpr := exprtools.SubExprOld(q.Residual, childVars)
	if childExpr == nil {
		val := c.evalExpr(q.Residual)
		return c.writeValue(val, accumulateInto, childTarget, writePos, forceAccumulate)
	}

	childTemp, existed := c.temp(childExpr, child.String()+"_t")
	var zeroInit ir.Stmt
	if !existed {
		zeroInit = &ir.VarAssign{Lhs: childTemp, Rhs: zeroLiteral(childExpr.DataType()), Decl: true}
	}
	childLoop := c.lowerVar(childTarget, child, childExpr, childTemp)
	finalWrite := c.writeValue(childTemp, accumulateInto, childTarget, writePos, forceAccumulate)
	return ir.MakeBlock(zeroInit, childLoop, finalWrite)
}

// writeValue emits the statement that deposits value at this level's
// destination: into the accumulator temp an ancestor reduction passed
// down, or into the result's values array at writePos.
func (c *Context) writeValue(value ir.Expr, accumulateInto *ir.Var, target Target, writePos ir.Expr, forceAccumulate bool) ir.Stmt {
	if accumulateInto != nil {
		return ir.CompoundAssign(accumulateInto, value)
	}
	valuesArr := &ir.GetProperty{Tensor: c.tensorIR(target.Tensor), Prop: ir.Values, Typ: target.Tensor.DType()}
	if forceAccumulate {
		return ir.CompoundStore(valuesArr, writePos, value)
	}
	return &ir.Store{Arr: valuesArr, Loc: writePos, Val: value}
}

// evalExpr lowers an index-notation expression to an IR expression,
// substituting in any hoisted or per-child-reduced temporary by
// pointer identity before descending into the node itself.
func (c *Context) evalExpr(e notation.IndexExpr) ir.Expr {
	if tv, ok := c.temps.Load(e); ok {
		return tv
	}
	switch n := e.(type) {
	case *notation.Access:
		return c.evalAccess(n)
	case *notation.LiteralExpr:
		return &ir.Literal{Typ: n.Typ, Value: n.Value}
	case *notation.NegExpr:
		return ir.NegExpr(c.evalExpr(n.A))
	case *notation.SqrtExpr:
		return ir.SqrtExpr(c.evalExpr(n.A))
	case *notation.AddExpr:
		return ir.Add(c.evalExpr(n.A), c.evalExpr(n.B))
	case *notation.SubExpr:
		return ir.Sub(c.evalExpr(n.A), c.evalExpr(n.B))
	case *notation.MulExpr:
		return ir.Mul(c.evalExpr(n.A), c.evalExpr(n.B))
	case *notation.DivExpr:
		return ir.Div(c.evalExpr(n.A), c.evalExpr(n.B))
	default:
		assert.Truef(false, "unsupported level", "cannot lower index-notation node of type %T", e)
		return nil
	}
}

// evalAccess reads acc's value out of its tensor's values array at the
// position its innermost storage level has reached.
func (c *Context) evalAccess(acc *notation.Access) ir.Expr {
	valuesArr := &ir.GetProperty{Tensor: c.tensorIR(acc.Tensor), Prop: ir.Values, Typ: acc.Tensor.DType()}
	return &ir.Load{Arr: valuesArr, Loc: c.accessPos(acc)}
}

// accessPos returns the position acc's value should currently be read
// from: its innermost level's position, or 0 for a scalar access.
func (c *Context) accessPos(acc *notation.Access) ir.Expr {
	info, ok := c.operands[acc]
	if !ok && acc == c.resultAccess() {
		info, ok = c.resultInfo, true
	}
	if !ok || len(info.iters) == 0 {
		return ir.Int(0)
	}
	last := info.iters[len(info.iters)-1]
	if pos, ok := c.posOf[last]; ok {
		return pos
	}
	return ir.Int(0)
}

func orReduce(exprs []ir.Expr) ir.Expr {
	if len(exprs) == 0 {
		return ir.Bool(true)
	}
	result := exprs[0]
	for _, e := range exprs[1:] {
		result = ir.Or(result, e)
	}
	return result
}

func zeroLiteral(dt dtype.DataType) *ir.Literal {
	switch dt {
	case dtype.Int64:
		return ir.Int(0)
	case dtype.Bool:
		return ir.Bool(false)
	default:
		return ir.Float(0)
	}
}

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
	"github.com/sparsealg/taco/base/ordered"
	"github.com/sparsealg/taco/ir"
	"github.com/sparsealg/taco/lower/itergraph"
	"github.com/sparsealg/taco/lower/iterators"
	"github.com/sparsealg/taco/lower/tensorpath"
	"github.com/sparsealg/taco/notation"
)

// accessInfo pairs an access's tensor path with the iterators built
// for it, parallel slices indexed by storage position.
type accessInfo struct {
	path  tensorpath.Path
	iters []iterators.Iterator
}

// Context is the mutable state threaded explicitly through one
// lowering call tree: it is never ambient/global, so two concurrent
// calls to Lower never share one of these.
type Context struct {
	Properties notation.Property
	Graph      *itergraph.Graph
	Iterators  *iterators.Iterators
	Names      *NameGen

	result     *notation.TensorVar
	resultInfo accessInfo
	operands   map[*notation.Access]accessInfo

	// idxVars maps an index variable to the IR expression currently
	// bound to it (the merged coordinate chosen at that variable's
	// level). All iterators entered at the same variable share this one
	// value, which is why this module keys it by IndexVar rather than,
	// as the data model literally states, by Iterator: every iterator
	// bound to a given variable is, by construction, given the same
	// merged coordinate, so the two keyings are observationally
	// equivalent here and the IndexVar keying needs no extra plumbing
	// to stay in sync across iterators.
	idxVars map[notation.IndexVar]ir.Expr

	// indicatorVars maps a variable to its merge loop's runtime
	// indicator bitmask, populated only for variables whose lattice
	// qualifies for the switch-merge optimization (see
	// lattice.Lattice.SwitchMergeEligible).
	indicatorVars map[notation.IndexVar]*ir.Var

	// posOf maps an iterator to the IR expression for its current
	// position, once that level has been entered (by range iteration,
	// locate, or append/insert). A child level's parent position is
	// read out of this table.
	posOf map[iterators.Iterator]ir.Expr

	// temps maps a hoisted or per-child sub-expression to the scalar
	// variable holding its value, keyed by expression node identity
	// (pointer equality), matching notation.Replace's substitution
	// convention.
	temps *ordered.Map[notation.IndexExpr, *ir.Var]

	// capacity is the values array's allocated size, set once by
	// setupResultStorage; the array is not grown during assembly.
	capacity *ir.Var

	// tensorVars memoizes the one IR pointer variable standing for each
	// tensor argument, so the iterator built over a tensor's path and
	// every later Values/GetProperty reference to that same tensor
	// share one *ir.Var rather than printing as look-alike duplicates.
	tensorVars map[*notation.TensorVar]*ir.Var
}

func newContext(result *notation.TensorVar, properties notation.Property, names *NameGen) *Context {
	return &Context{
		Properties: properties,
		Names:      names,
		result:        result,
		operands:      map[*notation.Access]accessInfo{},
		idxVars:       map[notation.IndexVar]ir.Expr{},
		indicatorVars: map[notation.IndexVar]*ir.Var{},
		posOf:         map[iterators.Iterator]ir.Expr{},
		temps:         ordered.NewMap[notation.IndexExpr, *ir.Var](),
		tensorVars:    map[*notation.TensorVar]*ir.Var{},
	}
}

// tensorIR returns the IR pointer variable standing for tv's argument,
// creating and caching it on first use.
func (c *Context) tensorIR(tv *notation.TensorVar) *ir.Var {
	if v, ok := c.tensorVars[tv]; ok {
		return v
	}
	v := ir.TensorVar(tv.Name, tv.DType())
	c.tensorVars[tv] = v
	return v
}

// iteratorFor returns the iterator bound to v within acc's path, if
// acc's access uses v at all.
func (c *Context) iteratorFor(acc *notation.Access, v notation.IndexVar) (iterators.Iterator, bool) {
	info, ok := c.operands[acc]
	if !ok {
		if acc == c.resultAccess() {
			info = c.resultInfo
		} else {
			return iterators.Iterator{}, false
		}
	}
	pos, ok := info.path.StepOf(v)
	if !ok {
		return iterators.Iterator{}, false
	}
	return info.iters[pos], true
}

func (c *Context) resultAccess() *notation.Access { return c.resultInfo.path.Access }

// resultIteratorFor returns the result's iterator bound to v, if the
// result's path has a level for v.
func (c *Context) resultIteratorFor(v notation.IndexVar) (iterators.Iterator, bool) {
	return c.iteratorFor(c.resultAccess(), v)
}

// parentPos returns the IR expression for it's parent's current
// position, or the literal 0 for a root iterator.
func (c *Context) parentPos(it iterators.Iterator) ir.Expr {
	parent, ok := it.Parent()
	if !ok {
		return ir.Int(0)
	}
	if pos, ok := c.posOf[parent]; ok {
		return pos
	}
	return ir.Int(0)
}

// accessIterator adapts the context's per-variable lookup into the
// callback lattice.Make needs.
func (c *Context) accessIterator(v notation.IndexVar) func(*notation.Access) iterators.Iterator {
	return func(acc *notation.Access) iterators.Iterator {
		it, _ := c.iteratorFor(acc, v)
		return it
	}
}

// temp returns the scalar variable holding e's hoisted or
// per-child-reduced value, creating and declaring it on first use.
func (c *Context) temp(e notation.IndexExpr, nameHint string) (*ir.Var, bool) {
	if v, ok := c.temps.Load(e); ok {
		return v, true
	}
	tv := &ir.Var{Name: c.Names.Name(nameHint), Typ: e.DataType()}
	c.temps.Store(e, tv)
	return tv, false
}

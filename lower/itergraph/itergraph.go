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

// Package itergraph builds the iteration graph: the forest over index
// variables that determines loop nesting for one assignment.
//
// Every operand's tensor path and the result's tensor path impose a
// local ordering on the variables they mention (storage order); the
// graph must be consistent with all of them simultaneously, or no
// valid loop nest exists (a genuine storage-order conflict, the
// "transposition" error kind). This module resolves the construction
// heuristic the data model leaves open (it specifies only the queries
// the engine needs, not the search a reference implementation might
// perform among several equally valid nestings) by computing one
// topological order consistent with every path's constraints and
// laying the variables out as a single chain along that order. A
// chain is always a valid forest for any acyclic constraint set, so
// construction never has to backtrack; it is more conservative than
// necessary when two variables are truly independent (it still nests
// one under the other rather than running them as sibling loops), but
// the engine's available-expression hoisting (see the exprtools
// package) still produces correct, if not maximally efficient, code
// in that case — the parent-or-sibling choice does not change which
// values get computed, only how many redundant loop headers surround
// them.
package itergraph

import (
	"sort"

	baseiter "github.com/sparsealg/taco/base/iter"
	"github.com/sparsealg/taco/lower/assert"
	"github.com/sparsealg/taco/lower/tensorpath"
	"github.com/sparsealg/taco/notation"
)

// Graph is the iteration graph for one assignment.
type Graph struct {
	vars       []notation.IndexVar
	isFree     map[notation.IndexVar]bool
	parent     map[notation.IndexVar]notation.IndexVar
	hasParent  map[notation.IndexVar]bool
	children   map[notation.IndexVar][]notation.IndexVar
	roots      []notation.IndexVar
	paths      []tensorpath.Path
	resultPath tensorpath.Path
}

// Build constructs the iteration graph for assign, given the already
// computed tensor path of its result and of every operand access on
// its right-hand side.
func Build(assign *notation.Assignment, resultPath tensorpath.Path, operandPaths []tensorpath.Path) *Graph {
	g := &Graph{
		isFree:     map[notation.IndexVar]bool{},
		parent:     map[notation.IndexVar]notation.IndexVar{},
		hasParent:  map[notation.IndexVar]bool{},
		children:   map[notation.IndexVar][]notation.IndexVar{},
		paths:      operandPaths,
		resultPath: resultPath,
	}

	var order []notation.IndexVar
	seen := map[notation.IndexVar]bool{}
	addVar := func(v notation.IndexVar) {
		if !seen[v] {
			seen[v] = true
			order = append(order, v)
		}
	}
	for _, v := range resultPath.Variables() {
		addVar(v)
		g.isFree[v] = true
	}
	var operandVars [][]notation.IndexVar
	for _, p := range operandPaths {
		operandVars = append(operandVars, p.Variables())
	}
	for v := range baseiter.All(operandVars...) {
		addVar(v)
	}

	edges := map[notation.IndexVar]map[notation.IndexVar]bool{}
	addEdge := func(before, after notation.IndexVar) {
		if before == after {
			return
		}
		if edges[before] == nil {
			edges[before] = map[notation.IndexVar]bool{}
		}
		edges[before][after] = true
	}
	addChainEdges := func(vars []notation.IndexVar) {
		for i := 1; i < len(vars); i++ {
			addEdge(vars[i-1], vars[i])
		}
	}
	// The result's own dimension order fixes the relative order among
	// free variables; no operand's storage order may override it.
	addChainEdges(resultPath.Variables())
	// Within one operand path, two reduction variables keep that path's
	// relative storage order (there is no other constraint to prefer),
	// but a free/reduction pair is ordered by free-ness alone: a
	// reduction variable must nest under every free variable it shares
	// an access with, regardless of which one that access happens to
	// store outermost, or the result could not be assembled or
	// accumulated into incrementally as the reduction advances.
	for _, p := range operandPaths {
		vars := p.Variables()
		for a, u := range vars {
			for _, w := range vars[a+1:] {
				switch {
				case g.isFree[u] && g.isFree[w]:
					// Ordered by the result path alone.
				case g.isFree[u]:
					addEdge(u, w)
				case g.isFree[w]:
					addEdge(w, u)
				default:
					addEdge(u, w)
				}
			}
		}
	}

	chain := topoSort(order, edges)
	g.vars = chain
	for i := 1; i < len(chain); i++ {
		g.setParent(chain[i], chain[i-1])
	}
	if len(chain) > 0 {
		g.roots = []notation.IndexVar{chain[0]}
	}
	return g
}

// topoSort returns vars in an order consistent with edges (before ->
// after), breaking ties by vars' original order for determinism.
// Kahn's algorithm; a remaining cycle (a storage-order conflict
// between two operand/result paths) is reported as the "transposition"
// error kind, matching the error handling design's table.
func topoSort(vars []notation.IndexVar, edges map[notation.IndexVar]map[notation.IndexVar]bool) []notation.IndexVar {
	indexOf := make(map[notation.IndexVar]int, len(vars))
	for i, v := range vars {
		indexOf[v] = i
	}
	inDegree := make(map[notation.IndexVar]int, len(vars))
	for _, v := range vars {
		inDegree[v] = 0
	}
	for _, outs := range edges {
		for w := range outs {
			inDegree[w]++
		}
	}

	var ready []notation.IndexVar
	for _, v := range vars {
		if inDegree[v] == 0 {
			ready = append(ready, v)
		}
	}

	var out []notation.IndexVar
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return indexOf[ready[i]] < indexOf[ready[j]] })
		v := ready[0]
		ready = ready[1:]
		out = append(out, v)
		for w := range edges[v] {
			inDegree[w]--
			if inDegree[w] == 0 {
				ready = append(ready, w)
			}
		}
	}

	assert.Truef(len(out) == len(vars), "transposition",
		"operand and result access orders impose a cyclic constraint on %d index variables; no valid loop nest exists", len(vars)-len(out))
	return out
}

func (g *Graph) setParent(v, parent notation.IndexVar) {
	g.parent[v] = parent
	g.hasParent[v] = true
	g.children[parent] = append(g.children[parent], v)
}

// Roots returns the index variables with no parent. With this
// module's chain construction there is always exactly one, unless the
// assignment has no index variables at all.
func (g *Graph) Roots() []notation.IndexVar { return append([]notation.IndexVar(nil), g.roots...) }

// Children returns v's direct children, in the order they were added.
func (g *Graph) Children(v notation.IndexVar) []notation.IndexVar {
	return append([]notation.IndexVar(nil), g.children[v]...)
}

// Ancestors returns v's strict ancestors, nearest first.
func (g *Graph) Ancestors(v notation.IndexVar) []notation.IndexVar {
	var out []notation.IndexVar
	cur := v
	for {
		p, ok := g.parent[cur]
		if !ok {
			return out
		}
		out = append(out, p)
		cur = p
	}
}

// Descendants returns every variable in the subtree rooted at v,
// excluding v itself, in pre-order.
func (g *Graph) Descendants(v notation.IndexVar) []notation.IndexVar {
	var out []notation.IndexVar
	var walk func(notation.IndexVar)
	walk = func(u notation.IndexVar) {
		for _, c := range g.children[u] {
			out = append(out, c)
			walk(c)
		}
	}
	walk(v)
	return out
}

// IsReduction reports whether v does not appear on the assignment's
// left-hand side.
func (g *Graph) IsReduction(v notation.IndexVar) bool { return !g.isFree[v] }

// HasFreeVariableDescendant reports whether any strict descendant of v
// is a free variable.
func (g *Graph) HasFreeVariableDescendant(v notation.IndexVar) bool {
	for _, d := range g.Descendants(v) {
		if g.isFree[d] {
			return true
		}
	}
	return false
}

// HasReductionVariableAncestor reports whether any strict ancestor of
// v is a reduction variable.
func (g *Graph) HasReductionVariableAncestor(v notation.IndexVar) bool {
	for _, a := range g.Ancestors(v) {
		if !g.isFree[a] {
			return true
		}
	}
	return false
}

// IsLastFreeVariable reports whether v is free and no strict
// descendant of v is also free: the level at which the engine must
// emit the compute for this assignment (everything further down is
// pure reduction).
func (g *Graph) IsLastFreeVariable(v notation.IndexVar) bool {
	return g.isFree[v] && !g.HasFreeVariableDescendant(v)
}

// TensorPaths returns the operand tensor paths the graph was built
// from.
func (g *Graph) TensorPaths() []tensorpath.Path { return g.paths }

// ResultTensorPath returns the result's tensor path.
func (g *Graph) ResultTensorPath() tensorpath.Path { return g.resultPath }

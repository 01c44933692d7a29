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

// Package exprtools extracts and projects sub-expressions of an
// index-notation expression relative to a set of "already bound"
// index variables: the available-expression analysis the lowering
// engine uses to hoist loop-invariant sub-computations and to project
// an expression down to the portion a given iteration-graph child is
// responsible for.
package exprtools

import "github.com/sparsealg/taco/notation"

// varSet is a small membership set of index variables, built once per
// query and checked by value rather than by repeatedly scanning a
// slice.
type varSet map[notation.IndexVar]bool

func newVarSet(vars []notation.IndexVar) varSet {
	s := make(varSet, len(vars))
	for _, v := range vars {
		s[v] = true
	}
	return s
}

// boundIn reports whether every variable e's accesses use is in bound.
func boundIn(e notation.IndexExpr, bound varSet) bool {
	for _, v := range notation.Vars(e) {
		if !bound[v] {
			return false
		}
	}
	return true
}

// AvailableExpressions returns the maximal sub-expressions of e whose
// every accessed tensor's index variables are all in bound: expressions
// that are safe to hoist into a temporary above a loop over any
// variable not in bound. "Maximal" means a node is returned only when
// none of its ancestors in e also qualifies; the recursion stops
// descending into a node the instant it qualifies.
func AvailableExpressions(e notation.IndexExpr, bound []notation.IndexVar) []notation.IndexExpr {
	set := newVarSet(bound)
	var out []notation.IndexExpr
	var walk func(notation.IndexExpr)
	walk = func(e notation.IndexExpr) {
		if boundIn(e, set) {
			out = append(out, e)
			return
		}
		for _, op := range e.Operands() {
			walk(op)
		}
	}
	walk(e)
	return out
}

// GetAvailableExpressions finds the expressions of e that can be
// hoisted above the loop for a variable whose already-bound ancestors
// are ancestors.
func GetAvailableExpressions(e notation.IndexExpr, ancestors []notation.IndexVar) []notation.IndexExpr {
	return AvailableExpressions(e, ancestors)
}

// SubExpr projects e to the portion of it whose value depends on at
// least one variable in vars: additive terms (of Add and Sub nodes)
// that depend on none of vars are dropped, a lone surviving subtrahend
// is negated, and any other node (a product, quotient, unary or leaf)
// is kept whole if any part of it depends on vars and dropped
// otherwise. It returns nil when nothing in e depends on vars. The
// engine does not call it; it uses SubExprOld.
func SubExpr(e notation.IndexExpr, vars []notation.IndexVar) notation.IndexExpr {
	set := newVarSet(vars)
	result, ok := subExpr(e, set)
	if !ok {
		return nil
	}
	return result
}

func subExpr(e notation.IndexExpr, vars varSet) (notation.IndexExpr, bool) {
	switch n := e.(type) {
	case *notation.AddExpr:
		a, aok := subExpr(n.A, vars)
		b, bok := subExpr(n.B, vars)
		switch {
		case aok && bok:
			return &notation.AddExpr{A: a, B: b}, true
		case aok:
			return a, true
		case bok:
			return b, true
		default:
			return nil, false
		}
	case *notation.SubExpr:
		a, aok := subExpr(n.A, vars)
		b, bok := subExpr(n.B, vars)
		switch {
		case aok && bok:
			return &notation.SubExpr{A: a, B: b}, true
		case aok:
			return a, true
		case bok:
			return &notation.NegExpr{A: b}, true
		default:
			return nil, false
		}
	default:
		// Multiplicative, unary, and leaf nodes are not safe to split
		// further: a factor of a product that doesn't mention vars is
		// still needed to scale the factor that does, so either the
		// whole node is relevant or none of it is.
		if dependsOnAny(n, vars) {
			return n, true
		}
		return nil, false
	}
}

// SubExprOld is the earlier, syntactically simpler extractor: it keeps
// e unchanged if any part of it depends on vars, and returns nil
// otherwise. It is the extractor the engine calls when projecting an
// expression onto an iteration-graph child: the graph is a single
// chain, so every node has at most one child and no splitting across
// children is needed.
func SubExprOld(e notation.IndexExpr, vars []notation.IndexVar) notation.IndexExpr {
	set := newVarSet(vars)
	if dependsOnAny(e, set) {
		return e
	}
	return nil
}

func dependsOnAny(e notation.IndexExpr, vars varSet) bool {
	for _, v := range notation.Vars(e) {
		if vars[v] {
			return true
		}
	}
	return false
}

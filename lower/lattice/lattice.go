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

// Package lattice builds and queries the merge lattice for one index
// variable and expression: the finite set of operand-subset cases the
// lowering engine must cover to correctly co-iterate every tensor that
// ranges over that variable.
package lattice

import (
	baseiter "github.com/sparsealg/taco/base/iter"
	"github.com/sparsealg/taco/ir"
	"github.com/sparsealg/taco/lower/iterators"
	"github.com/sparsealg/taco/notation"
)

// Point is one element of a merge lattice: the iterators it ranges
// over (whose advancement drives the loop), the iterators it instead
// locates through (random access at the merged coordinate), and the
// residual expression valid when this point is selected.
type Point struct {
	Range    []iterators.Iterator
	Locate   []iterators.Iterator
	Residual notation.IndexExpr
}

// Lattice is the full set of points for one (indexVar, expression)
// pair, unordered except that Top returns the widest one.
type Lattice struct {
	Points []Point
}

// AccessIterator maps an Access node appearing in the expression to
// the iterator that walks the tensor level bound to the variable the
// lattice is being built for, e.g. the iterator for B's k-level when
// building the lattice for k over B(i,k)*C(k,j).
type AccessIterator func(*notation.Access) iterators.Iterator

// Make builds the merge lattice for v over e, recursing through e's
// operator tree: Access nodes that use v become singleton points
// (step 1 of the merge-lattice construction); Add/Sub combine their
// operands' lattices by union, Mul/Div by intersection (step 2); an
// Access or literal that does not use v at all becomes a single
// "pseudo" point with no range iterators, carrying its value along as
// an unconditionally-present residual term.
func Make(v notation.IndexVar, e notation.IndexExpr, iterOf AccessIterator) *Lattice {
	points := build(v, e, iterOf)
	return &Lattice{Points: demoteAll(points)}
}

func build(v notation.IndexVar, e notation.IndexExpr, iterOf AccessIterator) []Point {
	switch n := e.(type) {
	case *notation.Access:
		for _, av := range n.Vars {
			if av == v {
				return []Point{{Range: []iterators.Iterator{iterOf(n)}, Residual: n}}
			}
		}
		return []Point{{Residual: n}}
	case *notation.LiteralExpr:
		return []Point{{Residual: n}}
	case *notation.NegExpr:
		return wrapUnary(build(v, n.A, iterOf), func(x notation.IndexExpr) notation.IndexExpr {
			return &notation.NegExpr{A: x}
		})
	case *notation.SqrtExpr:
		return wrapUnary(build(v, n.A, iterOf), func(x notation.IndexExpr) notation.IndexExpr {
			return &notation.SqrtExpr{A: x}
		})
	case *notation.AddExpr:
		return unionCombine(build(v, n.A, iterOf), build(v, n.B, iterOf), func(a, b notation.IndexExpr) notation.IndexExpr {
			return &notation.AddExpr{A: a, B: b}
		})
	case *notation.SubExpr:
		return unionCombine(build(v, n.A, iterOf), build(v, n.B, iterOf), func(a, b notation.IndexExpr) notation.IndexExpr {
			return &notation.SubExpr{A: a, B: b}
		})
	case *notation.MulExpr:
		return intersectionCombine(build(v, n.A, iterOf), build(v, n.B, iterOf), func(a, b notation.IndexExpr) notation.IndexExpr {
			return &notation.MulExpr{A: a, B: b}
		})
	case *notation.DivExpr:
		return intersectionCombine(build(v, n.A, iterOf), build(v, n.B, iterOf), func(a, b notation.IndexExpr) notation.IndexExpr {
			return &notation.DivExpr{A: a, B: b}
		})
	default:
		panic("lattice: unhandled IndexExpr node type")
	}
}

func wrapUnary(points []Point, wrap func(notation.IndexExpr) notation.IndexExpr) []Point {
	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = Point{Range: p.Range, Locate: p.Locate, Residual: wrap(p.Residual)}
	}
	return out
}

func mergeIterators(a, b []iterators.Iterator) []iterators.Iterator {
	seen := make(map[iterators.Iterator]bool, len(a)+len(b))
	out := make([]iterators.Iterator, 0, len(a)+len(b))
	for it := range baseiter.All(a, b) {
		if !seen[it] {
			seen[it] = true
			out = append(out, it)
		}
	}
	return out
}

func unionCombine(a, b []Point, combine func(x, y notation.IndexExpr) notation.IndexExpr) []Point {
	out := make([]Point, 0, len(a)+len(b)+len(a)*len(b))
	out = append(out, a...)
	out = append(out, b...)
	for _, p := range a {
		for _, q := range b {
			out = append(out, Point{
				Range:    mergeIterators(p.Range, q.Range),
				Locate:   mergeIterators(p.Locate, q.Locate),
				Residual: combine(p.Residual, q.Residual),
			})
		}
	}
	return out
}

func intersectionCombine(a, b []Point, combine func(x, y notation.IndexExpr) notation.IndexExpr) []Point {
	out := make([]Point, 0, len(a)*len(b))
	for _, p := range a {
		for _, q := range b {
			out = append(out, Point{
				Range:    mergeIterators(p.Range, q.Range),
				Locate:   mergeIterators(p.Locate, q.Locate),
				Residual: combine(p.Residual, q.Residual),
			})
		}
	}
	return out
}

// demoteAll applies the Locate-demotion optimization to every point: a
// range iterator whose level supports Locate is moved to Locate when
// some other iterator remains to drive the merge.
func demoteAll(points []Point) []Point {
	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = demote(p)
	}
	return out
}

func demote(p Point) Point {
	if len(p.Range) < 2 {
		return p
	}
	var lockable, unlockable []iterators.Iterator
	hasLocate := iterators.Iterator.HasLocate
	lacksLocate := func(it iterators.Iterator) bool { return !it.HasLocate() }
	for it := range baseiter.Filter(hasLocate, p.Range) {
		lockable = append(lockable, it)
	}
	for it := range baseiter.Filter(lacksLocate, p.Range) {
		unlockable = append(unlockable, it)
	}
	if len(lockable) == 0 {
		return p
	}
	var newRange []iterators.Iterator
	var demoted []iterators.Iterator
	if len(unlockable) > 0 {
		newRange = unlockable
		demoted = lockable
	} else {
		newRange = lockable[:1]
		demoted = lockable[1:]
	}
	if len(demoted) == 0 {
		return p
	}
	return Point{
		Range:    newRange,
		Locate:   append(append([]iterators.Iterator{}, p.Locate...), demoted...),
		Residual: p.Residual,
	}
}

// Top returns the widest point: the one covering the most iterators
// overall. Ties are broken by first occurrence.
func (l *Lattice) Top() Point {
	best := l.Points[0]
	bestSize := len(best.Range) + len(best.Locate)
	for _, p := range l.Points[1:] {
		if size := len(p.Range) + len(p.Locate); size > bestSize {
			best, bestSize = p, size
		}
	}
	return best
}

// GetRangeIterators returns the range iterators of the top point.
func (l *Lattice) GetRangeIterators() []iterators.Iterator { return l.Top().Range }

func coversRangeSubset(q, p Point) bool {
	have := make(map[iterators.Iterator]bool, len(p.Range))
	for _, it := range p.Range {
		have[it] = true
	}
	for _, it := range q.Range {
		if !have[it] {
			return false
		}
	}
	return true
}

// GetSubLattice returns the downward-closure of p: every point q with
// q's range iterators a subset of p's.
func (l *Lattice) GetSubLattice(p Point) []Point {
	var out []Point
	for _, q := range l.Points {
		if coversRangeSubset(q, p) {
			out = append(out, q)
		}
	}
	return out
}

// IsFull reports whether the top point's range includes a Full level.
// The engine passes it to ir.MakeCase as the case's AlwaysMatch flag;
// the merge loop's exhaustion check is not changed by it.
func (l *Lattice) IsFull() bool {
	for _, it := range l.Top().Range {
		if it.IsFull() {
			return true
		}
	}
	return false
}

// ExhaustedIterators returns the iterators present in top's range but
// absent from sub's: the accesses the engine should treat as
// producing no further values for the remainder of this sub-lattice's
// case.
func ExhaustedIterators(top, sub Point) []iterators.Iterator {
	have := make(map[iterators.Iterator]bool, len(sub.Range))
	for _, it := range sub.Range {
		have[it] = true
	}
	var out []iterators.Iterator
	for _, it := range top.Range {
		if !have[it] {
			out = append(out, it)
		}
	}
	return out
}

// IndicatorMask encodes, as a literal bitmask over top's order, which
// iterators of top are also present in subset: bit i is set iff
// top[i] is in subset. Used both as the runtime indicator the engine
// computes while finding the merged coordinate and as a switch-merge
// case's literal selector.
func IndicatorMask(top []iterators.Iterator, subset []iterators.Iterator) *ir.Literal {
	set := make(map[iterators.Iterator]bool, len(subset))
	for _, it := range subset {
		set[it] = true
	}
	var mask int64
	for i, it := range top {
		if set[it] {
			mask |= 1 << uint(i)
		}
	}
	return ir.Int(mask)
}

// SwitchMergeEligible reports whether the lattice is a perfect
// 2^k-1 cover of its top's k range iterators with k >= 3: every
// non-empty subset of the top's range appears as at least one point's
// range, letting the engine dispatch cases with a single bitmask
// switch instead of a chain of if/else guards.
func (l *Lattice) SwitchMergeEligible() bool {
	top := l.Top()
	k := len(top.Range)
	if k < 3 {
		return false
	}
	want := (1 << uint(k)) - 1
	seen := make(map[int64]bool, want)
	for _, p := range l.Points {
		mask := IndicatorMask(top.Range, p.Range).Value.(int64)
		if mask == 0 {
			continue
		}
		seen[mask] = true
	}
	return len(seen) == want
}

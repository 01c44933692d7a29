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

// Package iterators turns tensor paths into Iterator objects: one per
// (tensor path, step), each exposing the capability predicates and
// IR-producing operations the lowering engine drives. Iterators would
// naturally form a tree through parent pointers, but Go structs can't
// hold cycles of typed pointers into themselves cleanly when the tree
// is built incrementally across many tensor paths that share prefixes
// only by index variable, not by identity — so instead every Iterator
// is a small value handle (an arena index plus a back-pointer to its
// Iterators) and the actual per-level state lives in a flat arena
// slice owned by Iterators. Handles are cheap to copy and compare.
package iterators

import (
	"fmt"

	"github.com/gx-org/backend/dtype"

	"github.com/sparsealg/taco/ir"
	"github.com/sparsealg/taco/lower/tensorpath"
	"github.com/sparsealg/taco/notation"
)

// id indexes into an Iterators arena, starting at 0 for the first
// iterator added. noParent (-1) marks a level with no parent; the zero
// Iterator value is recognized as empty by its nil arena, not its id.
type id int

const noParent id = -1

// NameGen allocates symbol names that are unique within one lowering. *lower.NameGen
// satisfies this trivially; it is expressed as an interface here so
// this package does not need to import the root lowering package
// (which imports this one).
type NameGen interface {
	Name(root string) string
}

type varSet struct {
	iterVar, endVar, derivedVar, validVar, posVar, beginVar, segendVar *ir.Var
}

type data struct {
	level    notation.Level
	idxVar   notation.IndexVar
	parent   id
	tensorIR *ir.Var
	mode     int
	isResult bool
	baseName string
	vars     varSet
}

// Iterators is the arena of all iterators created while lowering one
// assignment: one set of steps per operand access plus one for the
// result.
type Iterators struct {
	arena []data
	names NameGen
}

// New returns an empty Iterators arena using names for symbol
// allocation.
func New(names NameGen) *Iterators {
	return &Iterators{names: names}
}

// AddPath creates one Iterator per step of path, chained to each other
// by parent id (step i's parent is step i-1; step 0 has no parent).
// tensorIR is the IR pointer variable standing for path's tensor
// argument. The returned slice is in storage order.
func (its *Iterators) AddPath(path tensorpath.Path, tensorIR *ir.Var, isResult bool) []Iterator {
	parent := noParent
	out := make([]Iterator, path.Len())
	for i, step := range path.Steps {
		newID := id(len(its.arena))
		its.arena = append(its.arena, data{
			level:    step.Level,
			idxVar:   step.IdxVar,
			parent:   parent,
			tensorIR: tensorIR,
			mode:     i,
			isResult: isResult,
			baseName: fmt.Sprintf("%s%d", tensorIR.Name, i),
		})
		out[i] = Iterator{id: newID, its: its}
		parent = newID
	}
	return out
}

// Iterator is a handle to one level's iterator state. The zero value
// is not usable; handles are obtained from AddPath or from Parent.
type Iterator struct {
	id  id
	its *Iterators
}

func (it Iterator) d() *data { return &it.its.arena[it.id] }

// Valid reports whether it is a non-zero handle.
func (it Iterator) Valid() bool { return it.its != nil }

// IndexVar returns the index variable this level is bound to.
func (it Iterator) IndexVar() notation.IndexVar { return it.d().idxVar }

// IsResult reports whether this iterator belongs to the result's
// tensor path rather than an operand's.
func (it Iterator) IsResult() bool { return it.d().isResult }

// Mode returns this level's 0-based position within its tensor's
// storage format.
func (it Iterator) Mode() int { return it.d().mode }

// Level returns the storage level this iterator walks.
func (it Iterator) Level() notation.Level { return it.d().level }

// Parent returns the iterator for the level above this one in the
// same tensor path, or ok=false at the root level.
func (it Iterator) Parent() (parent Iterator, ok bool) {
	p := it.d().parent
	if p == noParent {
		return Iterator{}, false
	}
	return Iterator{id: p, its: it.its}, true
}

// String names the iterator by its tensor and storage level, for
// debug printing and panic messages.
func (it Iterator) String() string { return it.d().baseName }

func (it Iterator) caps() notation.Capability { return it.d().level.Capabilities() }

// HasCoordPosIter reports whether this level produces (position,
// coordinate) pairs from a parent position (sparse levels).
func (it Iterator) HasCoordPosIter() bool { return it.caps().Has(notation.CoordPosIter) }

// HasCoordValIter reports whether this level produces coordinate
// values directly over a range (dense levels).
func (it Iterator) HasCoordValIter() bool { return it.caps().Has(notation.CoordValIter) }

// HasLocate reports whether this level can compute a child position
// from a coordinate in O(1).
func (it Iterator) HasLocate() bool { return it.caps().Has(notation.Locate) }

// HasInsert reports whether this level supports random (pos, coord)
// writes.
func (it Iterator) HasInsert() bool { return it.caps().Has(notation.Insert) }

// HasAppend reports whether this level supports append-only coordinate
// emission.
func (it Iterator) HasAppend() bool { return it.caps().Has(notation.Append) }

// IsUnique reports whether this level's coordinates within any one
// segment are guaranteed distinct.
func (it Iterator) IsUnique() bool { return it.caps().Has(notation.Unique) }

// IsFull reports whether this level iterates exactly [0, size) with no
// gaps.
func (it Iterator) IsFull() bool { return it.caps().Has(notation.Full) }

// IsBranchless reports whether this level has at most one child per
// parent position.
func (it Iterator) IsBranchless() bool { return it.caps().Has(notation.Branchless) }

func (it Iterator) name(suffix string) string {
	return it.its.names.Name(it.d().baseName + suffix)
}

// IterVar is the position cursor driving this level's own loop: the
// value that ranges over [posBegin, posEnd).
func (it Iterator) IterVar() *ir.Var {
	d := it.d()
	if d.vars.iterVar == nil {
		d.vars.iterVar = ir.IntVar(it.name("_pos"))
	}
	return d.vars.iterVar
}

// EndVar is this level's segment end, the exclusive upper bound of the
// range IterVar walks.
func (it Iterator) EndVar() *ir.Var {
	d := it.d()
	if d.vars.endVar == nil {
		d.vars.endVar = ir.IntVar(it.name("_end"))
	}
	return d.vars.endVar
}

// DerivedVar holds the coordinate dereferenced at the iterator's
// current position.
func (it Iterator) DerivedVar() *ir.Var {
	d := it.d()
	if d.vars.derivedVar == nil {
		d.vars.derivedVar = ir.IntVar(it.name("_crd"))
	}
	return d.vars.derivedVar
}

// ValidVar flags whether the most recent dereference produced a
// usable coordinate (false past the end of a non-full level, or when
// a locate missed).
func (it Iterator) ValidVar() *ir.Var {
	d := it.d()
	if d.vars.validVar == nil {
		d.vars.validVar = ir.BoolVar(it.name("_valid"))
	}
	return d.vars.validVar
}

// PosVar holds the position this iterator computes for its child level
// (via locate, insert, or append), as opposed to IterVar's role as a
// range cursor over this level's own segment.
func (it Iterator) PosVar() *ir.Var {
	d := it.d()
	if d.vars.posVar == nil {
		d.vars.posVar = ir.IntVar(it.name("_childpos"))
	}
	return d.vars.posVar
}

// BeginVar records the segment start stashed before an append loop, so
// the epilogue can report [begin, pos) as the written segment.
func (it Iterator) BeginVar() *ir.Var {
	d := it.d()
	if d.vars.beginVar == nil {
		d.vars.beginVar = ir.IntVar(it.name("_begin"))
	}
	return d.vars.beginVar
}

// SegendVar is the exclusive end of the current coordinate's run of
// duplicates, for a non-unique coord-pos level.
func (it Iterator) SegendVar() *ir.Var {
	d := it.d()
	if d.vars.segendVar == nil {
		d.vars.segendVar = ir.IntVar(it.name("_segend"))
	}
	return d.vars.segendVar
}

func (it Iterator) property(prop ir.TensorProperty) ir.Expr {
	return &ir.GetProperty{Tensor: it.d().tensorIR, Prop: prop, Mode: it.d().mode, Typ: dtype.Int64}
}

// Dimension is the logical size of this level's dimension.
func (it Iterator) Dimension() ir.Expr {
	return &ir.GetProperty{Tensor: it.d().tensorIR, Prop: ir.Dimension, Mode: it.d().mode, Typ: dtype.Int64}
}

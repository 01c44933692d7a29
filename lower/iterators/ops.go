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

package iterators

import (
	"github.com/sparsealg/taco/ir"
	"github.com/sparsealg/taco/lower/assert"
)

// GetSegend computes the exclusive end of the run of adjacent positions
// that all carry the coordinate already loaded into derived, for a
// non-unique CoordPosIter level: the scan that lets the merge consume
// a whole duplicate run as a single step rather than revisiting the
// same coordinate once per stored entry.
func (it Iterator) GetSegend(pos, derived ir.Expr) (prelude []ir.Stmt, segend ir.Expr) {
	assert.CapabilityMismatch(it.HasCoordPosIter(), "%s has no CoordPosIter to compute a duplicate run on", it)
	idxArr := it.property(ir.Idx)
	prelude = []ir.Stmt{
		&ir.VarAssign{Lhs: it.SegendVar(), Rhs: ir.Simplify(ir.Add(pos, ir.Int(1))), Decl: true},
		&ir.While{
			Cond: ir.And(ir.Lt(it.SegendVar(), it.EndVar()), ir.Eq(&ir.Load{Arr: idxArr, Loc: it.SegendVar()}, derived)),
			Body: &ir.VarAssign{Lhs: it.SegendVar(), Rhs: ir.Simplify(ir.Add(it.SegendVar(), ir.Int(1)))},
		},
	}
	return prelude, it.SegendVar()
}

// GetPosIter produces the [begin, end) position range for a
// CoordPosIter level given the parent's current position, declaring
// IterVar/EndVar as it goes.
func (it Iterator) GetPosIter(parentPos ir.Expr) (prelude []ir.Stmt, begin, end ir.Expr) {
	assert.CapabilityMismatch(it.HasCoordPosIter(), "%s has no CoordPosIter to iterate positions with", it)
	posArr := it.property(ir.Pos)
	begin = &ir.Load{Arr: posArr, Loc: parentPos}
	end = &ir.Load{Arr: posArr, Loc: ir.Simplify(ir.Add(parentPos, ir.Int(1)))}
	prelude = []ir.Stmt{
		&ir.VarAssign{Lhs: it.IterVar(), Rhs: begin, Decl: true},
		&ir.VarAssign{Lhs: it.EndVar(), Rhs: end, Decl: true},
	}
	return prelude, it.IterVar(), it.EndVar()
}

// GetCoordIter produces the [0, dimSize) range for a CoordValIter
// (dense) level.
func (it Iterator) GetCoordIter() (prelude []ir.Stmt, begin, end ir.Expr) {
	assert.CapabilityMismatch(it.HasCoordValIter(), "%s has no CoordValIter to iterate coordinates with", it)
	prelude = []ir.Stmt{
		&ir.VarAssign{Lhs: it.IterVar(), Rhs: ir.Int(0), Decl: true},
		&ir.VarAssign{Lhs: it.EndVar(), Rhs: it.Dimension(), Decl: true},
	}
	return prelude, it.IterVar(), it.EndVar()
}

// GetPosAccess loads the coordinate stored at pos on a CoordPosIter
// level. The result is always valid: a position inside [begin, end)
// necessarily names a present coordinate.
func (it Iterator) GetPosAccess(pos ir.Expr) (prelude []ir.Stmt, coord, valid ir.Expr) {
	assert.CapabilityMismatch(it.HasCoordPosIter(), "%s has no CoordPosIter to dereference a position with", it)
	idxArr := it.property(ir.Idx)
	coord = &ir.Load{Arr: idxArr, Loc: pos}
	prelude = []ir.Stmt{&ir.VarAssign{Lhs: it.DerivedVar(), Rhs: coord, Decl: true}}
	return prelude, it.DerivedVar(), ir.Bool(true)
}

// GetCoordAccess synthesizes the coordinate for a CoordValIter (dense)
// level: the loop variable already is the coordinate.
func (it Iterator) GetCoordAccess() (prelude []ir.Stmt, coord, valid ir.Expr) {
	assert.CapabilityMismatch(it.HasCoordValIter(), "%s has no CoordValIter to synthesize a coordinate with", it)
	prelude = []ir.Stmt{&ir.VarAssign{Lhs: it.DerivedVar(), Rhs: it.IterVar(), Decl: true}}
	return prelude, it.DerivedVar(), ir.Bool(true)
}

// GetLocate computes this level's child position for coord in O(1)
// given the parent position: childPos = parentPos*dim + coord for a
// dense (or dense-strided fixed) level.
func (it Iterator) GetLocate(parentPos, coord ir.Expr) (prelude []ir.Stmt, childPos, valid ir.Expr) {
	assert.CapabilityMismatch(it.HasLocate(), "%s has no Locate to random-access a coordinate with", it)
	stride := ir.Simplify(ir.Mul(parentPos, it.Dimension()))
	childPos = ir.Simplify(ir.Add(stride, coord))
	prelude = []ir.Stmt{&ir.VarAssign{Lhs: it.PosVar(), Rhs: childPos, Decl: true}}
	return prelude, it.PosVar(), ir.Bool(true)
}

// GetInsertInitCoords prepares [begin, end) of this level's coordinate
// storage for random writes. A dense Insert level has no explicit
// coordinate array (the coordinate is implicit in the position), so
// there is nothing to pre-fill.
func (it Iterator) GetInsertInitCoords(begin, end ir.Expr) []ir.Stmt {
	assert.CapabilityMismatch(it.HasInsert(), "%s has no Insert level to initialize coordinates on", it)
	return nil
}

// GetInsertCoord writes the coordinate at pos on an Insert level. A
// dense level keeps no coordinate array, so this is a no-op.
func (it Iterator) GetInsertCoord(pos, coord ir.Expr) ir.Stmt {
	assert.CapabilityMismatch(it.HasInsert(), "%s has no Insert level to store a coordinate on", it)
	return nil
}

// GetInsertInitLevel prepares this Insert level's storage to grow from
// prevSize to size. A dense level's size is fixed by its logical
// dimension and never grows independently, so this is a no-op.
func (it Iterator) GetInsertInitLevel(prevSize, size ir.Expr) []ir.Stmt {
	assert.CapabilityMismatch(it.HasInsert(), "%s has no Insert level to initialize", it)
	return nil
}

// GetInsertFinalizeLevel finalizes an Insert level's storage after
// compute/assembly. A dense level needs no finalization.
func (it Iterator) GetInsertFinalizeLevel(prevSize, size ir.Expr) []ir.Stmt {
	assert.CapabilityMismatch(it.HasInsert(), "%s has no Insert level to finalize", it)
	return nil
}

// GetAppendInitEdges allocates this level's position (segment
// boundary) array to cover the parent segment [parentBegin,
// parentEnd).
func (it Iterator) GetAppendInitEdges(parentBegin, parentEnd ir.Expr) []ir.Stmt {
	assert.CapabilityMismatch(it.HasAppend(), "%s has no Append level to initialize edges on", it)
	posArr := it.property(ir.Pos)
	size := ir.Simplify(ir.Add(parentEnd, ir.Int(1)))
	return []ir.Stmt{&ir.Allocate{Arr: posArr, Size: size}}
}

// GetAppendCoord appends coord to this level's coordinate array at
// pos.
func (it Iterator) GetAppendCoord(pos, coord ir.Expr) ir.Stmt {
	assert.CapabilityMismatch(it.HasAppend(), "%s has no Append level to append a coordinate to", it)
	idxArr := it.property(ir.Idx)
	return &ir.Store{Arr: idxArr, Loc: pos, Val: coord}
}

// GetAppendEdges records end as the end of parentPos's segment, by
// storing it at parentPos+1 in this level's own position array; begin
// is not stored (the segment's start is the previous entry).
func (it Iterator) GetAppendEdges(parentPos, begin, end ir.Expr) []ir.Stmt {
	assert.CapabilityMismatch(it.HasAppend(), "%s has no Append level to record edges on", it)
	posArr := it.property(ir.Pos)
	loc := ir.Simplify(ir.Add(parentPos, ir.Int(1)))
	return []ir.Stmt{&ir.Store{Arr: posArr, Loc: loc, Val: end}}
}

// GetAppendInitLevel grows this level's coordinate array from
// prevSize to size.
func (it Iterator) GetAppendInitLevel(prevSize, size ir.Expr) []ir.Stmt {
	assert.CapabilityMismatch(it.HasAppend(), "%s has no Append level to grow", it)
	idxArr := it.property(ir.Idx)
	realloc := true
	if v, ok := ir.IsLiteralInt(prevSize); ok && v == 0 {
		realloc = false
	}
	return []ir.Stmt{&ir.Allocate{Arr: idxArr, Size: size, Realloc: realloc}}
}

// GetAppendFinalizeLevel finalizes an Append level. The append path
// already records exact segment boundaries as it goes (GetAppendEdges),
// so there is nothing left to do once the loop exits.
func (it Iterator) GetAppendFinalizeLevel(prevSize, size ir.Expr) []ir.Stmt {
	assert.CapabilityMismatch(it.HasAppend(), "%s has no Append level to finalize", it)
	return nil
}

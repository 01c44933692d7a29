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

// Package ir defines the imperative loop-nest intermediate representation
// produced by the lowering pass. A tree of these nodes describes one
// generated function; the IR builder/printer/JIT backend that turns a tree
// into target code lives outside this module.
package ir

import "github.com/gx-org/backend/dtype"

// Node is any element of the IR tree.
type Node interface {
	// node marks a structure as an IR node.
	// It prevents external implementations of the interface.
	node()
}

// Expr is a node that produces a value.
type Expr interface {
	Node
	expr()

	// Type returns the data type the expression evaluates to.
	Type() dtype.DataType
}

// Stmt is a node with no value, executed for effect.
type Stmt interface {
	Node
	stmt()
}

// TensorProperty identifies a field of a packed tensor argument that
// GetProperty can read: see the persisted state layout in the package
// doc of the lowering engine.
type TensorProperty int

const (
	// Values is the tensor's contiguous value array.
	Values TensorProperty = iota
	// ValuesSize is the number of entries currently stored in Values.
	ValuesSize
	// Dimension is the logical size of one mode of the tensor.
	Dimension
	// Pos is the position (segment) array of one storage level.
	Pos
	// Idx is the coordinate array of one storage level.
	Idx
)

func (p TensorProperty) String() string {
	switch p {
	case Values:
		return "Values"
	case ValuesSize:
		return "ValuesSize"
	case Dimension:
		return "Dimension"
	case Pos:
		return "Pos"
	case Idx:
		return "Idx"
	default:
		return "TensorProperty(?)"
	}
}

// LoopKind is the parallelization attribute attached to a For loop. It is
// declarative: the IR backend, not this package, decides how (or whether)
// to actually dispatch iterations across threads.
type LoopKind int

const (
	// Serial loops run one iteration after another.
	Serial LoopKind = iota
	// Static loops may run in parallel with a static (even) split of the
	// iteration space across workers.
	Static
	// Dynamic loops may run in parallel with work distributed as workers
	// become free.
	Dynamic
)

func (k LoopKind) String() string {
	switch k {
	case Serial:
		return "Serial"
	case Static:
		return "Static"
	case Dynamic:
		return "Dynamic"
	default:
		return "LoopKind(?)"
	}
}

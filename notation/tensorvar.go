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

package notation

import (
	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/backend/shape"
)

// TensorVar is a tensor operand or result: a name, a logical shape, an
// element data type, and a storage Format. A rank-0 TensorVar (no axis
// lengths, empty Format) is a scalar.
type TensorVar struct {
	Name   string
	Shape  *shape.Shape
	Format Format

	assignment *Assignment
}

// NewTensorVar returns a new tensor variable with the given format. The
// shape's axis lengths must have the same rank as the format.
func NewTensorVar(name string, sh *shape.Shape, format Format) *TensorVar {
	return &TensorVar{Name: name, Shape: sh, Format: format}
}

// NewScalar returns a new rank-0 tensor variable.
func NewScalar(name string, dt dtype.DataType) *TensorVar {
	return &TensorVar{Name: name, Shape: &shape.Shape{DType: dt}}
}

// IsScalar reports whether t has rank 0.
func (t *TensorVar) IsScalar() bool { return len(t.Shape.AxisLengths) == 0 }

// DType returns the tensor's element type.
func (t *TensorVar) DType() dtype.DataType { return t.Shape.DType }

// DimSize returns the logical size of dimension (not storage level) d.
func (t *TensorVar) DimSize(d int) int { return t.Shape.AxisLengths[d] }

// SetAssignment attaches the index-notation assignment that computes t's
// value. Only the result tensor of a lowering call has one.
func (t *TensorVar) SetAssignment(a *Assignment) { t.assignment = a }

// Assignment returns the assignment attached by SetAssignment, or nil.
func (t *TensorVar) Assignment() *Assignment { return t.assignment }

func (t *TensorVar) String() string { return t.Name }

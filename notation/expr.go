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
	"fmt"
	"strings"

	"github.com/gx-org/backend/dtype"
)

// IndexExpr is a node of an index-notation expression tree: an access
// into a tensor, a literal, or an arithmetic combination of sub-
// expressions. The node set matches the producer interface's operator
// list (Neg, Add, Sub, Mul, Div, Sqrt, access nodes, literal nodes).
type IndexExpr interface {
	// indexExpr marks a structure as an index-notation expression node.
	indexExpr()

	// Operands returns the node's direct children, in evaluation order.
	Operands() []IndexExpr

	// DataType returns the element type the expression evaluates to.
	DataType() dtype.DataType

	fmt.Stringer
}

type (
	// Access is a use of a tensor in an expression, T(v1,...,vk). An
	// access to a scalar tensor has no index variables.
	Access struct {
		Tensor *TensorVar
		Vars   []IndexVar
	}

	// LiteralExpr is a constant value.
	LiteralExpr struct {
		Typ   dtype.DataType
		Value float64
	}

	// NegExpr negates its operand.
	NegExpr struct{ A IndexExpr }
	// AddExpr adds two operands.
	AddExpr struct{ A, B IndexExpr }
	// SubExpr subtracts its second operand from its first.
	SubExpr struct{ A, B IndexExpr }
	// MulExpr multiplies two operands.
	MulExpr struct{ A, B IndexExpr }
	// DivExpr divides its first operand by its second.
	DivExpr struct{ A, B IndexExpr }
	// SqrtExpr takes the square root of its operand.
	SqrtExpr struct{ A IndexExpr }
)

func (*Access) indexExpr()      {}
func (*LiteralExpr) indexExpr() {}
func (*NegExpr) indexExpr()     {}
func (*AddExpr) indexExpr()     {}
func (*SubExpr) indexExpr()     {}
func (*MulExpr) indexExpr()     {}
func (*DivExpr) indexExpr()     {}
func (*SqrtExpr) indexExpr()    {}

// NewAccess returns an access to a tensor through the given index
// variables, in storage-agnostic (access) order.
func NewAccess(t *TensorVar, vars ...IndexVar) *Access {
	return &Access{Tensor: t, Vars: vars}
}

// Lit returns a constant of the given value and type.
func Lit(value float64, typ dtype.DataType) *LiteralExpr {
	return &LiteralExpr{Typ: typ, Value: value}
}

func (a *Access) Operands() []IndexExpr      { return nil }
func (*LiteralExpr) Operands() []IndexExpr   { return nil }
func (n *NegExpr) Operands() []IndexExpr     { return []IndexExpr{n.A} }
func (n *AddExpr) Operands() []IndexExpr     { return []IndexExpr{n.A, n.B} }
func (n *SubExpr) Operands() []IndexExpr     { return []IndexExpr{n.A, n.B} }
func (n *MulExpr) Operands() []IndexExpr     { return []IndexExpr{n.A, n.B} }
func (n *DivExpr) Operands() []IndexExpr     { return []IndexExpr{n.A, n.B} }
func (n *SqrtExpr) Operands() []IndexExpr    { return []IndexExpr{n.A} }

func (a *Access) DataType() dtype.DataType      { return a.Tensor.DType() }
func (l *LiteralExpr) DataType() dtype.DataType { return l.Typ }
func (n *NegExpr) DataType() dtype.DataType     { return n.A.DataType() }
func (n *AddExpr) DataType() dtype.DataType     { return n.A.DataType() }
func (n *SubExpr) DataType() dtype.DataType     { return n.A.DataType() }
func (n *MulExpr) DataType() dtype.DataType     { return n.A.DataType() }
func (n *DivExpr) DataType() dtype.DataType     { return n.A.DataType() }
func (n *SqrtExpr) DataType() dtype.DataType    { return n.A.DataType() }

func (a *Access) String() string {
	if len(a.Vars) == 0 {
		return a.Tensor.Name
	}
	names := make([]string, len(a.Vars))
	for i, v := range a.Vars {
		names[i] = v.Name
	}
	return fmt.Sprintf("%s(%s)", a.Tensor.Name, strings.Join(names, ","))
}

func (l *LiteralExpr) String() string { return fmt.Sprintf("%v", l.Value) }
func (n *NegExpr) String() string     { return fmt.Sprintf("-%s", n.A) }
func (n *AddExpr) String() string     { return fmt.Sprintf("(%s + %s)", n.A, n.B) }
func (n *SubExpr) String() string     { return fmt.Sprintf("(%s - %s)", n.A, n.B) }
func (n *MulExpr) String() string     { return fmt.Sprintf("(%s * %s)", n.A, n.B) }
func (n *DivExpr) String() string     { return fmt.Sprintf("(%s / %s)", n.A, n.B) }
func (n *SqrtExpr) String() string    { return fmt.Sprintf("sqrt(%s)", n.A) }

// Vars returns the index variables used directly by an access, or
// recursively collects every index variable referenced anywhere in an
// arbitrary expression (deduplicated, first-seen order).
func Vars(e IndexExpr) []IndexVar {
	var out []IndexVar
	seen := map[IndexVar]bool{}
	var walk func(IndexExpr)
	walk = func(e IndexExpr) {
		if acc, ok := e.(*Access); ok {
			for _, v := range acc.Vars {
				if !seen[v] {
					seen[v] = true
					out = append(out, v)
				}
			}
			return
		}
		for _, op := range e.Operands() {
			walk(op)
		}
	}
	walk(e)
	return out
}

// Accesses recursively collects every Access node in e, in traversal
// order, including duplicates.
func Accesses(e IndexExpr) []*Access {
	var out []*Access
	var walk func(IndexExpr)
	walk = func(e IndexExpr) {
		if acc, ok := e.(*Access); ok {
			out = append(out, acc)
			return
		}
		for _, op := range e.Operands() {
			walk(op)
		}
	}
	walk(e)
	return out
}

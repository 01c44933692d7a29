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

package ir

import (
	"go/token"

	"github.com/gx-org/backend/dtype"
)

type (
	// Var is a reference to a named IR variable: a scalar temporary, loop
	// cursor, or (when Ptr is set) a pointer to a packed tensor argument.
	Var struct {
		Name string
		Typ  dtype.DataType
		Ptr  bool
	}

	// Literal is a constant value.
	Literal struct {
		Typ   dtype.DataType
		Value any
	}

	// Load reads one element of an array at a position.
	Load struct {
		Arr Expr
		Loc Expr
	}

	// GetProperty reads a field out of a packed tensor argument: its value
	// array, the number of values currently stored, the size of one of its
	// logical dimensions, or the position/coordinate array of one of its
	// storage levels (Mode is the 0-based level index; ignored for Values
	// and ValuesSize).
	GetProperty struct {
		Tensor Expr
		Prop   TensorProperty
		Mode   int
		Typ    dtype.DataType
	}

	// BinaryExpr applies a binary operator. Op is one of the arithmetic,
	// comparison, or logical tokens (token.ADD, SUB, MUL, QUO, EQL, NEQ,
	// LSS, LEQ, LAND, LOR, AND for the abstract BitAnd node).
	BinaryExpr struct {
		Op   token.Token
		X, Y Expr
	}

	// UnaryExpr applies a unary operator (Neg or Sqrt) to X.
	UnaryExpr struct {
		Op UnaryOp
		X  Expr
	}

	// CastExpr converts X to a different data type.
	CastExpr struct {
		X   Expr
		Typ dtype.DataType
	}
)

// UnaryOp distinguishes the unary node kinds that do not have a natural
// go/token equivalent.
type UnaryOp int

const (
	// Neg negates its operand.
	Neg UnaryOp = iota
	// Sqrt takes the square root of its operand.
	Sqrt
)

func (op UnaryOp) String() string {
	switch op {
	case Neg:
		return "-"
	case Sqrt:
		return "sqrt"
	default:
		return "UnaryOp(?)"
	}
}

func (*Var) node()         {}
func (*Literal) node()     {}
func (*Load) node()        {}
func (*GetProperty) node() {}
func (*BinaryExpr) node()  {}
func (*UnaryExpr) node()   {}
func (*CastExpr) node()    {}

func (*Var) expr()         {}
func (*Literal) expr()     {}
func (*Load) expr()        {}
func (*GetProperty) expr() {}
func (*BinaryExpr) expr()  {}
func (*UnaryExpr) expr()   {}
func (*CastExpr) expr()    {}

// Type returns the variable's data type.
func (v *Var) Type() dtype.DataType { return v.Typ }

// Type returns the literal's data type.
func (l *Literal) Type() dtype.DataType { return l.Typ }

// Type returns the element type of the array being loaded.
func (l *Load) Type() dtype.DataType { return l.Arr.Type() }

// Type returns the property's data type.
func (g *GetProperty) Type() dtype.DataType { return g.Typ }

// Type returns the result type of the binary operator: Bool for
// comparisons and logical ops, otherwise the type of the first operand.
func (b *BinaryExpr) Type() dtype.DataType {
	switch b.Op {
	case token.EQL, token.NEQ, token.LSS, token.LEQ, token.LAND, token.LOR:
		return dtype.Bool
	default:
		return b.X.Type()
	}
}

// Type returns the operand's data type.
func (u *UnaryExpr) Type() dtype.DataType { return u.X.Type() }

// Type returns the cast's target data type.
func (c *CastExpr) Type() dtype.DataType { return c.Typ }

// IntVar returns a new integer-typed variable.
func IntVar(name string) *Var { return &Var{Name: name, Typ: dtype.Int64} }

// BoolVar returns a new boolean-typed variable.
func BoolVar(name string) *Var { return &Var{Name: name, Typ: dtype.Bool} }

// TensorVar returns a new pointer-typed variable standing for a packed
// tensor argument or result.
func TensorVar(name string, typ dtype.DataType) *Var {
	return &Var{Name: name, Typ: typ, Ptr: true}
}

// Int returns an integer literal.
func Int(v int64) *Literal { return &Literal{Typ: dtype.Int64, Value: v} }

// Float returns a double-precision literal.
func Float(v float64) *Literal { return &Literal{Typ: dtype.Float64, Value: v} }

// Bool returns a boolean literal.
func Bool(v bool) *Literal { return &Literal{Typ: dtype.Bool, Value: v} }

// IsLiteralInt reports whether e is an integer literal, returning its value.
func IsLiteralInt(e Expr) (int64, bool) {
	lit, ok := e.(*Literal)
	if !ok {
		return 0, false
	}
	v, ok := lit.Value.(int64)
	return v, ok
}

// IsLiteralBool reports whether e is a boolean literal, returning its value.
func IsLiteralBool(e Expr) (bool, bool) {
	lit, ok := e.(*Literal)
	if !ok {
		return false, false
	}
	v, ok := lit.Value.(bool)
	return v, ok
}

// IsTrue reports whether e is the literal true.
func IsTrue(e Expr) bool {
	v, ok := IsLiteralBool(e)
	return ok && v
}

func bin(op token.Token, x, y Expr) Expr { return &BinaryExpr{Op: op, X: x, Y: y} }

// Add returns x + y.
func Add(x, y Expr) Expr { return bin(token.ADD, x, y) }

// Sub returns x - y.
func Sub(x, y Expr) Expr { return bin(token.SUB, x, y) }

// Mul returns x * y.
func Mul(x, y Expr) Expr { return bin(token.MUL, x, y) }

// Div returns x / y.
func Div(x, y Expr) Expr { return bin(token.QUO, x, y) }

// Eq returns x == y.
func Eq(x, y Expr) Expr { return bin(token.EQL, x, y) }

// Neq returns x != y.
func Neq(x, y Expr) Expr { return bin(token.NEQ, x, y) }

// Lt returns x < y.
func Lt(x, y Expr) Expr { return bin(token.LSS, x, y) }

// Lte returns x <= y.
func Lte(x, y Expr) Expr { return bin(token.LEQ, x, y) }

// And returns the logical conjunction of x and y.
func And(x, y Expr) Expr { return bin(token.LAND, x, y) }

// Or returns the logical disjunction of x and y.
func Or(x, y Expr) Expr { return bin(token.LOR, x, y) }

// BitAnd returns the bitwise AND of x and y.
func BitAnd(x, y Expr) Expr { return bin(token.AND, x, y) }

// NegExpr returns -x.
func NegExpr(x Expr) Expr { return &UnaryExpr{Op: Neg, X: x} }

// SqrtExpr returns sqrt(x).
func SqrtExpr(x Expr) Expr { return &UnaryExpr{Op: Sqrt, X: x} }

// Cast returns x converted to typ.
func Cast(x Expr, typ dtype.DataType) Expr { return &CastExpr{X: x, Typ: typ} }

// Conjunction AND-reduces a list of boolean expressions, dropping
// literal-true operands and short-circuiting to the literal false if one
// is present. An empty list reduces to the literal true, matching the
// identity element of AND over an empty iterator set.
func Conjunction(exprs []Expr) Expr {
	var result Expr = Bool(true)
	first := true
	for _, e := range exprs {
		if v, ok := IsLiteralBool(e); ok {
			if !v {
				return Bool(false)
			}
			continue
		}
		if first {
			result = e
			first = false
			continue
		}
		result = And(result, e)
	}
	return result
}

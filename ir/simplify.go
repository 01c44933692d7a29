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

import "go/token"

// Simplify constant-folds an expression tree. It is intentionally shallow
// (no CSE; beyond folding literal operands it applies only the identities
// x+0, 0+x, x-0, x*1, 1*x, x*0, 0*x and && / || with a literal boolean
// operand): the lowering
// engine calls it at every site where an index arithmetic expression is
// likely to be over constants (e.g. position bounds derived from level
// sizes).
func Simplify(e Expr) Expr {
	switch n := e.(type) {
	case *BinaryExpr:
		x := Simplify(n.X)
		y := Simplify(n.Y)
		if folded := foldBinary(n.Op, x, y); folded != nil {
			return folded
		}
		return &BinaryExpr{Op: n.Op, X: x, Y: y}
	case *UnaryExpr:
		x := Simplify(n.X)
		if folded := foldUnary(n.Op, x); folded != nil {
			return folded
		}
		return &UnaryExpr{Op: n.Op, X: x}
	case *CastExpr:
		return &CastExpr{X: Simplify(n.X), Typ: n.Typ}
	default:
		return e
	}
}

func foldBinary(op token.Token, x, y Expr) Expr {
	xi, xok := IsLiteralInt(x)
	yi, yok := IsLiteralInt(y)
	if xok && yok {
		switch op {
		case token.ADD:
			return Int(xi + yi)
		case token.SUB:
			return Int(xi - yi)
		case token.MUL:
			return Int(xi * yi)
		case token.QUO:
			if yi != 0 {
				return Int(xi / yi)
			}
		case token.EQL:
			return Bool(xi == yi)
		case token.NEQ:
			return Bool(xi != yi)
		case token.LSS:
			return Bool(xi < yi)
		case token.LEQ:
			return Bool(xi <= yi)
		case token.AND:
			return Int(xi & yi)
		}
	}
	if xb, ok := IsLiteralBool(x); ok {
		switch op {
		case token.LAND:
			if !xb {
				return Bool(false)
			}
			if yb, ok := IsLiteralBool(y); ok {
				return Bool(yb)
			}
			return y
		case token.LOR:
			if xb {
				return Bool(true)
			}
			if yb, ok := IsLiteralBool(y); ok {
				return Bool(yb)
			}
			return y
		}
	}
	if yb, ok := IsLiteralBool(y); ok {
		switch op {
		case token.LAND:
			if !yb {
				return Bool(false)
			}
			return x
		case token.LOR:
			if yb {
				return Bool(true)
			}
			return x
		}
	}
	// x + 0, x - 0, x * 1, 0 + x, 1 * x
	if yi, ok := IsLiteralInt(y); ok {
		switch {
		case op == token.ADD && yi == 0:
			return x
		case op == token.SUB && yi == 0:
			return x
		case op == token.MUL && yi == 1:
			return x
		case op == token.MUL && yi == 0:
			return Int(0)
		}
	}
	if xi, ok := IsLiteralInt(x); ok {
		switch {
		case op == token.ADD && xi == 0:
			return y
		case op == token.MUL && xi == 1:
			return y
		case op == token.MUL && xi == 0:
			return Int(0)
		}
	}
	return nil
}

func foldUnary(op UnaryOp, x Expr) Expr {
	xi, xok := IsLiteralInt(x)
	if xok && op == Neg {
		return Int(-xi)
	}
	return nil
}

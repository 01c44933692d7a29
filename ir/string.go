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
	"fmt"
	"iter"
	"strings"

	strfmt "github.com/sparsealg/taco/base/fmt"
	"github.com/sparsealg/taco/base/stringseq"
)

// String renders a human-readable (not backend-target) form of the
// expression, useful for tests and diagnostics. This is not a code
// printer: no IR backend lives in this module.
func (v *Var) String() string { return v.Name }

func (l *Literal) String() string { return fmt.Sprintf("%v", l.Value) }

func (l *Load) String() string { return fmt.Sprintf("%s[%s]", l.Arr, l.Loc) }

func (g *GetProperty) String() string {
	if g.Prop == Values || g.Prop == ValuesSize {
		return fmt.Sprintf("%s.%s", g.Tensor, g.Prop)
	}
	return fmt.Sprintf("%s.%s(%d)", g.Tensor, g.Prop, g.Mode)
}

func (b *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", b.X, b.Op, b.Y)
}

func (u *UnaryExpr) String() string {
	if u.Op == Sqrt {
		return fmt.Sprintf("sqrt(%s)", u.X)
	}
	return fmt.Sprintf("-%s", u.X)
}

func (c *CastExpr) String() string {
	return fmt.Sprintf("%s(%s)", c.Typ, c.X)
}

func (s *Store) String() string {
	return fmt.Sprintf("%s[%s] = %s", s.Arr, s.Loc, s.Val)
}

func (a *VarAssign) String() string {
	if a.Decl {
		return fmt.Sprintf("%s %s := %s", a.Lhs.Typ, a.Lhs, a.Rhs)
	}
	return fmt.Sprintf("%s = %s", a.Lhs, a.Rhs)
}

func (*BlankLine) String() string { return "" }

func (b *Block) String() string {
	return stringseq.Join(stmtSeq(b.Stmts), "\n")
}

// stmtSeq adapts a Stmt slice to the iter.Seq[string] stringseq expects,
// without materializing an intermediate []string.
func stmtSeq(stmts []Stmt) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, stmt := range stmts {
			if !yield(stmt.(fmt.Stringer).String()) {
				return
			}
		}
	}
}

// exprSeq adapts an Expr slice (Function's Results/Parameters) to the
// same iter.Seq[string] shape.
func exprSeq(exprs []Expr) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, e := range exprs {
			if !yield(e.(fmt.Stringer).String()) {
				return
			}
		}
	}
}

func (f *For) String() string {
	return fmt.Sprintf("for %s in [%s, %s) step %s (%s) {\n%s\n}",
		f.Var, f.Begin, f.End, f.Increment, f.Kind, strfmt.Indent(stmtString(f.Body)))
}

func (w *While) String() string {
	return fmt.Sprintf("while %s {\n%s\n}", w.Cond, strfmt.Indent(stmtString(w.Body)))
}

func (i *IfThenElse) String() string {
	s := fmt.Sprintf("if %s {\n%s\n}", i.Cond, strfmt.Indent(stmtString(i.Then)))
	if i.Else != nil {
		s += fmt.Sprintf(" else {\n%s\n}", strfmt.Indent(stmtString(i.Else)))
	}
	return s
}

func (c *Case) String() string {
	var b strings.Builder
	for i, clause := range c.Clauses {
		if i > 0 {
			b.WriteString(" else ")
		}
		fmt.Fprintf(&b, "if %s {\n%s\n}", clause.Cond, strfmt.Indent(stmtString(clause.Body)))
	}
	return b.String()
}

func (s *Switch) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "switch %s {\n", s.Ctrl)
	for _, clause := range s.Clauses {
		fmt.Fprintf(&b, "case %s:\n%s\n", clause.Value, strfmt.Indent(stmtString(clause.Body)))
	}
	b.WriteString("}")
	return b.String()
}

func (a *Allocate) String() string {
	verb := "allocate"
	if a.Realloc {
		verb = "reallocate"
	}
	return fmt.Sprintf("%s(%s, %s)", verb, a.Arr, a.Size)
}

func (f *Function) String() string {
	params := stringseq.Join(exprSeq(f.Parameters), ", ")
	results := stringseq.Join(exprSeq(f.Results), ", ")
	return fmt.Sprintf("function %s(%s) -> (%s) {\n%s\n}",
		f.Name, params, results, strfmt.Indent(stmtString(f.Body)))
}

func stmtString(s Stmt) string {
	if s == nil {
		return ""
	}
	return s.(fmt.Stringer).String()
}

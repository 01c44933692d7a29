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

// Replace rewrites expr by substituting every sub-expression that is
// identical, by pointer, to a key of substitutions with the
// corresponding value. Matching is by node identity rather than
// structural equality: callers build substitutions keyed off the exact
// *Access (or other) nodes returned by a prior traversal of the same
// expression, the way the available-expression analysis identifies the
// sub-expressions it has hoisted.
func Replace(expr IndexExpr, substitutions map[IndexExpr]IndexExpr) IndexExpr {
	if repl, ok := substitutions[expr]; ok {
		return repl
	}
	switch e := expr.(type) {
	case *Access, *LiteralExpr:
		return expr
	case *NegExpr:
		return &NegExpr{A: Replace(e.A, substitutions)}
	case *AddExpr:
		return &AddExpr{A: Replace(e.A, substitutions), B: Replace(e.B, substitutions)}
	case *SubExpr:
		return &SubExpr{A: Replace(e.A, substitutions), B: Replace(e.B, substitutions)}
	case *MulExpr:
		return &MulExpr{A: Replace(e.A, substitutions), B: Replace(e.B, substitutions)}
	case *DivExpr:
		return &DivExpr{A: Replace(e.A, substitutions), B: Replace(e.B, substitutions)}
	case *SqrtExpr:
		return &SqrtExpr{A: Replace(e.A, substitutions)}
	default:
		panic("notation: Replace: unhandled IndexExpr node type")
	}
}

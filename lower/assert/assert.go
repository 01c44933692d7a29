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

// Package assert provides the one fatal-assertion primitive every
// lowering sub-package uses to report programmer errors (a capability
// queried on an iterator that does not support it, a lattice that is
// not a valid cover, and the like). All lowering errors are of this
// class: see the error handling design's table of trigger kinds. None
// of them are recoverable at the point they are detected, so they
// panic rather than return an error value; Lower itself recovers the
// panic at its top-level boundary and turns it into a returned error.
package assert

import "fmt"

// Fatal is the panic value raised by Truef. Lower's top-level recover
// matches on this type so it can distinguish a reported programmer
// error from an unrelated runtime panic.
type Fatal struct {
	// Kind names one of the trigger kinds in the error handling design
	// table (e.g. "unsupported level", "capability mismatch").
	Kind string
	// Reason is the one-line, human-readable explanation.
	Reason string
}

func (f *Fatal) Error() string { return fmt.Sprintf("%s: %s", f.Kind, f.Reason) }

// Truef panics with a *Fatal of the given kind when cond is false.
func Truef(cond bool, kind, format string, args ...any) {
	if cond {
		return
	}
	panic(&Fatal{Kind: kind, Reason: fmt.Sprintf(format, args...)})
}

// CapabilityMismatch is a shorthand for the most common assertion this
// module makes: an iterator asked to perform an operation its level
// kind does not advertise.
func CapabilityMismatch(cond bool, format string, args ...any) {
	Truef(cond, "capability mismatch", format, args...)
}

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

package lower

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/sparsealg/taco/notation"
)

// IsLowerable checks the input against the error handling design's
// programmer-error trigger kinds that can be detected before any IR
// is emitted, combining every violation found rather than stopping at
// the first.
func IsLowerable(result *notation.TensorVar) error {
	var err error
	assign := result.Assignment()
	if assign == nil {
		err = multierr.Append(err, errors.Errorf("non-concrete notation: tensor %q has no assignment bound to it", result.Name))
		return err
	}
	for i, lvl := range result.Format.Levels {
		if !lvl.Kind.Implemented() {
			err = multierr.Append(err, errors.Errorf("unsupported level: result level %d has kind %s", i, lvl.Kind))
		}
	}
	for _, acc := range notation.Accesses(assign.Rhs) {
		for i, lvl := range acc.Tensor.Format.Levels {
			if !lvl.Kind.Implemented() {
				err = multierr.Append(err, errors.Errorf("unsupported level: operand %q level %d has kind %s", acc.Tensor.Name, i, lvl.Kind))
			}
		}
		if len(acc.Vars) != acc.Tensor.Format.Rank() {
			err = multierr.Append(err, errors.Errorf("non-concrete notation: access to %q has %d index variables but rank %d", acc.Tensor.Name, len(acc.Vars), acc.Tensor.Format.Rank()))
		}
	}
	if len(assign.Lhs.Vars) != result.Format.Rank() {
		err = multierr.Append(err, errors.Errorf("non-concrete notation: result %q has %d free variables but rank %d", result.Name, len(assign.Lhs.Vars), result.Format.Rank()))
	}
	return err
}

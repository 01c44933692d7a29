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

// IndexVar is a named symbolic loop variable used in index-notation
// accesses such as T(i,j,k). Whether a given IndexVar is free or a
// reduction variable is not intrinsic to it — it depends on which
// assignment's left-hand side is being considered — so that
// classification is a derived fact computed by the iteration graph
// rather than a field here.
type IndexVar struct {
	Name string
}

// New returns a new named index variable.
func New(name string) IndexVar { return IndexVar{Name: name} }

func (v IndexVar) String() string { return v.Name }

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
	"sync"

	"github.com/sparsealg/taco/base/uname"
)

// NameGen is the symbol-name generator a lowering call hands down to
// every sub-package that needs to mint fresh IR variable names. Lower
// creates a fresh NameGen for every call, so symbol names are unique
// and stable within one lowering and counters are not shared across
// calls. The mutex only makes one instance safe to use from several
// goroutines; lowering itself is not concurrent internally.
type NameGen struct {
	mu sync.Mutex
	u  *uname.Unique
}

// NewNameGen returns a fresh name generator.
func NewNameGen() *NameGen {
	return &NameGen{u: uname.New()}
}

// Name returns a unique name given a desired base name.
func (n *NameGen) Name(root string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.u.Name(root)
}

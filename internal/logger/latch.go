// Copyright 2025 Google LLC
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

package logger

import "sync/atomic"

// OnceFlag is a one-shot latch transitioned 0->1 via compare-and-swap, used
// to gate diagnostic log spam rather than to toggle behavior.
type OnceFlag struct {
	fired atomic.Bool
}

// Fire returns true the first time it is called and false on every
// subsequent call, regardless of how many goroutines race to call it.
func (f *OnceFlag) Fire() bool {
	return f.fired.CompareAndSwap(false, true)
}

// Reset clears the latch, used by tests.
func (f *OnceFlag) Reset() { f.fired.Store(false) }

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

//go:build unix

package identity

import "sync"

// monotonicTracker turns a raw, possibly-repeating timestamp-derived value
// into a strictly increasing per-ID version number. A raw value that is
// less than or equal to the last one observed for the same ID is bumped to
// one past the last returned version, which is how EstablishStrong
// guarantees its version is greater than any previously-handed-out version
// for that ID even when the filesystem clock hasn't visibly advanced.
type monotonicTracker struct {
	mu   sync.Mutex
	last map[ID]trackerState
}

type trackerState struct {
	raw      uint64
	returned uint64
}

func newMonotonicTracker() *monotonicTracker {
	return &monotonicTracker{last: make(map[ID]trackerState)}
}

func (t *monotonicTracker) observe(id ID, raw uint64) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.last[id]
	if !ok {
		return raw
	}
	if raw > st.raw {
		return raw
	}
	return st.returned
}

func (t *monotonicTracker) establish(id ID, raw uint64) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.last[id]
	next := raw
	if ok && next <= st.returned {
		next = st.returned + 1
	}
	t.last[id] = trackerState{raw: raw, returned: next}
	return next
}

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

package fct

import (
	"sync"

	"github.com/buildcache/fct/internal/identity"
)

// fakeHandle is a Handle that never touches a real file; fakeAdapter keys
// its state off Name() alone, which is enough to exercise probe/record
// without the filesystem.
type fakeHandle struct {
	name     string
	writable bool
}

func (h *fakeHandle) Fd() uintptr    { return 0 }
func (h *fakeHandle) Name() string   { return h.name }
func (h *fakeHandle) Writable() bool { return h.writable }

// fakeAdapter simulates a filesystem where each name maps to a fixed
// identity.ID and a per-name weak version counter that EstablishStrong
// bumps on every call, mirroring a change-journal close record.
type fakeAdapter struct {
	mu        sync.Mutex
	ids       map[string]identity.ID
	versions  map[string]uint64
	unavail   map[string]bool
	frozen    map[string]bool
	nextVolID uint64

	// onQuery, if set, is invoked at the start of every QueryWeak/
	// EstablishStrong call, before the lock is taken — tests use it to
	// advance an injected clock mid-call so duration telemetry is
	// deterministic.
	onQuery func()
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		ids:      make(map[string]identity.ID),
		versions: make(map[string]uint64),
		unavail:  make(map[string]bool),
		frozen:   make(map[string]bool),
	}
}

// freezeVersion makes EstablishStrong keep returning the same version for
// name on every subsequent call, simulating an adapter whose strong
// version can repeat across establishments (e.g. two closes landing on
// the same USN) instead of the normal always-advances behavior.
func (a *fakeAdapter) freezeVersion(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.frozen[name] = true
}

func (a *fakeAdapter) idFor(name string) identity.ID {
	if id, ok := a.ids[name]; ok {
		return id
	}
	a.nextVolID++
	var fid [16]byte
	fid[0] = byte(a.nextVolID)
	id := identity.ID{VolumeID: a.nextVolID, FileID: fid}
	a.ids[name] = id
	return id
}

// setUnavailable makes every call concerning name return NotSupported.
func (a *fakeAdapter) setUnavailable(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.unavail[name] = true
}

// bumpExternally simulates a change to the file the table never saw via
// Record, advancing the weak version a later Probe will observe.
func (a *fakeAdapter) bumpExternally(name string) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.versions[name]++
	return a.versions[name]
}

func (a *fakeAdapter) QueryWeak(h identity.Handle) (identity.Versioned, error) {
	if a.onQuery != nil {
		a.onQuery()
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	name := h.Name()
	if a.unavail[name] {
		return identity.Versioned{}, &identity.UnavailableError{Reason: identity.NotSupported}
	}
	return identity.Versioned{
		ID:      a.idFor(name),
		Version: identity.Version{Value: a.versions[name], Kind: identity.Weak},
	}, nil
}

func (a *fakeAdapter) EstablishStrong(h identity.Handle, _ bool) (identity.Versioned, error) {
	if a.onQuery != nil {
		a.onQuery()
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	name := h.Name()
	if a.unavail[name] {
		return identity.Versioned{}, &identity.UnavailableError{Reason: identity.NotSupported}
	}
	if !a.frozen[name] {
		a.versions[name]++
	}
	return identity.Versioned{
		ID:      a.idFor(name),
		Version: identity.Version{Value: a.versions[name], Kind: identity.Strong},
	}, nil
}

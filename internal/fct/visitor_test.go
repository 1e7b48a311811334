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
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buildcache/fct/internal/identity"
)

// fakeAccessor reopens identities by consulting the same fakeAdapter's
// name<->ID mapping in reverse.
type fakeAccessor struct {
	a         *fakeAdapter
	pathByID  map[identity.ID]string
	unopenable map[identity.ID]bool
}

func newFakeAccessor(a *fakeAdapter) *fakeAccessor {
	return &fakeAccessor{a: a, pathByID: make(map[identity.ID]string), unopenable: make(map[identity.ID]bool)}
}

func (f *fakeAccessor) track(name string) {
	f.pathByID[f.a.idFor(name)] = name
}

func (f *fakeAccessor) Open(id identity.ID) (string, Handle, error) {
	if f.unopenable[id] {
		return "", nil, fmt.Errorf("no longer reachable")
	}
	path, ok := f.pathByID[id]
	if !ok {
		return "", nil, fmt.Errorf("unknown identity")
	}
	return path, &fakeHandle{name: path, writable: false}, nil
}

func TestVisitVisitsEveryLiveEntry(t *testing.T) {
	a := newFakeAdapter()
	tbl := NewTable(10, WithAdapter(a))
	tbl.Record("/a", &fakeHandle{name: "/a", writable: true}, makeHash(1), 1)
	tbl.Record("/b", &fakeHandle{name: "/b", writable: true}, makeHash(2), 2)

	acc := newFakeAccessor(a)
	acc.track("/a")
	acc.track("/b")

	seen := make(map[string]bool)
	Visit(tbl, acc, func(id identity.ID, h Handle, path string, version identity.Version, e Entry) bool {
		seen[path] = true
		return true
	})

	require.True(t, seen["/a"])
	require.True(t, seen["/b"])
}

func TestVisitSkipsUnopenableEntries(t *testing.T) {
	a := newFakeAdapter()
	tbl := NewTable(10, WithAdapter(a))
	tbl.Record("/a", &fakeHandle{name: "/a", writable: true}, makeHash(1), 1)
	id := a.idFor("/a")

	acc := newFakeAccessor(a)
	acc.unopenable[id] = true

	called := false
	Visit(tbl, acc, func(identity.ID, Handle, string, identity.Version, Entry) bool {
		called = true
		return true
	})
	require.False(t, called)
}

func TestVisitSkipsEntriesWithVersionDrift(t *testing.T) {
	a := newFakeAdapter()
	tbl := NewTable(10, WithAdapter(a))
	tbl.Record("/a", &fakeHandle{name: "/a", writable: true}, makeHash(1), 1)

	// Simulate the file changing underfoot without a corresponding Record:
	// the reopened handle now queries a weak version ahead of what's
	// stored, which must be treated the same as a reopen failure.
	a.bumpExternally("/a")

	acc := newFakeAccessor(a)
	acc.track("/a")

	called := false
	Visit(tbl, acc, func(identity.ID, Handle, string, identity.Version, Entry) bool {
		called = true
		return true
	})
	require.False(t, called)
}

func TestVisitStopsEarlyWhenFnReturnsFalse(t *testing.T) {
	a := newFakeAdapter()
	tbl := NewTable(10, WithAdapter(a))
	tbl.Record("/a", &fakeHandle{name: "/a", writable: true}, makeHash(1), 1)
	tbl.Record("/b", &fakeHandle{name: "/b", writable: true}, makeHash(2), 2)

	acc := newFakeAccessor(a)
	acc.track("/a")
	acc.track("/b")

	count := 0
	Visit(tbl, acc, func(identity.ID, Handle, string, identity.Version, Entry) bool {
		count++
		return false
	})
	require.Equal(t, 1, count)
}

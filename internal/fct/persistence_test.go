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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func makeHash(n int) []byte {
	h := make([]byte, 32)
	h[0] = byte(n)
	return h
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	a := newFakeAdapter()
	tbl := NewTable(10, WithAdapter(a))
	tbl.Record("/a", &fakeHandle{name: "/a", writable: true}, makeHash(1), 100)
	tbl.Record("/b", &fakeHandle{name: "/b", writable: true}, makeHash(2), 200)

	dir := t.TempDir()
	path := filepath.Join(dir, "table.fct")
	require.NoError(t, tbl.Save(path))

	loaded, ok := Load(path, 10, WithAdapter(a))
	require.True(t, ok)
	require.Equal(t, 2, loaded.Len())

	idA := a.idFor("/a")
	e, ok := loaded.m.Load(idA)
	require.True(t, ok)
	require.Equal(t, makeHash(1), e.Hash)
	require.EqualValues(t, 100, e.Length)
	require.Equal(t, uint16(9), e.TTL) // decremented once on load
}

func TestLoadMissingFileReturnsNotOK(t *testing.T) {
	_, ok := Load(filepath.Join(t.TempDir(), "missing.fct"), 10)
	require.False(t, ok)
}

func TestLoadOrCreateNeverFails(t *testing.T) {
	tbl := LoadOrCreate(filepath.Join(t.TempDir(), "missing.fct"), 10)
	require.NotNil(t, tbl)
	require.Equal(t, 0, tbl.Len())
}

func TestLoadRejectsCorruptChecksum(t *testing.T) {
	a := newFakeAdapter()
	tbl := NewTable(10, WithAdapter(a))
	tbl.Record("/a", &fakeHandle{name: "/a", writable: true}, makeHash(1), 1)

	dir := t.TempDir()
	path := filepath.Join(dir, "table.fct")
	require.NoError(t, tbl.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, ok := Load(path, 10)
	require.False(t, ok)
}

func TestLoadRejectsWrongMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "table.fct")
	require.NoError(t, os.WriteFile(path, []byte("not a table file at all"), 0o644))

	_, ok := Load(path, 10)
	require.False(t, ok)
}

func TestSaveSkipsZeroTTLEntries(t *testing.T) {
	a := newFakeAdapter()
	tbl := NewTable(10, WithAdapter(a))
	tbl.Record("/a", &fakeHandle{name: "/a", writable: true}, makeHash(1), 1)
	id := a.idFor("/a")
	tbl.m.AddOrUpdate(id, func(e Entry, _ bool) Entry {
		e.TTL = 0
		return e
	})

	dir := t.TempDir()
	path := filepath.Join(dir, "table.fct")
	require.NoError(t, tbl.Save(path))

	loaded, ok := Load(path, 10)
	require.True(t, ok)
	require.Equal(t, 0, loaded.Len())
}

func TestCreateFromClampsAndDecrementsTTL(t *testing.T) {
	a := newFakeAdapter()
	tbl := NewTable(10, WithAdapter(a))
	tbl.Record("/a", &fakeHandle{name: "/a", writable: true}, makeHash(1), 1)

	lower := uint16(3)
	derived := CreateFrom(tbl, &lower)
	require.Equal(t, 1, derived.Len())

	id := a.idFor("/a")
	e, ok := derived.m.Load(id)
	require.True(t, ok)
	require.Equal(t, uint16(2), e.TTL)
}

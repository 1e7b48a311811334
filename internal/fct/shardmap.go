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
	"hash/maphash"
	"sync"

	"github.com/buildcache/fct/internal/identity"
)

// shardCount is a fixed power of two; spreading identities across many
// independent locks is what lets probe/record be called from many engine
// threads simultaneously without one global lock serializing them.
const shardCount = 64

// shardMap is the concurrent Identity->Entry map backing a Table. Each
// shard holds its own mutex; an operation on identity A never blocks an
// operation on identity B unless they happen to hash to the same shard.
type shardMap struct {
	shards [shardCount]shard
	seed   maphash.Seed
}

type shard struct {
	mu      sync.RWMutex
	entries map[identity.ID]mapEntry
}

func newShardMap() *shardMap {
	m := &shardMap{seed: maphash.MakeSeed()}
	for i := range m.shards {
		m.shards[i].entries = make(map[identity.ID]mapEntry)
	}
	return m
}

func (m *shardMap) shardIndex(id identity.ID) uint64 {
	var h maphash.Hash
	h.SetSeed(m.seed)
	h.Write(id.FileID[:])
	var vol [8]byte
	for i := range vol {
		vol[i] = byte(id.VolumeID >> (8 * i))
	}
	h.Write(vol[:])
	return h.Sum64() % shardCount
}

func (m *shardMap) shardFor(id identity.ID) *shard {
	return &m.shards[m.shardIndex(id)]
}

// Load returns the entry stored for id, if any: a single snapshot read,
// which is all probe needs.
func (m *shardMap) Load(id identity.ID) (Entry, bool) {
	s := m.shardFor(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	me, ok := s.entries[id]
	return me.entry, ok
}

// AddOrUpdate inserts a new entry or merges with the existing one via
// update. update should still be written as a pure function of its
// arguments even though this implementation holds the shard's lock for
// the whole call and therefore only ever invokes it once — a future
// lock-free shard could retry it under contention (see DESIGN.md).
func (m *shardMap) AddOrUpdate(id identity.ID, update func(existing Entry, exists bool) Entry) (Entry, bool) {
	s := m.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.entries[id]
	next := update(existing.entry, ok)
	s.entries[id] = mapEntry{id: id, entry: next}
	return next, !ok
}

// TryUpdate applies update to the entry currently stored for id and writes
// the result back only if the entry has not changed since the caller last
// observed it (compared by Version). If the entry is gone or has already
// moved past expectedVersion, the update is silently abandoned and ok is
// false — this is the compare-and-replace probe's TTL refresh uses; a
// failed refresh just means someone recorded a newer version in the
// meantime, so it's fine to drop.
func (m *shardMap) TryUpdate(id identity.ID, expectedVersion uint64, update func(existing Entry) Entry) (Entry, bool) {
	s := m.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.entries[id]
	if !ok || existing.entry.Version != expectedVersion {
		return Entry{}, false
	}
	next := update(existing.entry)
	s.entries[id] = mapEntry{id: id, entry: next}
	return next, true
}

// Delete removes any entry stored for id.
func (m *shardMap) Delete(id identity.ID) {
	s := m.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}

// Len returns the number of live entries. It is a point-in-time estimate
// under concurrent mutation.
func (m *shardMap) Len() int {
	n := 0
	for i := range m.shards {
		m.shards[i].mu.RLock()
		n += len(m.shards[i].entries)
		m.shards[i].mu.RUnlock()
	}
	return n
}

// Range calls fn for every live entry. fn must not call back into the
// shardMap: Range holds each shard's read lock only for the duration of
// copying its entries out, not for the duration of fn, so fn sees a
// consistent per-shard snapshot but not a consistent whole-map snapshot.
func (m *shardMap) Range(fn func(id identity.ID, e Entry) bool) {
	for i := range m.shards {
		m.shards[i].mu.RLock()
		snapshot := make([]mapEntry, 0, len(m.shards[i].entries))
		for _, me := range m.shards[i].entries {
			snapshot = append(snapshot, me)
		}
		m.shards[i].mu.RUnlock()

		for _, me := range snapshot {
			if !fn(me.id, me.entry) {
				return
			}
		}
	}
}

// replaceAll clears every shard and installs the given entries. Used by
// load: a freshly loaded table replaces the prior contents wholesale
// rather than merging into them.
func (m *shardMap) replaceAll(entries []mapEntry) {
	perShard := make([][]mapEntry, shardCount)
	for _, me := range entries {
		idx := m.shardIndex(me.id)
		perShard[idx] = append(perShard[idx], me)
	}
	for i := range m.shards {
		m.shards[i].mu.Lock()
		m.shards[i].entries = make(map[identity.ID]mapEntry, len(perShard[i]))
		for _, me := range perShard[i] {
			m.shards[i].entries[me.id] = me
		}
		m.shards[i].mu.Unlock()
	}
}

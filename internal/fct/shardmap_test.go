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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buildcache/fct/internal/identity"
)

func idN(n uint64) identity.ID {
	var fid [16]byte
	fid[0] = byte(n)
	return identity.ID{VolumeID: n, FileID: fid}
}

func TestShardMapAddOrUpdateReportsInsertVsUpdate(t *testing.T) {
	m := newShardMap()
	id := idN(1)

	_, inserted := m.AddOrUpdate(id, func(existing Entry, exists bool) Entry {
		require.False(t, exists)
		return Entry{Version: 1}
	})
	require.True(t, inserted)

	_, inserted = m.AddOrUpdate(id, func(existing Entry, exists bool) Entry {
		require.True(t, exists)
		return Entry{Version: 2}
	})
	require.False(t, inserted)
}

func TestShardMapTryUpdateFailsOnVersionMismatch(t *testing.T) {
	m := newShardMap()
	id := idN(1)
	m.AddOrUpdate(id, func(Entry, bool) Entry { return Entry{Version: 5} })

	_, ok := m.TryUpdate(id, 4, func(e Entry) Entry { e.TTL = 9; return e })
	require.False(t, ok)

	_, ok = m.TryUpdate(id, 5, func(e Entry) Entry { e.TTL = 9; return e })
	require.True(t, ok)

	e, _ := m.Load(id)
	require.Equal(t, uint16(9), e.TTL)
}

func TestShardMapDeleteRemovesEntry(t *testing.T) {
	m := newShardMap()
	id := idN(1)
	m.AddOrUpdate(id, func(Entry, bool) Entry { return Entry{Version: 1} })
	m.Delete(id)
	_, ok := m.Load(id)
	require.False(t, ok)
}

func TestShardMapConcurrentAddOrUpdateIsRaceFree(t *testing.T) {
	m := newShardMap()
	id := idN(1)
	const goroutines = 64

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(n int) {
			defer wg.Done()
			m.AddOrUpdate(id, func(existing Entry, exists bool) Entry {
				if exists {
					existing.Version++
					return existing
				}
				return Entry{Version: 1}
			})
		}(i)
	}
	wg.Wait()

	e, ok := m.Load(id)
	require.True(t, ok)
	require.EqualValues(t, goroutines, e.Version)
}

func TestShardMapRangeVisitsAllEntries(t *testing.T) {
	m := newShardMap()
	for i := uint64(1); i <= 10; i++ {
		m.AddOrUpdate(idN(i), func(Entry, bool) Entry { return Entry{Version: i} })
	}

	seen := 0
	m.Range(func(identity.ID, Entry) bool {
		seen++
		return true
	})
	require.Equal(t, 10, seen)
}

func TestShardMapReplaceAllClearsPriorEntries(t *testing.T) {
	m := newShardMap()
	m.AddOrUpdate(idN(1), func(Entry, bool) Entry { return Entry{Version: 1} })
	m.replaceAll([]mapEntry{{id: idN(2), entry: Entry{Version: 2}}})

	require.Equal(t, 1, m.Len())
	_, ok := m.Load(idN(1))
	require.False(t, ok)
	_, ok = m.Load(idN(2))
	require.True(t, ok)
}

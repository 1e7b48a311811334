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

// Package fct implements the File Content Table: a durable, concurrent
// mapping from a file's kernel-level identity to the content hash last
// observed at that identity's current version.
package fct

import "github.com/buildcache/fct/internal/identity"

// Entry is the value stored under each identity.ID.
type Entry struct {
	// Version is always a strong version: the one established at the
	// moment Hash was recorded.
	Version uint64
	Hash    []byte
	Length  int64
	// TTL is a generational counter in [0, Table.DefaultTTL]. Zero marks
	// the entry for eviction at the next save.
	TTL uint16
}

func (e Entry) clone() Entry {
	h := make([]byte, len(e.Hash))
	copy(h, e.Hash)
	return Entry{Version: e.Version, Hash: h, Length: e.Length, TTL: e.TTL}
}

// mapEntry is the value actually stored in the shardMap: the Entry plus
// the identity.ID it lives under, so the visitor and save path don't need
// a second lookup to recover the key.
type mapEntry struct {
	id    identity.ID
	entry Entry
}

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

import "github.com/buildcache/fct/internal/identity"

// Accessor reopens a file by the identity it was last recorded under, for
// diagnostic tools that need to go from "this identity is in the table" to
// "here is a path and handle for it". Implementations are free to fail;
// the visitor treats any error as "no longer reachable" and moves on.
type Accessor interface {
	Open(id identity.ID) (path string, h Handle, err error)
}

// VisitFunc is called once per live entry the visitor could reopen.
// Returning false stops the visit early.
type VisitFunc func(id identity.ID, h Handle, path string, version identity.Version, entry Entry) bool

// Visit walks every live entry, reopens it through accessor, and invokes
// fn with the handle's current weak version alongside the recorded entry.
// Visit never mutates the table; it is purely observational. An entry
// whose identity can no longer be opened, or whose freshly queried version
// no longer matches what's on file, is silently skipped — fn is never
// called for it; the skip is only recorded as a trace in the log.
func Visit(t *Table, accessor Accessor, fn VisitFunc) {
	t.m.Range(func(id identity.ID, e Entry) bool {
		path, h, err := accessor.Open(id)
		if err != nil {
			if t.traceAllowed() {
				t.log.Trace("fct: visit could not reopen entry", "identity", id.String(), "err", err)
			}
			return true
		}
		defer closeIfCloser(h)

		queried, err := t.adapter.QueryWeak(h)
		if err != nil {
			if t.traceAllowed() {
				t.log.Trace("fct: visit could not query identity", "identity", id.String(), "err", err)
			}
			return true
		}
		if queried.ID != id {
			if t.traceAllowed() {
				t.log.Trace("fct: visit identity changed underfoot", "identity", id.String(), "reopened", queried.ID.String())
			}
			return true
		}
		if queried.Version.Value != e.Version {
			if t.traceAllowed() {
				t.log.Trace("fct: visit version drift, skipping", "identity", id.String(),
					"stored", e.Version, "queried", queried.Version.Value)
			}
			return true
		}

		return fn(id, h, path, queried.Version, e)
	})
}

type closer interface{ Close() error }

func closeIfCloser(h Handle) {
	if c, ok := h.(closer); ok {
		_ = c.Close()
	}
}

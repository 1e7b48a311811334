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

// LinkImpact describes how a single change-journal record affects the
// links a tracked identity reaches through.
type LinkImpact int

const (
	// LinkImpactNone means the record carries no information about
	// whether other hard links to the same file still exist.
	LinkImpactNone LinkImpact = iota
	// LinkImpactSingleLink means the record's file had exactly one link
	// at the time of the change.
	LinkImpactSingleLink
	// LinkImpactAllLinks means the record's reason mask indicates every
	// link to the file was removed (e.g. a close-after-unlink).
	LinkImpactAllLinks
)

// ChangedFileIDInfo is one record from the change journal, already
// resolved to the identity it concerns.
type ChangedFileIDInfo struct {
	Identity           identity.ID
	LastTrackedVersion uint64
	RecordVersion      uint64
	LinkImpact         LinkImpact
}

// Observer applies a batch of change-journal records to a Table, keeping
// entries from drifting out of sync with the volume between explicit
// Probe/Record calls: a background scan of the change journal can learn
// that a file changed even though nothing ever called Record for it.
type Observer struct {
	t *Table
}

// NewObserver returns an Observer bound to t.
func NewObserver(t *Table) *Observer { return &Observer{t: t} }

// ScanPass applies one batch of records. At scan start the observer
// clears its per-pass "already updated" set; at scan end it has already
// applied every counter increment for this pass.
func (o *Observer) ScanPass(records []ChangedFileIDInfo) {
	updated := make(map[identity.ID]bool, len(records))
	for _, rec := range records {
		o.apply(rec, updated)
	}
}

func (o *Observer) apply(rec ChangedFileIDInfo, updated map[identity.ID]bool) {
	existing, ok := o.t.m.Load(rec.Identity)
	if !ok {
		return
	}
	// Only records that actually advance the entry's version are acted on.
	if rec.RecordVersion <= existing.Version {
		return
	}

	if rec.LinkImpact == LinkImpactAllLinks {
		o.t.m.Delete(rec.Identity)
		o.t.metrics.IncRemovedByScan()
		if o.t.traceAllowed() {
			o.t.log.Trace("fct: scan removed entry, all links gone", "identity", rec.Identity.String())
		}
		return
	}

	// SingleLink or None: promote entry.version to record.version only
	// if this identity was already promoted earlier in the same pass, or
	// the entry's current version is exactly what the scanner last knew.
	// This guards against compound operations — a rename producing an
	// OldName record followed by a NewName record, or a timestamp-then-
	// close pair — double-promoting off a stale intermediate record.
	if !updated[rec.Identity] && existing.Version != rec.LastTrackedVersion {
		return
	}
	o.t.m.AddOrUpdate(rec.Identity, func(e Entry, exists bool) Entry {
		if !exists {
			return e
		}
		e.Version = rec.RecordVersion
		return e
	})
	updated[rec.Identity] = true
	o.t.metrics.IncUpdatedByScan()
	if o.t.traceAllowed() {
		o.t.log.Trace("fct: scan advanced entry version", "identity", rec.Identity.String(),
			"from", existing.Version, "to", rec.RecordVersion)
	}
}

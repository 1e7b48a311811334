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
	"github.com/buildcache/fct/clock"
	"github.com/buildcache/fct/internal/identity"
	"github.com/buildcache/fct/internal/logger"
	"github.com/buildcache/fct/internal/telemetry"
	"golang.org/x/time/rate"
)

// Table is the root object of the file content table.
type Table struct {
	m          *shardMap
	adapter    identity.Adapter
	defaultTTL uint16
	isStub     bool

	hashAlgoName string
	hashSize     int

	warnOnce     logger.OnceFlag
	log          *logger.Logger
	metrics      telemetry.Handle
	traceLimiter *rate.Limiter
	clk          clock.Clock
}

// Option configures a Table built by NewTable.
type Option func(*Table)

// WithAdapter overrides the identity.Adapter used for queries/establishment.
// Defaults to identity.NewPlatform().
func WithAdapter(a identity.Adapter) Option { return func(t *Table) { t.adapter = a } }

// WithLogger overrides the logger used for diagnostics and traces.
func WithLogger(l *logger.Logger) Option { return func(t *Table) { t.log = l } }

// WithMetrics overrides the telemetry.Handle used for counters/durations.
func WithMetrics(h telemetry.Handle) Option { return func(t *Table) { t.metrics = h } }

// WithClock overrides the clock.Clock used for duration telemetry.
func WithClock(c clock.Clock) Option { return func(t *Table) { t.clk = c } }

// WithTraceTokenRate overrides the rate at which per-event verbose traces
// are allowed to log, preventing a flood of mismatch events under heavy
// load from saturating the log sink.
func WithTraceTokenRate(r rate.Limit, burst int) Option {
	return func(t *Table) { t.traceLimiter = rate.NewLimiter(r, burst) }
}

func newBase(defaultTTL uint16, opts []Option) *Table {
	if defaultTTL == 0 {
		defaultTTL = 255
	}
	t := &Table{
		m:            newShardMap(),
		adapter:      identity.NewPlatform(),
		defaultTTL:   defaultTTL,
		log:          logger.New(logger.Options{Level: logger.LevelInfo}),
		metrics:      telemetry.Noop(),
		traceLimiter: rate.NewLimiter(rate.Limit(50), 50),
		clk:          clock.RealClock{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewTable creates a new, empty Table.
func NewTable(defaultTTL uint16, opts ...Option) *Table {
	return newBase(defaultTTL, opts)
}

// NewStub creates a Table that behaves as if the OS never supports
// versioned identity: every probe misses, every record no-ops.
func NewStub(opts ...Option) *Table {
	t := newBase(255, opts)
	t.isStub = true
	t.adapter = identity.NewStub()
	return t
}

// IsStub reports whether this table is a stub.
func (t *Table) IsStub() bool { return t.isStub }

// DefaultTTL returns the process-wide default TTL new and refreshed
// entries are given.
func (t *Table) DefaultTTL() uint16 { return t.defaultTTL }

// Len returns the number of live entries.
func (t *Table) Len() int { return t.m.Len() }

// Range calls fn for every live entry, in no particular order. It is meant
// for diagnostic tools (cmd/fctinspect's dump and evict-preview
// subcommands); callers must not mutate the table from within fn.
func (t *Table) Range(fn func(id identity.ID, e Entry) bool) { t.m.Range(fn) }

func (t *Table) traceAllowed() bool {
	return t.traceLimiter == nil || t.traceLimiter.Allow()
}

func (t *Table) emitUnsupportedOnce() {
	if t.warnOnce.Fire() {
		t.log.Warn("fct: OS does not support versioned file identities; the file content table is disabled")
	}
}

// ProbeResult is what a hit returns.
type ProbeResult struct {
	Identity identity.Versioned
	Hash     []byte
	Length   int64
}

// Probe looks up path/handle's current identity and, if it matches a live
// entry at the same version, returns a hit.
func (t *Table) Probe(path string, h Handle) (ProbeResult, bool) {
	start := t.clk.Now()
	defer func() { t.metrics.ObserveProbeDuration(t.clk.Now().Sub(start)) }()

	queried, err := t.adapter.QueryWeak(h)
	if err != nil {
		if identity.IsNotSupported(err) {
			t.emitUnsupportedOnce()
		}
		return ProbeResult{}, false
	}

	existing, ok := t.m.Load(queried.ID)
	if !ok {
		t.metrics.IncFileIDMismatch()
		if t.traceAllowed() {
			t.log.Trace("fct: probe miss, no entry", "path", path, "identity", queried.ID.String())
		}
		return ProbeResult{}, false
	}

	if existing.Version != queried.Version.Value {
		// Content may have changed since the last record; a version drift
		// is always a miss regardless of direction.
		if t.traceAllowed() {
			t.log.Trace("fct: probe miss, version drift", "path", path, "identity", queried.ID.String(),
				"stored", existing.Version, "queried", queried.Version.Value)
		}
		return ProbeResult{}, false
	}

	// Hit: refresh TTL to DefaultTTL, but only write if it isn't already
	// there, to avoid needless map writes. Use the compare-and-replace
	// primitive so a racing writer that installed a newer entry in between
	// is never clobbered.
	if existing.TTL != t.defaultTTL {
		if refreshed, ok := t.m.TryUpdate(queried.ID, existing.Version, func(e Entry) Entry {
			e.TTL = t.defaultTTL
			return e
		}); ok {
			existing = refreshed
		}
		// If TryUpdate failed, another thread already replaced this entry;
		// the refresh is silently abandoned.
	}

	t.metrics.IncHit()
	return ProbeResult{
		Identity: identity.Versioned{ID: queried.ID, Version: identity.Version{Value: existing.Version, Kind: identity.Strong}},
		Hash:     existing.Hash,
		Length:   existing.Length,
	}, true
}

// Record establishes a strong version for path/handle and stores
// (hash, length) under it. strict defaults to h.Writable() when omitted.
func (t *Table) Record(path string, h Handle, hash []byte, length int64, strict ...bool) identity.Versioned {
	start := t.clk.Now()
	defer func() { t.metrics.ObserveRecordDuration(t.clk.Now().Sub(start)) }()

	flush := h.Writable()
	if len(strict) > 0 {
		flush = strict[0]
	}

	established, err := t.adapter.EstablishStrong(h, flush)
	if err != nil {
		if identity.IsNotSupported(err) {
			t.emitUnsupportedOnce()
		}
		// The caller's record is silently dropped; return an anonymous
		// identity.
		return identity.Versioned{}
	}

	newEntry := Entry{Version: established.Version.Value, Hash: hash, Length: length, TTL: t.defaultTTL}
	final, inserted := t.m.AddOrUpdate(established.ID, func(existing Entry, exists bool) Entry {
		if exists && existing.Version > newEntry.Version {
			// Another thread recorded a later version concurrently; never
			// regress a stored version.
			return existing
		}
		if exists {
			if bytesEqual(existing.Hash, newEntry.Hash) {
				if existing.Version != newEntry.Version {
					t.metrics.IncUSNMismatch()
				}
			} else {
				t.metrics.IncContentMismatch()
			}
		}
		return newEntry
	})
	if inserted {
		t.metrics.IncEntries(1)
	}

	return identity.Versioned{ID: established.ID, Version: identity.Version{Value: final.Version, Kind: identity.Strong}}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

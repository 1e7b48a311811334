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

// Package telemetry holds the File Content Table's counter collection: a
// named set of counters and duration histograms, backed by OpenTelemetry
// metrics so the same collection can be scraped over Prometheus by a
// consumer such as cmd/fctinspect.
package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Handle is the interface the table core records against. NewOTel builds
// the production implementation; Noop discards everything, which is what
// a stub Table uses.
type Handle interface {
	IncEntries(delta int64)
	IncHit()
	IncFileIDMismatch()
	IncUSNMismatch()
	IncContentMismatch()
	IncEvicted(n int64)
	IncUpdatedByScan()
	IncRemovedByScan()

	ObserveLoadDuration(d time.Duration)
	ObserveSaveDuration(d time.Duration)
	ObserveProbeDuration(d time.Duration)
	ObserveRecordDuration(d time.Duration)
}

var meter = func() metric.Meter {
	return otelMeterProvider().Meter("github.com/buildcache/fct")
}

// otelMeterProvider is overridden by NewOTel's caller via SetMeterProvider
// before any metrics are created; defaults to a noop provider so tests
// that never configure one still get a usable no-op meter.
var provider metric.MeterProvider

func otelMeterProvider() metric.MeterProvider {
	if provider != nil {
		return provider
	}
	return noop.NewMeterProvider()
}

// SetMeterProvider installs the MeterProvider used by subsequent calls to
// NewOTel. cmd/fctinspect calls this once at startup after constructing the
// otel/exporters/prometheus reader.
func SetMeterProvider(p metric.MeterProvider) { provider = p }

var defaultDurationBuckets = metric.WithExplicitBucketBoundaries(
	0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000,
)

type otelHandle struct {
	numEntries        metric.Int64UpDownCounter
	numHit            metric.Int64Counter
	numFileIDMismatch metric.Int64Counter
	numUSNMismatch    metric.Int64Counter
	numContentMismatch metric.Int64Counter
	numEvicted        metric.Int64Counter
	numUpdatedByScan  metric.Int64Counter
	numRemovedByScan  metric.Int64Counter

	loadDuration   metric.Float64Histogram
	saveDuration   metric.Float64Histogram
	probeDuration  metric.Float64Histogram
	recordDuration metric.Float64Histogram
}

// NewOTel builds the production Handle.
func NewOTel() (Handle, error) {
	m := meter()

	numEntries, err1 := m.Int64UpDownCounter("fct/num_entries", metric.WithDescription("Live entries currently held by the table."))
	numHit, err2 := m.Int64Counter("fct/num_hit", metric.WithDescription("Probe calls that matched a live entry at the queried version."))
	numFileIDMismatch, err3 := m.Int64Counter("fct/num_file_id_mismatch", metric.WithDescription("Probe calls that found no entry for the queried identity."))
	numUSNMismatch, err4 := m.Int64Counter("fct/num_usn_mismatch", metric.WithDescription("Records whose hash matched the prior entry but whose version advanced anyway."))
	numContentMismatch, err5 := m.Int64Counter("fct/num_content_mismatch", metric.WithDescription("Records whose hash differed from the prior entry at the same or a newer version."))
	numEvicted, err6 := m.Int64Counter("fct/num_evicted", metric.WithDescription("Entries dropped at save time because their TTL reached zero."))
	numUpdatedByScan, err7 := m.Int64Counter("fct/num_updated_by_scan", metric.WithDescription("Entries whose version was advanced by a change-journal scan event."))
	numRemovedByScan, err8 := m.Int64Counter("fct/num_removed_by_scan", metric.WithDescription("Entries removed because a change-journal scan reported AllLinks impact."))

	loadDuration, err9 := m.Float64Histogram("fct/load_duration", metric.WithDescription("Wall time to load the table from disk."), metric.WithUnit("ms"), defaultDurationBuckets)
	saveDuration, err10 := m.Float64Histogram("fct/save_duration", metric.WithDescription("Wall time to save the table to disk."), metric.WithUnit("ms"), defaultDurationBuckets)
	probeDuration, err11 := m.Float64Histogram("fct/probe_duration", metric.WithDescription("Wall time of a single probe call."), metric.WithUnit("us"), defaultDurationBuckets)
	recordDuration, err12 := m.Float64Histogram("fct/record_duration", metric.WithDescription("Wall time of a single record call."), metric.WithUnit("us"), defaultDurationBuckets)

	if err := errors.Join(err1, err2, err3, err4, err5, err6, err7, err8, err9, err10, err11, err12); err != nil {
		return nil, err
	}

	return &otelHandle{
		numEntries:         numEntries,
		numHit:             numHit,
		numFileIDMismatch:  numFileIDMismatch,
		numUSNMismatch:     numUSNMismatch,
		numContentMismatch: numContentMismatch,
		numEvicted:         numEvicted,
		numUpdatedByScan:   numUpdatedByScan,
		numRemovedByScan:   numRemovedByScan,
		loadDuration:       loadDuration,
		saveDuration:       saveDuration,
		probeDuration:      probeDuration,
		recordDuration:     recordDuration,
	}, nil
}

func (o *otelHandle) IncEntries(delta int64)    { o.numEntries.Add(context.Background(), delta) }
func (o *otelHandle) IncHit()                   { o.numHit.Add(context.Background(), 1) }
func (o *otelHandle) IncFileIDMismatch()        { o.numFileIDMismatch.Add(context.Background(), 1) }
func (o *otelHandle) IncUSNMismatch()           { o.numUSNMismatch.Add(context.Background(), 1) }
func (o *otelHandle) IncContentMismatch()       { o.numContentMismatch.Add(context.Background(), 1) }
func (o *otelHandle) IncEvicted(n int64)        { o.numEvicted.Add(context.Background(), n) }
func (o *otelHandle) IncUpdatedByScan()         { o.numUpdatedByScan.Add(context.Background(), 1) }
func (o *otelHandle) IncRemovedByScan()         { o.numRemovedByScan.Add(context.Background(), 1) }

func (o *otelHandle) ObserveLoadDuration(d time.Duration) {
	o.loadDuration.Record(context.Background(), float64(d.Milliseconds()))
}
func (o *otelHandle) ObserveSaveDuration(d time.Duration) {
	o.saveDuration.Record(context.Background(), float64(d.Milliseconds()))
}
func (o *otelHandle) ObserveProbeDuration(d time.Duration) {
	o.probeDuration.Record(context.Background(), float64(d.Microseconds()))
}
func (o *otelHandle) ObserveRecordDuration(d time.Duration) {
	o.recordDuration.Record(context.Background(), float64(d.Microseconds()))
}

// noopHandle discards everything; used by stub tables so call sites never
// need a nil check.
type noopHandle struct{}

func (noopHandle) IncEntries(int64)                  {}
func (noopHandle) IncHit()                           {}
func (noopHandle) IncFileIDMismatch()                {}
func (noopHandle) IncUSNMismatch()                   {}
func (noopHandle) IncContentMismatch()               {}
func (noopHandle) IncEvicted(int64)                  {}
func (noopHandle) IncUpdatedByScan()                 {}
func (noopHandle) IncRemovedByScan()                 {}
func (noopHandle) ObserveLoadDuration(time.Duration)  {}
func (noopHandle) ObserveSaveDuration(time.Duration)  {}
func (noopHandle) ObserveProbeDuration(time.Duration) {}
func (noopHandle) ObserveRecordDuration(time.Duration) {}

// Noop returns a Handle that discards every measurement.
func Noop() Handle { return noopHandle{} }

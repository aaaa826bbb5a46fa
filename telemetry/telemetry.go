// Package telemetry wires the engine's operational signals into
// OpenTelemetry metrics: tier transitions, encode outcomes, cold
// evictions, and chunk range reads. It intentionally does not
// attempt to cover every internal counter — only what an operator
// would plausibly alert or dashboard on.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Barthelemy-Drabczuk/digestive-database"
)

// Recorder holds the instruments emitted by one engine instance.
type Recorder struct {
	meter           metric.Meter
	tierTransitions metric.Int64Counter
	encodeOutcomes  metric.Int64Counter
	coldEvictions   metric.Int64Counter
	chunkRangeReads metric.Int64Counter
	entryCount      metric.Int64ObservableGauge
}

// New builds a Recorder against meter. sizeFn is polled lazily by the
// observable entry-count gauge.
func New(meter metric.Meter, sizeFn func() uint64) (*Recorder, error) {
	tierTransitions, err := meter.Int64Counter(
		"digestive_tier_transitions_total",
		metric.WithDescription("Entries whose tier changed during a reorganization pass"),
	)
	if err != nil {
		return nil, err
	}
	encodeOutcomes, err := meter.Int64Counter(
		"digestive_encode_outcomes_total",
		metric.WithDescription("Encode attempts, labeled by requested and actually-used algorithm"),
	)
	if err != nil {
		return nil, err
	}
	coldEvictions, err := meter.Int64Counter(
		"digestive_cold_evictions_total",
		metric.WithDescription("Entries evicted by the size-limit cold-eviction pass"),
	)
	if err != nil {
		return nil, err
	}
	chunkRangeReads, err := meter.Int64Counter(
		"digestive_chunk_range_reads_total",
		metric.WithDescription("Chunk range reads served, labeled by chunk count"),
	)
	if err != nil {
		return nil, err
	}

	r := &Recorder{
		meter:           meter,
		tierTransitions: tierTransitions,
		encodeOutcomes:  encodeOutcomes,
		coldEvictions:   coldEvictions,
		chunkRangeReads: chunkRangeReads,
	}

	if sizeFn != nil {
		gauge, err := meter.Int64ObservableGauge(
			"digestive_entry_count",
			metric.WithDescription("Currently tracked non-chunked entry count"),
			metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
				o.Observe(int64(sizeFn()))
				return nil
			}),
		)
		if err != nil {
			return nil, err
		}
		r.entryCount = gauge
	}

	return r, nil
}

// Meter returns the metric.Meter this Recorder was built from, for
// callers that want to register additional instruments (e.g. the
// reorganizer's pass-level counters) against the same provider.
func (r *Recorder) Meter() metric.Meter {
	if r == nil {
		return nil
	}
	return r.meter
}

// RecordTierTransition logs a tier change from a reorganization pass.
func (r *Recorder) RecordTierTransition(ctx context.Context, from, to digestive.Tier) {
	if r == nil {
		return
	}
	r.tierTransitions.Add(ctx, 1,
		metric.WithAttributes(attribute.String("from", from.String()), attribute.String("to", to.String())))
}

// RecordEncode logs one encode attempt and its actually-used
// algorithm (which may differ from requested if a fallback fired).
func (r *Recorder) RecordEncode(ctx context.Context, requested, used digestive.Algorithm) {
	if r == nil {
		return
	}
	r.encodeOutcomes.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("requested", requested.String()),
			attribute.String("used", used.String()),
			attribute.Bool("fell_back", requested != used),
		))
}

// RecordColdEviction logs one key evicted by the size-limit pass.
func (r *Recorder) RecordColdEviction(ctx context.Context) {
	if r == nil {
		return
	}
	r.coldEvictions.Add(ctx, 1)
}

// RecordChunkRangeRead logs one chunk range read, labeled by the
// number of chunks it touched.
func (r *Recorder) RecordChunkRangeRead(ctx context.Context, numChunks int) {
	if r == nil {
		return
	}
	r.chunkRangeReads.Add(ctx, 1, metric.WithAttributes(attribute.Int("chunks", numChunks)))
}

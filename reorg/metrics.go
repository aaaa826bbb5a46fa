package reorg

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the OpenTelemetry instruments for reorganization
// passes, trimmed to the four counters a caller actually wants to
// alert or dashboard on.
type Metrics struct {
	runsTotal    metric.Int64Counter
	recodedTotal metric.Int64Counter
	skippedTotal metric.Int64Counter
	errorsTotal  metric.Int64Counter
}

// NewMetrics creates a new Metrics instance with the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	runsTotal, err := meter.Int64Counter(
		"digestive_reorg_runs_total",
		metric.WithDescription("Total number of reorganization passes"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}
	recodedTotal, err := meter.Int64Counter(
		"digestive_reorg_entries_recoded_total",
		metric.WithDescription("Total number of entries re-encoded during reorganization"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}
	skippedTotal, err := meter.Int64Counter(
		"digestive_reorg_entries_skipped_total",
		metric.WithDescription("Total number of entries whose tier/algorithm did not change"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}
	errorsTotal, err := meter.Int64Counter(
		"digestive_reorg_decode_errors_total",
		metric.WithDescription("Total number of entries left untouched after a decode failure"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		runsTotal:    runsTotal,
		recodedTotal: recodedTotal,
		skippedTotal: skippedTotal,
		errorsTotal:  errorsTotal,
	}, nil
}

func (m *Metrics) recordRun(result Result) {
	ctx := context.Background()
	m.runsTotal.Add(ctx, 1)
	m.recodedTotal.Add(ctx, int64(result.Recoded))
	m.skippedTotal.Add(ctx, int64(result.Skipped))
	m.errorsTotal.Add(ctx, int64(result.DecodeErr))
}

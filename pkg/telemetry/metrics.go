package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "commitraider"

// Instruments groups the counters recorded during a scan.
// They report through the global MeterProvider and are no-ops until one is installed.
type Instruments struct {
	Commits  metric.Int64Counter
	Probes   metric.Int64Counter
	Degraded metric.Int64Counter
	Findings metric.Int64Counter
}

// NewInstruments creates the scan counters on the global meter.
func NewInstruments() (*Instruments, error) {
	meter := otel.Meter(meterName)

	commits, err := meter.Int64Counter("commitraider.commits",
		metric.WithDescription("Commits folded into repository statistics"))
	if err != nil {
		return nil, err
	}
	probes, err := meter.Int64Counter("commitraider.probes",
		metric.WithDescription("Changed-file probes dispatched"))
	if err != nil {
		return nil, err
	}
	degraded, err := meter.Int64Counter("commitraider.probes.degraded",
		metric.WithDescription("Probes that failed or timed out and yielded no files"))
	if err != nil {
		return nil, err
	}
	findings, err := meter.Int64Counter("commitraider.findings",
		metric.WithDescription("Commits flagged by the pattern engine"))
	if err != nil {
		return nil, err
	}

	return &Instruments{
		Commits:  commits,
		Probes:   probes,
		Degraded: degraded,
		Findings: findings,
	}, nil
}

// RecordBatch adds one extracted batch to the counters.
func (i *Instruments) RecordBatch(ctx context.Context, commits, degraded int) {
	if i == nil {
		return
	}
	i.Commits.Add(ctx, int64(commits))
	i.Probes.Add(ctx, int64(commits))
	if degraded > 0 {
		i.Degraded.Add(ctx, int64(degraded))
	}
}

// RecordFindings adds the findings of a pattern pass, labelled by profile.
func (i *Instruments) RecordFindings(ctx context.Context, profile string, n int) {
	if i == nil {
		return
	}
	i.Findings.Add(ctx, int64(n), metric.WithAttributes(attribute.String("profile", profile)))
}

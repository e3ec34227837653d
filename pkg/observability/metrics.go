package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricItemsAdded        = "distinctcount.items.added"
	metricStateChanges      = "distinctcount.state.changes"
	metricMerges            = "distinctcount.merges"
	metricEstimate          = "distinctcount.estimate"
	metricOperationDuration = "distinctcount.operation.duration.seconds"

	attrSketch    = "sketch"
	attrEstimator = "estimator"
	attrVariant   = "variant"
	attrOp        = "op"
	attrStatus    = "status"

	// StatusOK and StatusError are the values of the status attribute.
	StatusOK    = "ok"
	StatusError = "error"
)

// durationBucketBoundaries covers 1ms to 300s: single snapshot loads finish
// in milliseconds, counting a large input stream takes minutes.
var durationBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}

// SketchMetrics holds the OTel instruments describing sketch activity.
type SketchMetrics struct {
	itemsAdded        metric.Int64Counter
	stateChanges      metric.Int64Counter
	merges            metric.Int64Counter
	estimate          metric.Float64Gauge
	operationDuration metric.Float64Histogram
}

// NewSketchMetrics creates the sketch instruments from the given meter.
func NewSketchMetrics(mt metric.Meter) (*SketchMetrics, error) {
	itemsAdded, err := mt.Int64Counter(metricItemsAdded,
		metric.WithDescription("Number of items inserted into sketches"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricItemsAdded, err)
	}

	stateChanges, err := mt.Int64Counter(metricStateChanges,
		metric.WithDescription("Number of insertions that changed a register"),
		metric.WithUnit("{change}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricStateChanges, err)
	}

	merges, err := mt.Int64Counter(metricMerges,
		metric.WithDescription("Number of sketch merges"),
		metric.WithUnit("{merge}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricMerges, err)
	}

	estimate, err := mt.Float64Gauge(metricEstimate,
		metric.WithDescription("Last distinct count estimate"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricEstimate, err)
	}

	duration, err := mt.Float64Histogram(metricOperationDuration,
		metric.WithDescription("Duration of sketch operations in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricOperationDuration, err)
	}

	return &SketchMetrics{
		itemsAdded:        itemsAdded,
		stateChanges:      stateChanges,
		merges:            merges,
		estimate:          estimate,
		operationDuration: duration,
	}, nil
}

// RecordItems adds n inserted items for the named sketch.
func (sm *SketchMetrics) RecordItems(ctx context.Context, sketch string, n int64) {
	sm.itemsAdded.Add(ctx, n, metric.WithAttributes(attribute.String(attrSketch, sketch)))
}

// RecordMerge counts one merge of sketches of the given variant.
func (sm *SketchMetrics) RecordMerge(ctx context.Context, variant string) {
	sm.merges.Add(ctx, 1, metric.WithAttributes(attribute.String(attrVariant, variant)))
}

// RecordEstimate publishes the latest estimate of the named sketch.
func (sm *SketchMetrics) RecordEstimate(ctx context.Context, sketch, estimator string, value float64) {
	sm.estimate.Record(ctx, value, metric.WithAttributes(
		attribute.String(attrSketch, sketch),
		attribute.String(attrEstimator, estimator),
	))
}

// RecordOperation records a completed operation with its status and duration.
func (sm *SketchMetrics) RecordOperation(ctx context.Context, op, status string, duration time.Duration) {
	sm.operationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrStatus, status),
	))
}

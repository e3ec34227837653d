package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Sumatoshi-tech/distinctcount/pkg/alg/distinct"
)

// MetricsObserver counts register changes of one sketch. It implements
// distinct.StateChangeObserver and can be chained with a martingale
// estimator through distinct.ChainObservers.
type MetricsObserver struct {
	ctx     context.Context //nolint:containedctx // observers are called without a context.
	metrics *SketchMetrics
	attrs   metric.AddOption
}

var _ distinct.StateChangeObserver = (*MetricsObserver)(nil)

// Observer returns an observer that attributes state changes to the named sketch.
func (sm *SketchMetrics) Observer(ctx context.Context, sketch string) *MetricsObserver {
	return &MetricsObserver{
		ctx:     ctx,
		metrics: sm,
		attrs:   metric.WithAttributeSet(attribute.NewSet(attribute.String(attrSketch, sketch))),
	}
}

// StateChanged counts one register change.
func (o *MetricsObserver) StateChanged(_ float64) {
	o.metrics.stateChanges.Add(o.ctx, 1, o.attrs)
}

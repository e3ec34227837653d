package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const spanPrefix = "distinctcount."

// TraceOperation runs fn inside a span named "distinctcount.<op>" and
// records its duration and outcome. The error of fn is returned unchanged.
// A nil metrics disables the duration record.
func TraceOperation(
	ctx context.Context, tracer trace.Tracer, metrics *SketchMetrics, op string,
	fn func(ctx context.Context) error,
) error {
	ctx, span := tracer.Start(ctx, spanPrefix+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String(attrOp, op)),
	)
	defer span.End()

	start := time.Now()
	err := fn(ctx)

	status := StatusOK
	if err != nil {
		status = StatusError

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	if metrics != nil {
		metrics.RecordOperation(ctx, op, status, time.Since(start))
	}

	return err
}

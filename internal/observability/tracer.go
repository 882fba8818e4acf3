package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan creates a new internal span, used by the master around each
// reconfigure and hot-upgrade attempt: "a span wraps
// each reconfigure and each hot-upgrade attempt (master.reconfigure,
// master.upgrade), attributed with cycle generation and listener count."
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// SpanFromContext returns the current span from context.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// SetSpanError marks the span as errored.
func SetSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanOK marks the span as successful.
func SetSpanOK(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// Attribute keys used on master.reconfigure and master.upgrade spans.
var (
	AttrCycleGeneration = attribute.Key("quasar.cycle.generation")
	AttrListenerCount   = attribute.Key("quasar.listener.count")
	AttrWorkerCount     = attribute.Key("quasar.worker.count")
	AttrUpgradePID      = attribute.Key("quasar.upgrade.pid")
)

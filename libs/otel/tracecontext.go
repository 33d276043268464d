package otelx

import (
	"context"

	"go.opentelemetry.io/otel/propagation"
)

const (
	keyTraceparent = "traceparent"
	keyTracestate  = "tracestate"
)

// TraceContextStrings returns the W3C headers for the span in ctx, for storage next to an
// outbox row. Both are empty when ctx carries no sampled span.
func TraceContextStrings(ctx context.Context) (traceparent, tracestate string) {
	carrier := propagation.MapCarrier{}
	propagation.TraceContext{}.Inject(ctx, carrier)
	return carrier.Get(keyTraceparent), carrier.Get(keyTracestate)
}

// ContextWithTraceContext resumes a stored trace as the remote parent of ctx.
func ContextWithTraceContext(ctx context.Context, traceparent, tracestate string) context.Context {
	if traceparent == "" {
		return ctx
	}
	carrier := propagation.MapCarrier{keyTraceparent: traceparent}
	if tracestate != "" {
		carrier.Set(keyTracestate, tracestate)
	}
	return propagation.TraceContext{}.Extract(ctx, carrier)
}

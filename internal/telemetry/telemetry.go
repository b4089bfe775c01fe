// Package telemetry wires request tracing across the HTTP boundary and
// offers StartSpan for manual spans, giving the teacher's
// declared-but-never-imported go.opentelemetry.io/otel stack (plus
// otel/trace and otelhttp) a concrete home instead of dropping it.
package telemetry

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// tracerName identifies this daemon's instrumentation scope to whatever
// TracerProvider the embedding process configures (or the no-op default if
// none is configured).
const tracerName = "github.com/freenet/plugin-wot"

// Tracer returns the package-scoped tracer. Safe to call before any
// TracerProvider is registered: otel.Tracer falls back to a no-op
// implementation.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan begins a span named name on the package tracer. No package in
// this repository calls it; the Score Engine's recompute path is not
// traced.
func StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name)
}

// WrapHTTPHandler instruments handler with otelhttp, the concrete HTTP
// boundary tracing point: every request gets a span named operation.
func WrapHTTPHandler(handler http.Handler, operation string) http.Handler {
	return otelhttp.NewHandler(handler, operation)
}

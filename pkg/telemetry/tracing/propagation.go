package tracing

import (
	"context"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Trace context travels in the W3C traceparent and tracestate headers:
//
//	traceparent: 00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01
//
// The fields are version, trace ID, parent span ID and trace flags. Bit 0 of
// the flags is the sampled bit.

// Header names set on responses when a valid trace context is present.
const (
	HeaderTraceID = "X-Trace-ID"
	HeaderSpanID  = "X-Span-ID"
)

// Propagator returns the global text map propagator.
func Propagator() propagation.TextMapPropagator {
	return otel.GetTextMapPropagator()
}

// Extract returns ctx with any trace context found in headers.
func Extract(ctx context.Context, headers http.Header) context.Context {
	return Propagator().Extract(ctx, propagation.HeaderCarrier(headers))
}

// Inject writes the trace context in ctx into headers.
func Inject(ctx context.Context, headers http.Header) {
	Propagator().Inject(ctx, propagation.HeaderCarrier(headers))
}

// HTTPMiddleware extracts the caller's trace context, opens a server span for
// the request and exposes the trace and span IDs as response headers.
// With a noop tracer only the extraction takes effect.
func HTTPMiddleware(t *Tracer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := Extract(r.Context(), r.Header)

			if t != nil && t.Enabled() {
				var span trace.Span
				ctx, span = t.Start(ctx, r.Method+" "+r.URL.Path, serverSpanOptions(r)...)
				defer span.End()
			}

			if sc := SpanFromContext(ctx).SpanContext(); sc.IsValid() {
				w.Header().Set(HeaderTraceID, sc.TraceID().String())
				w.Header().Set(HeaderSpanID, sc.SpanID().String())
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ValidateTraceParent reports whether traceparent is a well-formed W3C
// traceparent header with non-zero trace and parent IDs.
func ValidateTraceParent(traceparent string) bool {
	parts := strings.Split(traceparent, "-")
	if len(parts) != 4 {
		return false
	}

	for i, want := range []int{2, 32, 16, 2} {
		if len(parts[i]) != want || !isHexString(parts[i]) {
			return false
		}
	}

	if parts[1] == strings.Repeat("0", 32) || parts[2] == strings.Repeat("0", 16) {
		return false
	}

	return true
}

func isHexString(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

package tracing

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Custom attribute keys use the "sentinel.*" namespace. HTTP attributes
// follow the OpenTelemetry semantic conventions.
const (
	AttrRequestID = "sentinel.request_id"

	AttrRulesSource  = "sentinel.rules.source"
	AttrRulesCount   = "sentinel.rules.count"
	AttrRulesVersion = "sentinel.rules.version"
	AttrRulesErrors  = "sentinel.rules.errors"

	AttrErrorType = "sentinel.error.type"

	AttrHTTPMethod     = "http.method"
	AttrHTTPRoute      = "http.route"
	AttrHTTPStatusCode = "http.status_code"
	AttrURLPath        = "url.path"
	AttrUserAgent      = "user_agent.original"
)

// SpanReload is the span name used for rule reloads triggered over HTTP.
const SpanReload = "rules.reload"

func serverSpanOptions(r *http.Request) []trace.SpanStartOption {
	return []trace.SpanStartOption{
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String(AttrHTTPMethod, r.Method),
			attribute.String(AttrURLPath, r.URL.Path),
			attribute.String(AttrUserAgent, r.UserAgent()),
		),
	}
}

// SetRequestID records the request ID on the span.
func SetRequestID(span trace.Span, requestID string) {
	if requestID == "" {
		return
	}
	span.SetAttributes(attribute.String(AttrRequestID, requestID))
}

// SetRouteAttributes records the matched route pattern and response status.
func SetRouteAttributes(span trace.Span, route string, status int) {
	span.SetAttributes(
		attribute.String(AttrHTTPRoute, route),
		attribute.Int(AttrHTTPStatusCode, status),
	)
}

// SetReloadAttributes records the outcome of a rule reload.
func SetReloadAttributes(span trace.Span, count int, version string, errorCount int) {
	span.SetAttributes(
		attribute.Int(AttrRulesCount, count),
		attribute.String(AttrRulesVersion, version),
		attribute.Int(AttrRulesErrors, errorCount),
	)
}

// SetErrorAttributes records err with a classification on the span and
// marks the span as failed.
func SetErrorAttributes(span trace.Span, err error, errorType string) {
	if err == nil {
		return
	}
	span.SetAttributes(attribute.String(AttrErrorType, errorType))
	SetError(span, err)
}

package server

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mercator-hq/sentinel/pkg/telemetry/logging"
)

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.GetRequestID(r.Context())
	}))

	tests := []struct {
		name     string
		incoming string
		reuse    bool
	}{
		{"generated when missing", "", false},
		{"caller id reused", "req-123", true},
		{"oversized id replaced", strings.Repeat("a", maxRequestIDLength+1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			got := rec.Header().Get(RequestIDHeader)
			if got == "" {
				t.Fatal("response has no request ID")
			}
			if got != seen {
				t.Errorf("header ID %q differs from context ID %q", got, seen)
			}
			if tt.reuse && got != tt.incoming {
				t.Errorf("request ID = %q, want %q", got, tt.incoming)
			}
			if !tt.reuse && got == tt.incoming {
				t.Errorf("request ID %q was reused, want a generated one", got)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(logs, nil))

	handler := RequestID(Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, RouteEvaluate, nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	resp := decode[ErrorResponse](t, rec)
	if resp.Error.Type != ErrorTypeInternal {
		t.Errorf("error type = %q, want %q", resp.Error.Type, ErrorTypeInternal)
	}
	if resp.Error.RequestID != rec.Header().Get(RequestIDHeader) {
		t.Errorf("request_id = %q, want %q", resp.Error.RequestID, rec.Header().Get(RequestIDHeader))
	}
	if out := logs.String(); !strings.Contains(out, "panic in handler") || !strings.Contains(out, "boom") {
		t.Errorf("panic not logged: %s", out)
	}
}

func TestRecoveryRepanicsAbort(t *testing.T) {
	handler := Recovery(slog.Default())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Errorf("recovered %v, want http.ErrAbortHandler", rec)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestAccessLog(t *testing.T) {
	ts := newTestServer(t, true)

	logs := &bytes.Buffer{}
	logger := slog.New(logging.NewContextHandler(slog.NewJSONHandler(logs, nil)))
	handler := RequestID(AccessLog(logger, ts.collector)(ts.server.Handler()))

	req := httptest.NewRequest(http.MethodGet, RouteRules, nil)
	req.Header.Set(RequestIDHeader, "access-log-test")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	out := logs.String()
	for _, want := range []string{
		`"msg":"request completed"`,
		`"status":200`,
		`"request_id":"access-log-test"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("access log missing %s: %s", want, out)
		}
	}

	// The server's own access log sees the matched route and warns on 4xx.
	ts.do(t, http.MethodGet, "/missing", "")
	serverLogs := ts.logs.String()
	if !strings.Contains(serverLogs, `"route":"/v1/rules"`) {
		t.Errorf("server access log has no route: %s", serverLogs)
	}
	if !strings.Contains(serverLogs, `"level":"WARN","msg":"request completed"`) {
		t.Errorf("404 was not logged at WARN: %s", serverLogs)
	}
}

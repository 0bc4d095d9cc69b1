package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	applog "smartfinance/internal/log"
)

func TestMiddlewareAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Format: "json", Output: &buf, Component: applog.ComponentHTTP})

	var seen string
	m := NewMiddleware(func(*http.Request) string { return "10.0.0.1" })
	h := applog.Middleware(logger)(m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Fatalf("unexpected request id %q", seen)
	}
	if rec.Header().Get(RequestIDHeader) != seen {
		t.Fatalf("response header %q does not match %q", rec.Header().Get(RequestIDHeader), seen)
	}
	out := buf.String()
	if !strings.Contains(out, `"status_code":418`) || !strings.Contains(out, seen) || !strings.Contains(out, `"client_ip":"10.0.0.1"`) {
		t.Fatalf("unexpected access log %s", out)
	}
	if got := m.GetMetrics().TotalRequests; got != 1 {
		t.Fatalf("expected 1 request, got %d", got)
	}
}

func TestMiddlewareHonorsIncomingID(t *testing.T) {
	m := NewMiddleware(nil)
	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	cases := []struct {
		header string
		keep   bool
	}{
		{"abc-123", true},
		{"has space", false},
		{strings.Repeat("x", maxRequestIDLen+1), false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set(RequestIDHeader, tc.header)
		h.ServeHTTP(httptest.NewRecorder(), req)
		if (seen == tc.header) != tc.keep {
			t.Errorf("header %q: got id %q, keep=%v", tc.header, seen, tc.keep)
		}
	}
	if m.GetMetrics().ServerErrors != 3 {
		t.Fatalf("expected 3 server errors, got %d", m.GetMetrics().ServerErrors)
	}
}

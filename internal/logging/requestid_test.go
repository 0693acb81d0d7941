package logging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGenerateRequestID(t *testing.T) {
	id := GenerateRequestID()
	if len(id) != 8 {
		t.Errorf("GenerateRequestID() length = %d, want 8", len(id))
	}

	// Verify uniqueness
	id2 := GenerateRequestID()
	if id == id2 {
		t.Errorf("GenerateRequestID() generated duplicate IDs: %s", id)
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()
	id := "test1234"

	// Without ID
	if got := GetRequestID(ctx); got != "" {
		t.Errorf("GetRequestID(empty context) = %q, want empty string", got)
	}

	// With ID
	ctx = WithRequestID(ctx, id)
	if got := GetRequestID(ctx); got != id {
		t.Errorf("GetRequestID() = %q, want %q", got, id)
	}
}

func TestGenerateAndRetrieveRoundTrip(t *testing.T) {
	ctx := context.Background()
	id := GenerateRequestID()
	ctx = WithRequestID(ctx, id)

	if got := GetRequestID(ctx); got != id {
		t.Errorf("RoundTrip failed: generated %q, retrieved %q", id, got)
	}
}

func TestRequestIDMiddlewarePropagatesInboundID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "caller-id")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if seen != "caller-id" {
		t.Errorf("context id = %q, want caller-id", seen)
	}
	if got := w.Header().Get("X-Request-ID"); got != "caller-id" {
		t.Errorf("response header = %q, want caller-id", got)
	}
}

func TestRequestIDMiddlewareGeneratesWhenMissing(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if len(seen) != 8 {
		t.Errorf("generated id = %q, want 8 hex chars", seen)
	}
	if w.Header().Get("X-Request-ID") != seen {
		t.Errorf("response header %q does not match context id %q", w.Header().Get("X-Request-ID"), seen)
	}
}

package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHstsHandlerHeader(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	// Wrap first, configure after: the header must still be emitted.
	h := hstsHandler(inner)

	globals.tlsStrictMaxAge = "31536000"
	t.Cleanup(func() { globals.tlsStrictMaxAge = "" })

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := rec.Header().Get("Strict-Transport-Security"); got != "max-age=31536000" {
		t.Errorf("Strict-Transport-Security = %q, want 'max-age=31536000'", got)
	}
}

func TestHstsHandlerUnconfigured(t *testing.T) {
	h := hstsHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := rec.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("unexpected Strict-Transport-Security header %q", got)
	}
}

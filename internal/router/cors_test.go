package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"RestJSON/internal/config"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func withCORS(origin string, credentials bool, next http.Handler) http.Handler {
	cfg := config.CORSConfig{AllowOrigin: origin, AllowCredentials: credentials}
	return newCORSPolicy(cfg, Routes("/api")).wrap(next)
}

func serveCORS(h http.Handler, method, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/users", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestCORS_AllowsSingleOrigin(t *testing.T) {
	w := serveCORS(withCORS("http://localhost:3000", false, okHandler), http.MethodGet, "http://localhost:3000")

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("unexpected allow origin: %q", got)
	}
	if got := w.Header().Get("Vary"); got != "Origin" {
		t.Fatalf("unexpected vary: %q", got)
	}
	if got := w.Header().Get("Access-Control-Expose-Headers"); got != requestIDHeader {
		t.Fatalf("unexpected expose headers: %q", got)
	}
}

func TestCORS_AllowsFromCSVList(t *testing.T) {
	w := serveCORS(withCORS("http://192.168.0.251:3000, http://cbs:3000,", false, okHandler), http.MethodGet, "http://cbs:3000")

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://cbs:3000" {
		t.Fatalf("unexpected allow origin: %q", got)
	}
}

func TestCORS_BlocksUnknownOrigin(t *testing.T) {
	h := withCORS("http://192.168.0.251:3000,http://cbs:3000", false, okHandler)

	for _, origin := range []string{"http://evil.example", ""} {
		w := serveCORS(h, http.MethodGet, origin)
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Fatalf("unexpected allow origin for %q: %q", origin, got)
		}
		if w.Code != http.StatusOK {
			t.Fatalf("request must still reach the handler, got %d", w.Code)
		}
	}
}

func TestCORS_EmptyConfigIsWildcard(t *testing.T) {
	w := serveCORS(withCORS(" , ", false, okHandler), http.MethodGet, "http://app.example")

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("unexpected allow origin: %q", got)
	}
	if got := w.Header().Get("Vary"); got != "" {
		t.Fatalf("wildcard must not vary: %q", got)
	}
}

func TestCORS_WildcardWithCredentialsEchoesOrigin(t *testing.T) {
	w := serveCORS(withCORS("*", true, okHandler), http.MethodGet, "http://app.example")

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://app.example" {
		t.Fatalf("unexpected allow origin: %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("unexpected allow credentials: %q", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	h := withCORS("*", false, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	w := serveCORS(h, http.MethodOptions, "")

	if w.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: %d", w.Code)
	}
	if called {
		t.Fatalf("preflight must not reach the handler")
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, PUT, PATCH, DELETE, OPTIONS" {
		t.Fatalf("unexpected allow methods: %q", got)
	}
}

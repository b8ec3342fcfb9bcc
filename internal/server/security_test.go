package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func serveWithHeaders(cfg SecurityConfig) *httptest.ResponseRecorder {
	handler := securityHeaders(cfg)
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	rec := httptest.NewRecorder()
	handler(inner).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	return rec
}

func TestSecurityHeaders_CSPOmitsUnsafeInline(t *testing.T) {
	rec := serveWithHeaders(SecurityConfig{BaseURL: "https://clips.test"})

	csp := rec.Header().Get("Content-Security-Policy")
	if csp == "" {
		t.Fatal("expected a Content-Security-Policy header")
	}
	if strings.Contains(csp, "'unsafe-inline'") {
		t.Errorf("CSP should not contain 'unsafe-inline', got: %s", csp)
	}
}

func TestSecurityHeaders_CSPIncludesMediaOrigin(t *testing.T) {
	rec := serveWithHeaders(SecurityConfig{
		BaseURL:     "https://clips.test",
		MediaOrigin: "https://cdn.example.com",
	})

	csp := rec.Header().Get("Content-Security-Policy")
	for _, directive := range []string{
		"img-src 'self' data: https://cdn.example.com",
		"media-src 'self' blob: https://cdn.example.com",
		"connect-src 'self' https://cdn.example.com",
	} {
		if !strings.Contains(csp, directive) {
			t.Errorf("expected CSP to contain %q, got: %s", directive, csp)
		}
	}
}

func TestSecurityHeaders_StrictTransportOnlyOverHTTPS(t *testing.T) {
	secure := serveWithHeaders(SecurityConfig{BaseURL: "https://clips.test"})
	if secure.Header().Get("Strict-Transport-Security") == "" {
		t.Error("expected HSTS for an https base URL")
	}

	plain := serveWithHeaders(SecurityConfig{BaseURL: "http://localhost:8080"})
	if plain.Header().Get("Strict-Transport-Security") != "" {
		t.Error("expected no HSTS for an http base URL")
	}
}

func TestSecurityHeaders_StaticHeaders(t *testing.T) {
	rec := serveWithHeaders(SecurityConfig{})

	want := map[string]string{
		"Referrer-Policy":        "no-referrer",
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "SAMEORIGIN",
	}
	for header, value := range want {
		if got := rec.Header().Get(header); got != value {
			t.Errorf("%s: expected %q, got %q", header, value, got)
		}
	}
	if !strings.Contains(rec.Header().Get("Permissions-Policy"), "camera=()") {
		t.Errorf("expected camera to be disabled, got %q", rec.Header().Get("Permissions-Policy"))
	}
}

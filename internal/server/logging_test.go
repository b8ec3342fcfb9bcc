package server

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func captureLogs(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: level})))
	t.Cleanup(func() { slog.SetDefault(previous) })
	return &buf
}

func TestSlogMiddleware_LogsRequest(t *testing.T) {
	buf := captureLogs(t, slog.LevelInfo)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(slogMiddleware)
	r.Get("/api/locations", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello"))
	})

	req := httptest.NewRequest(http.MethodGet, "/api/locations", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	output := buf.String()
	for _, field := range []string{
		"method=GET",
		"path=/api/locations",
		"status=200",
		"bytes=5",
		"client_ip=203.0.113.9",
		"duration_ms=",
		"request_id=",
	} {
		if !bytes.Contains([]byte(output), []byte(field)) {
			t.Errorf("expected log to contain %q, got: %s", field, output)
		}
	}
}

func TestSlogMiddleware_SkipsHealthCheck(t *testing.T) {
	buf := captureLogs(t, slog.LevelDebug)

	r := chi.NewRouter()
	r.Use(slogMiddleware)
	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no log output for /api/health, got: %s", buf.String())
	}
}

func TestSlogMiddleware_LogsNon200Status(t *testing.T) {
	buf := captureLogs(t, slog.LevelInfo)

	r := chi.NewRouter()
	r.Use(slogMiddleware)
	r.Get("/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	if !bytes.Contains(buf.Bytes(), []byte("status=404")) {
		t.Errorf("expected log to contain status=404, got: %s", buf.String())
	}
}

func TestSlogMiddleware_DataFilesLogAtDebug(t *testing.T) {
	buf := captureLogs(t, slog.LevelInfo)

	r := chi.NewRouter()
	r.Use(slogMiddleware)
	r.Get("/data/*", func(w http.ResponseWriter, r *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/data/config_locations.json", nil))

	if buf.Len() != 0 {
		t.Errorf("expected data requests below info level, got: %s", buf.String())
	}
}

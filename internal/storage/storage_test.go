package storage_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/puntazo/puntazo/internal/storage"
)

func newTestStorage(t *testing.T, endpoint string) *storage.Storage {
	t.Helper()
	s, err := storage.New(context.Background(), storage.Config{
		Endpoint:  endpoint,
		Bucket:    "clips",
		AccessKey: "test",
		SecretKey: "test",
	})
	if err != nil {
		t.Fatalf("expected no error creating storage client, got: %v", err)
	}
	return s
}

// fakeS3 serves path-style GETs for a fixed set of objects.
func fakeS3(objects map[string]string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/clips/")
		body, ok := objects[key]
		if r.Method != http.MethodGet || !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
}

func TestGetObject(t *testing.T) {
	srv := fakeS3(map[string]string{"config_locations.json": `{"locaciones":[]}`})
	defer srv.Close()
	s := newTestStorage(t, srv.URL)

	body, err := s.GetObject(context.Background(), "config_locations.json")
	if err != nil {
		t.Fatalf("get object: %v", err)
	}
	defer func() { _ = body.Close() }()
	data, _ := io.ReadAll(body)
	if string(data) != `{"locaciones":[]}` {
		t.Errorf("unexpected body %q", data)
	}
}

func TestGetObjectMissingKey(t *testing.T) {
	srv := fakeS3(nil)
	defer srv.Close()
	s := newTestStorage(t, srv.URL)

	_, err := s.GetObject(context.Background(), "Locaciones/a/b/c/videos_recientes.json")
	if !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestGenerateDownloadURLWithDisposition(t *testing.T) {
	s := newTestStorage(t, "http://localhost:9000")

	raw, err := s.GenerateDownloadURLWithDisposition(context.Background(), "shared/x/clip.mp4", `we"ird.mp4`, time.Hour)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse presigned url: %v", err)
	}
	if u.Path != "/clips/shared/x/clip.mp4" {
		t.Errorf("unexpected path %q", u.Path)
	}
	got := u.Query().Get("response-content-disposition")
	if got != `attachment; filename="we_ird.mp4"` {
		t.Errorf("unexpected disposition %q", got)
	}
	if u.Query().Get("X-Amz-Expires") != "3600" {
		t.Errorf("expected 1h expiry, got %q", u.Query().Get("X-Amz-Expires"))
	}
}

func TestPutBytesRejectsOversizedPayload(t *testing.T) {
	s, err := storage.New(context.Background(), storage.Config{
		Endpoint:       "http://localhost:9000",
		Bucket:         "clips",
		AccessKey:      "test",
		SecretKey:      "test",
		MaxUploadBytes: 4,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.PutBytes(context.Background(), "k", []byte("too large"), "video/mp4"); err == nil {
		t.Fatal("expected size limit error")
	}
}

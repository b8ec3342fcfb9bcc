package geoip

import (
	"testing"
)

func TestNew_EmptyPath(t *testing.T) {
	r, err := New("")
	if err != nil {
		t.Fatalf("expected no error for empty path, got %v", err)
	}
	if p := r.Locate("8.8.8.8"); p != (Place{}) {
		t.Errorf("expected empty place without a database, got %+v", p)
	}
}

func TestNew_InvalidPath(t *testing.T) {
	r, err := New("/nonexistent/path.mmdb")
	if err != nil {
		t.Fatalf("expected graceful fallback for missing file, got %v", err)
	}
	if p := r.Locate("8.8.8.8"); p != (Place{}) {
		t.Errorf("expected empty place, got %+v", p)
	}
}

func TestLocate_NilResolverAndBadInput(t *testing.T) {
	var r *Resolver
	if p := r.Locate("1.1.1.1"); p != (Place{}) {
		t.Errorf("expected empty place for nil resolver, got %+v", p)
	}
	r, _ = New("")
	for _, ip := range []string{"", "not-an-ip"} {
		if p := r.Locate(ip); p != (Place{}) {
			t.Errorf("Locate(%q) = %+v, want empty", ip, p)
		}
	}
}

func TestPlaceFields(t *testing.T) {
	if got := (Place{}).Fields(); len(got) != 0 {
		t.Errorf("expected no fields, got %v", got)
	}
	got := Place{Country: "AR", City: "Rosario"}.Fields()
	if got["country"] != "AR" || got["city"] != "Rosario" {
		t.Errorf("unexpected fields %v", got)
	}
}

func TestClose_NilDB(t *testing.T) {
	r, _ := New("")
	if err := r.Close(); err != nil {
		t.Errorf("expected no error closing resolver without database, got %v", err)
	}
}

package validate

import (
	"strings"
	"testing"
)

func TestIdentifier(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"valid", "cancha1", ""},
		{"with space", "Club Norte", ""},
		{"empty", "", "court is required"},
		{"at limit", strings.Repeat("a", MaxIdentifierLength), ""},
		{"over limit", strings.Repeat("a", MaxIdentifierLength+1), "court must be 100 characters or fewer"},
		{"slash", "a/b", "court contains invalid characters"},
		{"dotdot", "..", "court contains invalid characters"},
		{"control", "a\nb", "court contains invalid characters"},
	}
	for _, tt := range tests {
		if got := Identifier(tt.input, "court"); got != tt.want {
			t.Errorf("Identifier(%s) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestClipName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"valid", "club_c1_a_20240101_070000.mp4", ""},
		{"empty", "", "video is required"},
		{"over limit", strings.Repeat("a", MaxClipNameLength+1), "video must be 255 characters or fewer"},
		{"path", "../x.mp4", "video contains invalid characters"},
	}
	for _, tt := range tests {
		if got := ClipName(tt.input); got != tt.want {
			t.Errorf("ClipName(%s) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestPassphrase(t *testing.T) {
	if got := Passphrase(""); got != "passphrase is required" {
		t.Errorf("unexpected message %q", got)
	}
	if got := Passphrase("secret"); got != "" {
		t.Errorf("unexpected message %q", got)
	}
	if got := Passphrase(strings.Repeat("x", MaxPassphraseLength+1)); got == "" {
		t.Error("expected length error")
	}
}

func TestHour(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		isNil   bool
		wantMsg bool
	}{
		{input: "", isNil: true},
		{input: "0", want: 0},
		{input: "23", want: 23},
		{input: "24", isNil: true, wantMsg: true},
		{input: "-1", isNil: true, wantMsg: true},
		{input: "7am", isNil: true, wantMsg: true},
	}
	for _, tt := range tests {
		got, msg := Hour(tt.input)
		if (msg != "") != tt.wantMsg {
			t.Errorf("Hour(%q) message = %q", tt.input, msg)
		}
		if tt.isNil {
			if got != nil {
				t.Errorf("Hour(%q) = %d, want nil", tt.input, *got)
			}
			continue
		}
		if got == nil || *got != tt.want {
			t.Errorf("Hour(%q) = %v, want %d", tt.input, got, tt.want)
		}
	}
}

func TestPage(t *testing.T) {
	if p, msg := Page(""); p != 0 || msg != "" {
		t.Errorf("Page(\"\") = %d %q", p, msg)
	}
	if p, msg := Page("-5"); p != -5 || msg != "" {
		t.Errorf("expected -5 passed through for clamping, got %d %q", p, msg)
	}
	if _, msg := Page("two"); msg == "" {
		t.Error("expected error for non-numeric page")
	}
}

package validate

import (
	"fmt"
	"strconv"
	"strings"
)

// Input length limits.
const (
	MaxIdentifierLength = 100
	MaxClipNameLength   = 255
	MaxPassphraseLength = 200
)

func checkLen(value string, max int, field string) string {
	if len(value) > max {
		return fmt.Sprintf("%s must be %d characters or fewer", field, max)
	}
	return ""
}

// Identifier checks a location, court or side id taken from a URL.
func Identifier(s, field string) string {
	if s == "" {
		return field + " is required"
	}
	if msg := checkLen(s, MaxIdentifierLength, field); msg != "" {
		return msg
	}
	if s == "." || s == ".." || strings.ContainsAny(s, "/\\") || hasControl(s) {
		return field + " contains invalid characters"
	}
	return ""
}

// ClipName checks a clip file name used for deep links and downloads.
func ClipName(s string) string {
	if s == "" {
		return "video is required"
	}
	if msg := checkLen(s, MaxClipNameLength, "video"); msg != "" {
		return msg
	}
	if strings.ContainsAny(s, "/\\") || hasControl(s) {
		return "video contains invalid characters"
	}
	return ""
}

func Passphrase(s string) string {
	if s == "" {
		return "passphrase is required"
	}
	return checkLen(s, MaxPassphraseLength, "passphrase")
}

// Hour parses the filtro query value. An empty value means no filter.
func Hour(s string) (*int, string) {
	if s == "" {
		return nil, ""
	}
	h, err := strconv.Atoi(s)
	if err != nil || h < 0 || h > 23 {
		return nil, "filtro must be an hour between 0 and 23"
	}
	return &h, ""
}

// Page parses a zero-based page number. Out of range pages are clamped later
// so only non-numeric input is rejected.
func Page(s string) (int, string) {
	if s == "" {
		return 0, ""
	}
	p, err := strconv.Atoi(s)
	if err != nil {
		return 0, "page must be a number"
	}
	return p, ""
}

func hasControl(s string) bool {
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return true
		}
	}
	return false
}

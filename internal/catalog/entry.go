package catalog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	stampPattern = regexp.MustCompile(`_(\d{4})(\d{2})(\d{2})_(\d{2})(\d{2})(\d{2})\.[A-Za-z0-9]+$`)
	clockPattern = regexp.MustCompile(`_(\d{2})(\d{2})(\d{2})\.[A-Za-z0-9]+$`)
)

// Tokens are the decoded parts of a clip file name following
// LOC_COURT_SIDE_YYYYMMDD_HHMMSS.ext. Location, Court and Side are empty
// when the prefix does not split into exactly three parts.
type Tokens struct {
	Location string
	Court    string
	Side     string
	Year     int
	Month    int
	Day      int
	Hour     int
	Minute   int
	Second   int
}

// Encode renders the date and time tokens back into YYYYMMDD_HHMMSS.
func (t Tokens) Encode() string {
	return fmt.Sprintf("%04d%02d%02d_%02d%02d%02d", t.Year, t.Month, t.Day, t.Hour, t.Minute, t.Second)
}

// Entry is one clip of a side feed. Derived fields are filled by
// NormalizeEntry and the value is never mutated afterwards.
type Entry struct {
	Name     string  `json:"name"`
	URL      string  `json:"url"`
	Duration float64 `json:"duration,omitempty"`

	Tokens       *Tokens   `json:"-"`
	Captured     time.Time `json:"captured,omitzero"`
	TimestampKey int64     `json:"timestampKey,omitempty"`
	DayKey       int       `json:"dayKey,omitempty"`
	Clock        string    `json:"clock,omitempty"`
}

// HasTimestamp reports whether the name matched the date/time grammar.
func (e Entry) HasTimestamp() bool {
	return e.Tokens != nil
}

// Hour returns the decoded capture hour.
func (e Entry) Hour() (int, bool) {
	if e.Tokens == nil {
		return 0, false
	}
	return e.Tokens.Hour, true
}

// DisplayName is the label shown for the clip: the capture clock when the
// name carries one, the raw file name otherwise.
func (e Entry) DisplayName() string {
	if e.Clock != "" {
		return e.Clock
	}
	return e.Name
}

// ParseName decodes the tokens of a clip file name. It never fails: the
// second return value is false when the date/time suffix is missing or
// names an impossible calendar instant.
func ParseName(name string) (Tokens, bool) {
	m := stampPattern.FindStringSubmatchIndex(name)
	if m == nil {
		return Tokens{}, false
	}
	nums := make([]int, 6)
	for i := range nums {
		n, err := strconv.Atoi(name[m[2+2*i]:m[3+2*i]])
		if err != nil {
			return Tokens{}, false
		}
		nums[i] = n
	}
	t := Tokens{Year: nums[0], Month: nums[1], Day: nums[2], Hour: nums[3], Minute: nums[4], Second: nums[5]}
	if !validCalendar(t) {
		return Tokens{}, false
	}

	prefix := name[:m[0]]
	if parts := strings.Split(prefix, "_"); len(parts) == 3 && parts[0] != "" && parts[1] != "" && parts[2] != "" {
		t.Location, t.Court, t.Side = parts[0], parts[1], parts[2]
	}
	return t, true
}

func validCalendar(t Tokens) bool {
	if t.Month < 1 || t.Month > 12 || t.Day < 1 || t.Hour > 23 || t.Minute > 59 || t.Second > 59 {
		return false
	}
	d := time.Date(t.Year, time.Month(t.Month), t.Day, 0, 0, 0, 0, time.UTC)
	return d.Day() == t.Day
}

// NormalizeEntry fills the derived fields of a raw feed item. Capture
// instants are interpreted in loc (UTC when nil).
func NormalizeEntry(name, rawURL string, duration float64, loc *time.Location) Entry {
	if loc == nil {
		loc = time.UTC
	}
	e := Entry{Name: name, URL: DirectURL(rawURL)}
	if duration > 0 {
		e.Duration = duration
	}

	if m := clockPattern.FindStringSubmatch(name); m != nil {
		e.Clock = m[1] + ":" + m[2] + ":" + m[3]
	}

	t, ok := ParseName(name)
	if !ok {
		return e
	}
	e.Tokens = &t
	e.Captured = time.Date(t.Year, time.Month(t.Month), t.Day, t.Hour, t.Minute, t.Second, 0, loc)
	e.DayKey = t.Year*10000 + t.Month*100 + t.Day
	e.TimestampKey = int64(e.DayKey)*1000000 + int64(t.Hour*10000+t.Minute*100+t.Second)
	return e
}

// DirectURL rewrites Dropbox share links into their direct-download form so
// media elements and transfers receive the file bytes instead of a preview page.
func DirectURL(raw string) string {
	if !strings.Contains(raw, "dropbox.com") {
		return raw
	}
	u := strings.Replace(raw, "www.dropbox.com", "dl.dropboxusercontent.com", 1)
	u = dlParam.ReplaceAllString(u, "${1}raw=1")
	return u
}

var dlParam = regexp.MustCompile(`([&?])dl=[^&]*`)

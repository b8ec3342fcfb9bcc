package gallery

import (
	"fmt"
	"sort"

	"github.com/puntazo/puntazo/internal/catalog"
)

// Hours returns the distinct capture hours present in entries, ascending.
func Hours(entries []catalog.Entry) []int {
	seen := make(map[int]struct{})
	for _, e := range entries {
		if h, ok := e.Hour(); ok {
			seen[h] = struct{}{}
		}
	}
	hours := make([]int, 0, len(seen))
	for h := range seen {
		hours = append(hours, h)
	}
	sort.Ints(hours)
	return hours
}

func formatAmPm(hour int) string {
	suffix := "AM"
	if hour >= 12 {
		suffix = "PM"
	}
	h := hour % 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d %s", h, suffix)
}

// HourLabel renders the one-hour bucket starting at hour, e.g. "11 PM - 12 AM".
func HourLabel(hour int) string {
	return formatAmPm(hour) + " - " + formatAmPm((hour+1)%24)
}

type HourBucket struct {
	Hour  int    `json:"hour"`
	Label string `json:"label"`
}

func HourBuckets(entries []catalog.Entry) []HourBucket {
	hours := Hours(entries)
	out := make([]HourBucket, 0, len(hours))
	for _, h := range hours {
		out = append(out, HourBucket{Hour: h, Label: HourLabel(h)})
	}
	return out
}

// Package gallery turns a normalized side feed into the page of clips that
// is shown: hour filtering, recency ordering and fixed-size pagination.
package gallery

import (
	"sort"

	"github.com/puntazo/puntazo/internal/catalog"
)

// PageSize is the number of clips per page.
const PageSize = 10

type Options struct {
	// Hour keeps only clips captured during that hour when set.
	Hour *int
	// Page is the requested zero-based page; it is clamped into range.
	Page int
	// Target is a deep-linked clip name. When it is present in the
	// filtered set, its page replaces Page.
	Target string
}

type Page struct {
	Items      []catalog.Entry `json:"items"`
	Index      int             `json:"page"`
	TotalPages int             `json:"totalPages"`
	TotalItems int             `json:"totalItems"`
}

// HasPrev and HasNext drive the pager controls.
func (p Page) HasPrev() bool { return p.Index > 0 }
func (p Page) HasNext() bool { return p.Index < p.TotalPages-1 }

// Select filters, sorts and slices entries. The input slice is not modified.
func Select(entries []catalog.Entry, opts Options) Page {
	sorted := Sorted(Filter(entries, opts.Hour))

	total := len(sorted)
	pages := TotalPages(total)

	index := opts.Page
	if opts.Target != "" {
		for i, e := range sorted {
			if e.Name == opts.Target {
				index = i / PageSize
				break
			}
		}
	}
	index = ClampPage(index, pages)

	start := index * PageSize
	end := min(start+PageSize, total)
	items := make([]catalog.Entry, 0, end-start)
	if start < end {
		items = append(items, sorted[start:end]...)
	}

	return Page{Items: items, Index: index, TotalPages: pages, TotalItems: total}
}

// Filter keeps the entries captured during hour. Entries without a decoded
// hour are dropped while a filter is active. A nil hour keeps everything.
func Filter(entries []catalog.Entry, hour *int) []catalog.Entry {
	out := make([]catalog.Entry, 0, len(entries))
	for _, e := range entries {
		if hour != nil {
			h, ok := e.Hour()
			if !ok || h != *hour {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

// Sorted returns a copy ordered by timestamp key, most recent first.
// Entries without a key go last and keep their original relative order.
func Sorted(entries []catalog.Entry) []catalog.Entry {
	out := make([]catalog.Entry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.TimestampKey == 0 || b.TimestampKey == 0 {
			return a.TimestampKey != 0 && b.TimestampKey == 0
		}
		return a.TimestampKey > b.TimestampKey
	})
	return out
}

func TotalPages(count int) int {
	return max(1, (count+PageSize-1)/PageSize)
}

func ClampPage(index, totalPages int) int {
	if index < 0 {
		return 0
	}
	if last := max(0, totalPages-1); index > last {
		return last
	}
	return index
}

// ShowPagination reports whether pager controls should be rendered. They
// are suppressed only when all clips fit on one page and there is no link
// to an adjacent side to place next to them.
func ShowPagination(totalItems int, hasAdjacentSide bool) bool {
	return totalItems > PageSize || hasAdjacentSide
}

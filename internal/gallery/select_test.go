package gallery

import (
	"fmt"
	"net/url"
	"testing"

	"github.com/puntazo/puntazo/internal/catalog"
)

// feed builds n entries one minute apart starting at 10:00, oldest first,
// the way feeds are appended to.
func feed(n int) []catalog.Entry {
	entries := make([]catalog.Entry, 0, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("Club_C1_A_20250615_%02d%02d00.mp4", 10+i/60, i%60)
		entries = append(entries, catalog.NormalizeEntry(name, "", 0, nil))
	}
	return entries
}

func intPtr(v int) *int { return &v }

func TestSelect_TwentyThreeEntriesMakeThreePages(t *testing.T) {
	entries := feed(23)

	first := Select(entries, Options{})
	if first.TotalPages != 3 || first.TotalItems != 23 {
		t.Fatalf("expected 3 pages of 23 items, got %d pages %d items", first.TotalPages, first.TotalItems)
	}
	if len(first.Items) != 10 {
		t.Fatalf("expected 10 items on page 0, got %d", len(first.Items))
	}
	if first.Items[0].Name != entries[22].Name {
		t.Errorf("expected newest entry first, got %s", first.Items[0].Name)
	}

	last := Select(entries, Options{Page: 2})
	if len(last.Items) != 3 {
		t.Fatalf("expected 3 items on page 2, got %d", len(last.Items))
	}
	for i, e := range last.Items {
		if want := entries[2-i].Name; e.Name != want {
			t.Errorf("page 2 item %d: expected %s, got %s", i, want, e.Name)
		}
	}
}

func TestSelect_ClampsOutOfRangePages(t *testing.T) {
	entries := feed(23)

	for _, requested := range []int{-5, 9999} {
		p := Select(entries, Options{Page: requested})
		if p.Index < 0 || p.Index > p.TotalPages-1 {
			t.Errorf("page %d clamped to %d, outside [0,%d]", requested, p.Index, p.TotalPages-1)
		}
	}
	if p := Select(entries, Options{Page: -5}); p.Index != 0 {
		t.Errorf("expected -5 to clamp to 0, got %d", p.Index)
	}
	if p := Select(entries, Options{Page: 9999}); p.Index != 2 {
		t.Errorf("expected 9999 to clamp to 2, got %d", p.Index)
	}
}

func TestSelect_EmptyFeedHasOnePage(t *testing.T) {
	p := Select(nil, Options{Page: 3})
	if p.TotalPages != 1 || p.Index != 0 || len(p.Items) != 0 {
		t.Errorf("unexpected empty page: %+v", p)
	}
}

func TestSelect_SortIsDescendingAcrossPages(t *testing.T) {
	entries := feed(35)
	// Shuffle deterministically so ordering comes from the sort.
	shuffled := make([]catalog.Entry, 0, len(entries))
	for i := 0; i < len(entries); i += 2 {
		shuffled = append(shuffled, entries[i])
	}
	for i := 1; i < len(entries); i += 2 {
		shuffled = append(shuffled, entries[i])
	}

	var all []catalog.Entry
	pages := Select(shuffled, Options{}).TotalPages
	for i := 0; i < pages; i++ {
		all = append(all, Select(shuffled, Options{Page: i}).Items...)
	}
	if len(all) != len(entries) {
		t.Fatalf("expected %d items across pages, got %d", len(entries), len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].TimestampKey < all[i].TimestampKey {
			t.Fatalf("order broken at %d: %d before %d", i, all[i-1].TimestampKey, all[i].TimestampKey)
		}
	}
}

func TestSelect_UndecodedEntriesSortLastInOriginalOrder(t *testing.T) {
	entries := []catalog.Entry{
		catalog.NormalizeEntry("zeta.mp4", "", 0, nil),
		catalog.NormalizeEntry("Club_C1_A_20250615_100000.mp4", "", 0, nil),
		catalog.NormalizeEntry("alpha.mp4", "", 0, nil),
		catalog.NormalizeEntry("Club_C1_A_20250615_110000.mp4", "", 0, nil),
	}

	p := Select(entries, Options{})
	want := []string{
		"Club_C1_A_20250615_110000.mp4",
		"Club_C1_A_20250615_100000.mp4",
		"zeta.mp4",
		"alpha.mp4",
	}
	for i, name := range want {
		if p.Items[i].Name != name {
			t.Errorf("position %d: expected %s, got %s", i, name, p.Items[i].Name)
		}
	}
}

func TestSelect_HourFilterKeepsOnlyMatchingHour(t *testing.T) {
	entries := append(feed(130), catalog.NormalizeEntry("nodate.mp4", "", 0, nil))

	for _, hour := range []int{10, 11, 12} {
		filtered := Filter(entries, intPtr(hour))
		if len(filtered) == 0 {
			t.Fatalf("expected entries for hour %d", hour)
		}
		for _, e := range filtered {
			h, ok := e.Hour()
			if !ok || h != hour {
				t.Errorf("hour %d filter returned %s", hour, e.Name)
			}
		}
	}

	p := Select(entries, Options{Hour: intPtr(12)})
	if p.TotalItems != 10 {
		t.Errorf("expected 10 entries at 12h, got %d", p.TotalItems)
	}
	if got := len(Filter(entries, nil)); got != len(entries) {
		t.Errorf("expected nil filter to keep all %d entries, got %d", len(entries), got)
	}
}

func TestSelect_DeepLinkOverridesPage(t *testing.T) {
	entries := feed(23)
	target := entries[1].Name // second oldest, lands on the last page

	p := Select(entries, Options{Page: 0, Target: target})
	if p.Index != 2 {
		t.Fatalf("expected deep link to select page 2, got %d", p.Index)
	}
	found := false
	for _, e := range p.Items {
		if e.Name == target {
			found = true
		}
	}
	if !found {
		t.Error("expected target on the selected page")
	}

	p = Select(entries, Options{Page: 1, Target: "missing.mp4"})
	if p.Index != 1 {
		t.Errorf("expected unknown target to keep page 1, got %d", p.Index)
	}
}

func TestShowPagination(t *testing.T) {
	cases := []struct {
		total    int
		adjacent bool
		want     bool
	}{
		{total: 5, adjacent: false, want: false},
		{total: 10, adjacent: false, want: false},
		{total: 11, adjacent: false, want: true},
		{total: 5, adjacent: true, want: true},
	}
	for _, c := range cases {
		if got := ShowPagination(c.total, c.adjacent); got != c.want {
			t.Errorf("ShowPagination(%d, %v) = %v, want %v", c.total, c.adjacent, got, c.want)
		}
	}
}

func TestHours_SortedDistinct(t *testing.T) {
	entries := []catalog.Entry{
		catalog.NormalizeEntry("a_b_c_20250615_230000.mp4", "", 0, nil),
		catalog.NormalizeEntry("a_b_c_20250615_070000.mp4", "", 0, nil),
		catalog.NormalizeEntry("a_b_c_20250615_071000.mp4", "", 0, nil),
		catalog.NormalizeEntry("bad.mp4", "", 0, nil),
	}
	buckets := HourBuckets(entries)
	if len(buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %+v", buckets)
	}
	if buckets[0].Label != "7 AM - 8 AM" || buckets[1].Label != "11 PM - 12 AM" {
		t.Errorf("unexpected labels: %+v", buckets)
	}
	if HourLabel(0) != "12 AM - 1 AM" || HourLabel(12) != "12 PM - 1 PM" {
		t.Errorf("unexpected midnight/noon labels: %q %q", HourLabel(0), HourLabel(12))
	}
}

func TestNav_RoundTripsThroughQuery(t *testing.T) {
	n := Nav{Location: "Club", Court: "C1", Side: "A", Hour: intPtr(7), Page: 2}
	parsed := ParseNav(n.Values())
	if parsed.Location != "Club" || parsed.Court != "C1" || parsed.Side != "A" || parsed.Page != 2 {
		t.Errorf("unexpected round trip: %+v", parsed)
	}
	if parsed.Hour == nil || *parsed.Hour != 7 {
		t.Errorf("expected hour 7, got %v", parsed.Hour)
	}
}

func TestParseNav_IgnoresInvalidHour(t *testing.T) {
	n := ParseNav(url.Values{"filtro": {"25"}, "page": {"x"}})
	if n.Hour != nil || n.Page != 0 {
		t.Errorf("expected invalid values to be ignored, got %+v", n)
	}
}

func TestNav_ParentAndLinks(t *testing.T) {
	n := Nav{Location: "Club", Court: "C1", Side: "A", Hour: intPtr(9), Page: 1}

	if p := n.Parent(); p.Side != "" || p.Court != "C1" || p.Location != "Club" {
		t.Errorf("unexpected parent: %+v", p)
	}
	if p := n.Parent().Parent(); p.Court != "" || p.Location != "Club" {
		t.Errorf("unexpected grandparent: %+v", p)
	}
	link := n.ClipLink("clip.mp4")
	if link.Hour != nil || link.Page != 0 || link.Video != "clip.mp4" {
		t.Errorf("unexpected clip link: %+v", link)
	}
	if cleared := n.WithoutHour(); cleared.Hour != nil || cleared.Page != 0 {
		t.Errorf("unexpected cleared nav: %+v", cleared)
	}
	if n.Scope() != "side" || n.Parent().Scope() != "court" {
		t.Errorf("unexpected scopes %s %s", n.Scope(), n.Parent().Scope())
	}
}

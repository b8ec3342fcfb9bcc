// Package opposite finds the clip recorded by the other camera of a
// two-sided court at roughly the same instant.
package opposite

import (
	"context"
	"log/slog"
	"time"

	"github.com/puntazo/puntazo/internal/catalog"
	"golang.org/x/sync/singleflight"
)

// Window is the largest capture-time difference accepted as a match.
const Window = 15 * time.Second

// fetchTimeout bounds a shared opposite feed fetch, which outlives the
// caller that started it.
const fetchTimeout = 15 * time.Second

// FeedLoader fetches a side feed bypassing any cache.
type FeedLoader interface {
	LoadSideFeed(ctx context.Context, address string) ([]catalog.Entry, error)
}

// Ref points at the matching clip on the opposite side.
type Ref struct {
	Side  catalog.Side  `json:"side"`
	Entry catalog.Entry `json:"video"`
	Delta time.Duration `json:"-"`
}

type Correlator struct {
	feeds  FeedLoader
	window time.Duration
	group  singleflight.Group
}

func NewCorrelator(feeds FeedLoader) *Correlator {
	return &Correlator{feeds: feeds, window: Window}
}

// OppositeSide returns the other side of a court with exactly two sides.
// Courts with one side have nothing to compare with and courts with three
// or more are ambiguous.
func OppositeSide(court catalog.Court, currentSideID string) (catalog.Side, bool) {
	if len(court.Sides) != 2 {
		return catalog.Side{}, false
	}
	switch currentSideID {
	case court.Sides[0].ID:
		return court.Sides[1], true
	case court.Sides[1].ID:
		return court.Sides[0], true
	}
	return catalog.Side{}, false
}

// FindOpposite returns the best time-aligned clip on the opposite side, or
// nil when the court does not qualify, the entry has no decoded instant,
// or nothing falls inside the window. A fetch error is returned alongside
// a nil ref so callers can log it; it is never fatal to rendering.
func (c *Correlator) FindOpposite(ctx context.Context, entry catalog.Entry, court catalog.Court, currentSideID string) (*Ref, error) {
	if !entry.HasTimestamp() {
		return nil, nil
	}
	side, ok := OppositeSide(court, currentSideID)
	if !ok {
		return nil, nil
	}
	candidates, err := c.load(ctx, side)
	if err != nil {
		return nil, err
	}
	return c.best(entry, side, candidates), nil
}

// MatchPage correlates every entry of a page against one fetch of the
// opposite feed. Entries without a match are absent from the result.
func (c *Correlator) MatchPage(ctx context.Context, entries []catalog.Entry, court catalog.Court, currentSideID string) map[string]Ref {
	matches := make(map[string]Ref)
	side, ok := OppositeSide(court, currentSideID)
	if !ok || len(entries) == 0 {
		return matches
	}
	candidates, err := c.load(ctx, side)
	if err != nil {
		slog.Debug("opposite: feed unavailable", "side", side.ID, "error", err)
		return matches
	}
	for _, e := range entries {
		if !e.HasTimestamp() {
			continue
		}
		if ref := c.best(e, side, candidates); ref != nil {
			matches[e.Name] = *ref
		}
	}
	return matches
}

// load fetches the opposite feed. Concurrent callers asking for the same
// feed share one in-flight request; nothing is kept once it completes.
// The shared request does not follow any single caller's cancellation,
// but each caller stops waiting when its own context ends.
func (c *Correlator) load(ctx context.Context, side catalog.Side) ([]catalog.Entry, error) {
	ch := c.group.DoChan(side.FeedAddress, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		return c.feeds.LoadSideFeed(fetchCtx, side.FeedAddress)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]catalog.Entry), nil
	}
}

func (c *Correlator) best(entry catalog.Entry, side catalog.Side, candidates []catalog.Entry) *Ref {
	var found *Ref
	for _, cand := range candidates {
		if !cand.HasTimestamp() || cand.DayKey != entry.DayKey {
			continue
		}
		delta := cand.Captured.Sub(entry.Captured).Abs()
		if delta > c.window {
			continue
		}
		if found == nil || delta < found.Delta {
			found = &Ref{Side: side, Entry: cand, Delta: delta}
		}
	}
	return found
}

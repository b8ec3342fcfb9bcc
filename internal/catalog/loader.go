package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	ErrNetwork  = errors.New("catalog: network error")
	ErrParse    = errors.New("catalog: parse error")
	ErrNotFound = errors.New("catalog: not found")
)

// LocationsDocument is the configuration document listing every location.
const LocationsDocument = "config_locations.json"

type Loader struct {
	source   Source
	location *time.Location
}

// NewLoader creates a loader reading from source. Capture instants decoded
// from clip names are interpreted in tz (UTC when nil).
func NewLoader(source Source, tz *time.Location) *Loader {
	if tz == nil {
		tz = time.UTC
	}
	return &Loader{source: source, location: tz}
}

func (l *Loader) TimeZone() *time.Location {
	return l.location
}

func (l *Loader) LoadLocations(ctx context.Context) (*Tree, error) {
	data, err := l.source.Fetch(ctx, LocationsDocument)
	if err != nil {
		return nil, err
	}
	return parseTree(data)
}

type rawFeed struct {
	Videos []json.RawMessage `json:"videos"`
}

type rawFeedItem struct {
	Nombre   string          `json:"nombre"`
	Name     string          `json:"name"`
	URL      string          `json:"url"`
	Duration json.RawMessage `json:"duration"`
}

// LoadSideFeed fetches and normalizes a side feed. A missing feed is
// reported with ErrNotFound so the caller can render an empty state.
// Individual malformed items never fail the feed.
func (l *Loader) LoadSideFeed(ctx context.Context, address string) ([]Entry, error) {
	data, err := l.source.Fetch(ctx, address)
	if err != nil {
		return nil, err
	}
	return l.ParseFeed(data)
}

// ParseFeed normalizes a raw feed document.
func (l *Loader) ParseFeed(data []byte) ([]Entry, error) {
	var feed rawFeed
	if err := json.Unmarshal(data, &feed); err != nil {
		return nil, fmt.Errorf("%w: decode feed: %v", ErrParse, err)
	}

	entries := make([]Entry, 0, len(feed.Videos))
	for i, raw := range feed.Videos {
		var item rawFeedItem
		if err := json.Unmarshal(raw, &item); err != nil {
			slog.Warn("catalog: skipping malformed feed item", "index", i, "error", err)
			continue
		}
		name := firstNonEmpty(item.Nombre, item.Name)
		if name == "" {
			slog.Debug("catalog: skipping feed item without name", "index", i)
			continue
		}
		entries = append(entries, NormalizeEntry(name, item.URL, parseDuration(item.Duration), l.location))
	}
	return entries, nil
}

// parseDuration accepts numbers or numeric strings; anything else is
// treated as an unknown duration.
func parseDuration(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil && f > 0 {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		var parsed float64
		if _, err := fmt.Sscanf(s, "%g", &parsed); err == nil && parsed > 0 {
			return parsed
		}
	}
	return 0
}

// LoadDocument decodes an auxiliary JSON document into v.
func (l *Loader) LoadDocument(ctx context.Context, address string, v any) error {
	data, err := l.source.Fetch(ctx, address)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrParse, address, err)
	}
	return nil
}

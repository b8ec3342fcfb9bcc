package gallery

import (
	"net/url"
	"strconv"
)

// RetentionNotice accompanies shared clip links: clips are removed from the
// file host after eight hours.
const RetentionNotice = "Clips are deleted after 8 hours. Download the clip if you want to keep it."

// Nav is the addressable view state. It round-trips through query
// parameters so that back/forward navigation and shared links reproduce
// the same view.
type Nav struct {
	Location string
	Court    string
	Side     string
	Hour     *int
	Page     int
	Video    string
}

// ParseNav reads navigation state. Invalid hour and page values are ignored.
func ParseNav(q url.Values) Nav {
	n := Nav{
		Location: q.Get("loc"),
		Court:    q.Get("can"),
		Side:     q.Get("lado"),
		Video:    q.Get("video"),
	}
	if raw := q.Get("filtro"); raw != "" {
		if h, err := strconv.Atoi(raw); err == nil && h >= 0 && h <= 23 {
			n.Hour = &h
		}
	}
	if raw := q.Get("page"); raw != "" {
		if p, err := strconv.Atoi(raw); err == nil {
			n.Page = p
		}
	}
	return n
}

func (n Nav) Values() url.Values {
	q := url.Values{}
	if n.Location != "" {
		q.Set("loc", n.Location)
	}
	if n.Court != "" {
		q.Set("can", n.Court)
	}
	if n.Side != "" {
		q.Set("lado", n.Side)
	}
	if n.Hour != nil {
		q.Set("filtro", strconv.Itoa(*n.Hour))
	}
	if n.Page > 0 {
		q.Set("page", strconv.Itoa(n.Page))
	}
	if n.Video != "" {
		q.Set("video", n.Video)
	}
	return q
}

func (n Nav) Options() Options {
	return Options{Hour: n.Hour, Page: n.Page, Target: n.Video}
}

// WithHour selects an hour bucket and resets paging.
func (n Nav) WithHour(hour int) Nav {
	n.Hour = &hour
	n.Page = 0
	n.Video = ""
	return n
}

func (n Nav) WithoutHour() Nav {
	n.Hour = nil
	n.Page = 0
	n.Video = ""
	return n
}

func (n Nav) WithPage(page int) Nav {
	n.Page = page
	n.Video = ""
	return n
}

// ClipLink is the shareable deep link to a single clip of the side.
func (n Nav) ClipLink(name string) Nav {
	return Nav{Location: n.Location, Court: n.Court, Side: n.Side, Video: name}
}

// Parent is the view one navigation level up: side → court → location → root.
func (n Nav) Parent() Nav {
	switch {
	case n.Side != "":
		return Nav{Location: n.Location, Court: n.Court}
	case n.Court != "":
		return Nav{Location: n.Location}
	default:
		return Nav{}
	}
}

// Scope reports which level the state addresses.
func (n Nav) Scope() string {
	switch {
	case n.Side != "":
		return "side"
	case n.Court != "":
		return "court"
	case n.Location != "":
		return "location"
	default:
		return "root"
	}
}

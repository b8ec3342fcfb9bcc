package geoip

import (
	"log/slog"
	"net"

	"github.com/oschwald/maxminddb-golang"
)

// Resolver maps client addresses to a coarse place for gate audit events.
// A Resolver without a database resolves everything to the zero Place.
type Resolver struct {
	db *maxminddb.Reader
}

type record struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
}

// Place is the resolved origin of a request.
type Place struct {
	Country string
	City    string
}

// Fields renders the non-empty parts of p as event attributes.
func (p Place) Fields() map[string]any {
	out := map[string]any{}
	if p.Country != "" {
		out["country"] = p.Country
	}
	if p.City != "" {
		out["city"] = p.City
	}
	return out
}

// New opens the database at dbPath. A missing path or unreadable file
// disables lookups instead of failing startup.
func New(dbPath string) (*Resolver, error) {
	if dbPath == "" {
		return &Resolver{}, nil
	}
	db, err := maxminddb.Open(dbPath)
	if err != nil {
		slog.Warn("geoip: failed to open database, lookups disabled", "path", dbPath, "error", err)
		return &Resolver{}, nil
	}
	slog.Info("geoip: loaded database", "path", dbPath)
	return &Resolver{db: db}, nil
}

func (r *Resolver) Locate(ipStr string) Place {
	if r == nil || r.db == nil || ipStr == "" {
		return Place{}
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return Place{}
	}
	var rec record
	if err := r.db.Lookup(ip, &rec); err != nil {
		slog.Debug("geoip: lookup failed", "ip", ipStr, "error", err)
		return Place{}
	}
	return Place{Country: rec.Country.ISOCode, City: rec.City.Names["en"]}
}

func (r *Resolver) Close() error {
	if r != nil && r.db != nil {
		return r.db.Close()
	}
	return nil
}

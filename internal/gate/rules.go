package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// RulesDocument is the address of the gate rule document relative to the
// data root.
const RulesDocument = "gate_rules.json"

// DefaultRemember is how long a granted authorization lasts when the rule
// does not say.
const DefaultRemember = 24 * time.Hour

// Rule protects a court, or a single side when Side is set.
type Rule struct {
	Location      string
	Court         string
	Side          string
	Enabled       bool
	Digest        string
	RememberHours float64
}

// Remember returns the authorization lifetime granted by r.
func (r Rule) Remember() time.Duration {
	if r.RememberHours <= 0 {
		return DefaultRemember
	}
	return time.Duration(r.RememberHours * float64(time.Hour))
}

type Rules []Rule

// Match finds the rule covering scope. A side-specific rule takes
// precedence over a court-wide one.
func (rs Rules) Match(scope Scope) (Rule, bool) {
	var courtWide *Rule
	for i := range rs {
		r := rs[i]
		if r.Court != scope.Court {
			continue
		}
		if r.Location != "" && scope.Location != "" && r.Location != scope.Location {
			continue
		}
		if r.Side == scope.Side {
			return r, true
		}
		if r.Side == "" && courtWide == nil {
			courtWide = &rs[i]
		}
	}
	if courtWide != nil {
		return *courtWide, true
	}
	return Rule{}, false
}

// Active returns the enabled rule covering scope, if any.
func (rs Rules) Active(scope Scope) (Rule, bool) {
	r, ok := rs.Match(scope)
	if !ok || !r.Enabled {
		return Rule{}, false
	}
	return r, true
}

type rawRule struct {
	Location      string   `json:"loc"`
	Court         string   `json:"can"`
	Side          string   `json:"lado"`
	Enabled       *bool    `json:"enabled"`
	Digest        string   `json:"passphraseDigest"`
	Hash          string   `json:"hash"`
	RememberHours *float64 `json:"remember_hours"`
}

type rawRules struct {
	Canchas []rawRule `json:"canchas"`
}

// ParseRules decodes a rule document. Rules without a court are dropped;
// a rule without an explicit enabled flag is enabled when it has a digest.
func ParseRules(data []byte) (Rules, error) {
	var raw rawRules
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode gate rules: %w", err)
	}
	rules := make(Rules, 0, len(raw.Canchas))
	for _, rr := range raw.Canchas {
		if rr.Court == "" {
			continue
		}
		digest := rr.Digest
		if digest == "" {
			digest = rr.Hash
		}
		r := Rule{
			Location: rr.Location,
			Court:    rr.Court,
			Side:     rr.Side,
			Enabled:  digest != "",
			Digest:   digest,
		}
		if rr.Enabled != nil {
			r.Enabled = *rr.Enabled && digest != ""
		}
		if rr.RememberHours != nil {
			r.RememberHours = *rr.RememberHours
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// DocumentLoader fetches and decodes a JSON document by address.
type DocumentLoader interface {
	LoadDocument(ctx context.Context, address string, v any) error
}

// LoadRules fetches the rule document. Any failure yields no rules so an
// unreachable document never locks users out.
func LoadRules(ctx context.Context, loader DocumentLoader) Rules {
	if loader == nil {
		return nil
	}
	var raw json.RawMessage
	if err := loader.LoadDocument(ctx, RulesDocument, &raw); err != nil {
		slog.Warn("gate: rules unavailable, gating disabled", "error", err)
		return nil
	}
	rules, err := ParseRules(raw)
	if err != nil {
		slog.Warn("gate: rules unreadable, gating disabled", "error", err)
		return nil
	}
	return rules
}

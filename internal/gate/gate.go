// Package gate implements the optional passphrase check that unlocks a
// court or side, caching a successful check for a limited time.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// MaxAttempts is how many passphrases a user may try per gated navigation.
const MaxAttempts = 3

var (
	ErrAuthFailure = errors.New("gate: passphrase rejected")
	// ErrDismissed is returned by a Prompter when the user gives up.
	ErrDismissed = errors.New("gate: prompt dismissed")
)

// Scope identifies a side inside a court inside a location.
type Scope struct {
	Location string
	Court    string
	Side     string
}

// Key is the record key of a scope.
func Key(s Scope) string {
	return "gate:" + s.Court + ":" + s.Side
}

// Prompter asks the user for a passphrase. attempt starts at 1.
type Prompter interface {
	Prompt(ctx context.Context, scope Scope, attempt int) (string, error)
}

type PrompterFunc func(ctx context.Context, scope Scope, attempt int) (string, error)

func (f PrompterFunc) Prompt(ctx context.Context, scope Scope, attempt int) (string, error) {
	return f(ctx, scope, attempt)
}

type Gate struct {
	store  Store
	loader DocumentLoader
	now    func() time.Time
}

// New creates a gate. loader provides the rule document for RequireAccess;
// store may be nil when records are kept elsewhere, such as pass cookies.
func New(store Store, loader DocumentLoader) *Gate {
	return &Gate{store: store, loader: loader, now: time.Now}
}

// WithClock replaces the time source.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Rules loads the rule document, failing open.
func (g *Gate) Rules(ctx context.Context) Rules {
	return LoadRules(ctx, g.loader)
}

// RequireAccess loads the rules and reports whether the user may proceed
// into scope, prompting when needed.
func (g *Gate) RequireAccess(ctx context.Context, scope Scope, prompter Prompter) (bool, error) {
	return g.RequireAccessWith(ctx, g.Rules(ctx), scope, prompter)
}

// RequireAccessWith is RequireAccess with already loaded rules.
func (g *Gate) RequireAccessWith(ctx context.Context, rules Rules, scope Scope, prompter Prompter) (bool, error) {
	rule, ok := rules.Active(scope)
	if !ok {
		return true, nil
	}
	if g.cached(ctx, scope) {
		return true, nil
	}

	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		passphrase, err := prompter.Prompt(ctx, scope, attempt)
		if errors.Is(err, ErrDismissed) {
			slog.Info("gate: prompt dismissed", "key", Key(scope), "attempt", attempt)
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("prompt: %w", err)
		}
		if _, err := g.grant(ctx, rule, scope, passphrase); err == nil {
			return true, nil
		}
		slog.Info("gate: wrong passphrase", "key", Key(scope), "attempt", attempt)
	}
	return false, nil
}

// Verify checks one passphrase against the active rule of scope. On a match
// the record is stored and returned; otherwise ErrAuthFailure.
func (g *Gate) Verify(ctx context.Context, rules Rules, scope Scope, passphrase string) (Record, error) {
	rule, ok := rules.Active(scope)
	if !ok {
		return Record{Authorized: true, Expiry: g.now().Add(DefaultRemember).UnixMilli()}, nil
	}
	return g.grant(ctx, rule, scope, passphrase)
}

// Allowed reports whether scope is open without prompting.
func (g *Gate) Allowed(ctx context.Context, rules Rules, scope Scope) bool {
	if _, ok := rules.Active(scope); !ok {
		return true
	}
	return g.cached(ctx, scope)
}

func (g *Gate) grant(ctx context.Context, rule Rule, scope Scope, passphrase string) (Record, error) {
	if !Matches(rule.Digest, passphrase) {
		return Record{}, ErrAuthFailure
	}
	rec := Record{Authorized: true, Expiry: g.now().Add(rule.Remember()).UnixMilli()}
	if g.store != nil {
		if err := g.store.Put(ctx, Key(scope), rec); err != nil {
			// Access is still granted for this navigation.
			slog.Error("gate: failed to store authorization", "key", Key(scope), "error", err)
		}
	}
	slog.Info("gate: access granted", "key", Key(scope), "expiry", time.UnixMilli(rec.Expiry).UTC())
	return rec, nil
}

func (g *Gate) cached(ctx context.Context, scope Scope) bool {
	if g.store == nil {
		return false
	}
	rec, ok, err := g.store.Get(ctx, Key(scope))
	if err != nil {
		slog.Warn("gate: failed to read authorization", "key", Key(scope), "error", err)
		return false
	}
	return ok && rec.Valid(g.now())
}

// Package session composes the catalog, gate, correlation, playback and
// transfer components into the view-level operations of the gallery.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/puntazo/puntazo/internal/catalog"
	"github.com/puntazo/puntazo/internal/gallery"
	"github.com/puntazo/puntazo/internal/gate"
	"github.com/puntazo/puntazo/internal/opposite"
	"github.com/puntazo/puntazo/internal/playback"
	"github.com/puntazo/puntazo/internal/transfer"
	"golang.org/x/sync/errgroup"
)

// GatedError is returned when a side needs a passphrase the caller could
// not provide. Redirect is the view one level up.
type GatedError struct {
	Scope    gate.Scope
	Redirect gallery.Nav
}

func (e *GatedError) Error() string {
	return fmt.Sprintf("access to %s requires a passphrase", gate.Key(e.Scope))
}

func (e *GatedError) Unwrap() error { return gate.ErrAuthFailure }

// Authorizer decides whether the caller may open a gated scope. It is
// consulted only when an enabled rule covers the scope.
type Authorizer interface {
	Authorize(ctx context.Context, rules gate.Rules, scope gate.Scope) (bool, error)
}

type AuthorizerFunc func(ctx context.Context, rules gate.Rules, scope gate.Scope) (bool, error)

func (f AuthorizerFunc) Authorize(ctx context.Context, rules gate.Rules, scope gate.Scope) (bool, error) {
	return f(ctx, rules, scope)
}

// PromptAuthorizer authorizes through the gate's cached records and
// passphrase prompts.
func PromptAuthorizer(g *gate.Gate, p gate.Prompter) Authorizer {
	return AuthorizerFunc(func(ctx context.Context, rules gate.Rules, scope gate.Scope) (bool, error) {
		return g.RequireAccessWith(ctx, rules, scope, p)
	})
}

// SideView is everything needed to render one page of a side.
type SideView struct {
	Nav            gallery.Nav
	Location       catalog.Location
	Court          catalog.Court
	Side           catalog.Side
	Page           gallery.Page
	Hours          []gallery.HourBucket
	ShowPagination bool
	Adjacent       *catalog.Side
	Opposite       map[string]opposite.Ref
	Empty          bool
}

type Config struct {
	Loader    *catalog.Loader
	Gate      *gate.Gate
	Transfers *transfer.Manager
	// Arbitrator is shared with the transfer manager's pauser when set.
	Arbitrator *playback.Arbitrator
}

type Controller struct {
	loader     *catalog.Loader
	gate       *gate.Gate
	correlator *opposite.Correlator
	arbitrator *playback.Arbitrator
	transfers  *transfer.Manager
}

func New(cfg Config) *Controller {
	arb := cfg.Arbitrator
	if arb == nil {
		arb = playback.NewArbitrator()
	}
	transfers := cfg.Transfers
	if transfers == nil {
		transfers = transfer.NewManager(transfer.Config{Pauser: arb, Policy: transfer.DefaultPolicy()})
	}
	return &Controller{
		loader:     cfg.Loader,
		gate:       cfg.Gate,
		correlator: opposite.NewCorrelator(cfg.Loader),
		arbitrator: arb,
		transfers:  transfers,
	}
}

func (c *Controller) Arbitrator() *playback.Arbitrator { return c.arbitrator }

func (c *Controller) Gate() *gate.Gate { return c.gate }

func (c *Controller) Locations(ctx context.Context) ([]catalog.Location, error) {
	tree, err := c.loader.LoadLocations(ctx)
	if err != nil {
		return nil, err
	}
	return tree.Locations, nil
}

func (c *Controller) Courts(ctx context.Context, loc string) (catalog.Location, error) {
	tree, err := c.loader.LoadLocations(ctx)
	if err != nil {
		return catalog.Location{}, err
	}
	l, ok := tree.Location(loc)
	if !ok {
		return catalog.Location{}, fmt.Errorf("%w: location %q", catalog.ErrNotFound, loc)
	}
	return l, nil
}

func (c *Controller) Sides(ctx context.Context, loc, can string) (catalog.Court, error) {
	tree, err := c.loader.LoadLocations(ctx)
	if err != nil {
		return catalog.Court{}, err
	}
	court, ok := tree.Court(loc, can)
	if !ok {
		return catalog.Court{}, fmt.Errorf("%w: court %q in %q", catalog.ErrNotFound, can, loc)
	}
	return court, nil
}

// resolved is a side scope after the catalog and gate rules are loaded.
type resolved struct {
	location catalog.Location
	court    catalog.Court
	side     catalog.Side
	rules    gate.Rules
}

// resolve loads the catalog and the gate rules concurrently, finds the
// side and enforces the gate before any feed is fetched.
func (c *Controller) resolve(ctx context.Context, nav gallery.Nav, auth Authorizer) (resolved, error) {
	var tree *catalog.Tree
	var rules gate.Rules

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := c.loader.LoadLocations(gctx)
		tree = t
		return err
	})
	if c.gate != nil {
		g.Go(func() error {
			rules = c.gate.Rules(gctx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return resolved{}, err
	}

	loc, ok := tree.Location(nav.Location)
	if !ok {
		return resolved{}, fmt.Errorf("%w: location %q", catalog.ErrNotFound, nav.Location)
	}
	court, ok := loc.Court(nav.Court)
	if !ok {
		return resolved{}, fmt.Errorf("%w: court %q", catalog.ErrNotFound, nav.Court)
	}
	side, ok := court.Side(nav.Side)
	if !ok {
		return resolved{}, fmt.Errorf("%w: side %q", catalog.ErrNotFound, nav.Side)
	}

	scope := gate.Scope{Location: loc.ID, Court: court.ID, Side: side.ID}
	if _, gated := rules.Active(scope); gated {
		allowed := false
		if auth != nil {
			var err error
			allowed, err = auth.Authorize(ctx, rules, scope)
			if err != nil {
				return resolved{}, fmt.Errorf("authorize %s: %w", gate.Key(scope), err)
			}
		}
		if !allowed {
			return resolved{}, &GatedError{Scope: scope, Redirect: nav.Parent()}
		}
	}
	return resolved{location: loc, court: court, side: side, rules: rules}, nil
}

// OpenSide builds the view of a side page.
func (c *Controller) OpenSide(ctx context.Context, nav gallery.Nav, auth Authorizer) (*SideView, error) {
	r, err := c.resolve(ctx, nav, auth)
	if err != nil {
		return nil, err
	}

	view := &SideView{Nav: nav, Location: r.location, Court: r.court, Side: r.side}
	if adj, ok := opposite.OppositeSide(r.court, r.side.ID); ok {
		view.Adjacent = &adj
	}

	entries, err := c.loader.LoadSideFeed(ctx, r.side.FeedAddress)
	if errors.Is(err, catalog.ErrNotFound) {
		slog.Info("session: side feed missing", "side", r.side.ID, "feed", r.side.FeedAddress)
		entries, err = nil, nil
	}
	if err != nil {
		return nil, err
	}

	view.Page = gallery.Select(entries, nav.Options())
	view.Hours = gallery.HourBuckets(entries)
	view.ShowPagination = gallery.ShowPagination(view.Page.TotalItems, view.Adjacent != nil)
	view.Empty = view.Page.TotalItems == 0
	view.Opposite = c.correlator.MatchPage(ctx, view.Page.Items, r.court, r.side.ID)
	return view, nil
}

// Clip finds one clip of a side by name.
func (c *Controller) Clip(ctx context.Context, nav gallery.Nav, name string, auth Authorizer) (catalog.Entry, error) {
	r, err := c.resolve(ctx, nav, auth)
	if err != nil {
		return catalog.Entry{}, err
	}
	return c.findClip(ctx, r.side, name)
}

// Opposite returns the counterpart of a clip on the other side of the
// court, or nil when there is none. The clip must exist on the current
// side. An unreachable opposite feed counts as no counterpart.
func (c *Controller) Opposite(ctx context.Context, nav gallery.Nav, name string, auth Authorizer) (*opposite.Ref, error) {
	r, err := c.resolve(ctx, nav, auth)
	if err != nil {
		return nil, err
	}
	entry, err := c.findClip(ctx, r.side, name)
	if err != nil {
		return nil, err
	}
	ref, err := c.correlator.FindOpposite(ctx, entry, r.court, r.side.ID)
	if err != nil {
		slog.Debug("session: opposite lookup failed", "clip", name, "error", err)
		return nil, nil
	}
	return ref, nil
}

func (c *Controller) findClip(ctx context.Context, side catalog.Side, name string) (catalog.Entry, error) {
	entries, err := c.loader.LoadSideFeed(ctx, side.FeedAddress)
	if err != nil {
		return catalog.Entry{}, err
	}
	for _, e := range entries {
		if e.Name == name {
			return e, nil
		}
	}
	return catalog.Entry{}, fmt.Errorf("%w: clip %q", catalog.ErrNotFound, name)
}

// Transfer starts the transfer session of a clip control.
func (c *Controller) Transfer(entry catalog.Entry) *transfer.Session {
	return c.transfers.Begin(entry)
}

// Package playback decides which of the many mounted clip elements may
// play: at most one muted preview autoplays (the most visible one) and
// starting any full clip pauses everything else.
package playback

import (
	"log/slog"
	"sync"
)

// ID identifies a preview/real pair on the current page.
type ID string

// Media is one rendered media element. Play and Seek failures are
// tolerated by the arbitrator.
type Media interface {
	Play() error
	Pause()
	Seek(seconds float64) error
	Playing() bool
	SetVisible(visible bool)
}

type pair struct {
	preview  Media
	real     Media
	window   LoopWindow
	ratio    float64
	promoted bool
}

// Arbitrator is the session-scoped owner of the only shared playback
// state: the active preview and the active real element. Every public
// method recomputes and applies its decision under one lock.
type Arbitrator struct {
	mu            sync.Mutex
	pairs         map[ID]*pair
	activePreview ID
	activeReal    ID
}

func NewArbitrator() *Arbitrator {
	return &Arbitrator{pairs: make(map[ID]*pair)}
}

// Register mounts a preview/real pair. duration is the clip length in
// seconds (0 when unknown) and positions the preview loop.
func (a *Arbitrator) Register(id ID, preview, real Media, duration float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pairs[id] = &pair{preview: preview, real: real, window: Window(duration)}
	real.SetVisible(false)
	preview.SetVisible(true)
}

// Unregister drops a pair, e.g. when the page re-renders.
func (a *Arbitrator) Unregister(id ID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.pairs[id]
	if !ok {
		return
	}
	p.preview.Pause()
	p.real.Pause()
	delete(a.pairs, id)
	if a.activePreview == id {
		a.activePreview = ""
	}
	if a.activeReal == id {
		a.activeReal = ""
	}
}

// Observe records a new visibility ratio for a preview and re-arbitrates.
// The winner is recomputed from every mounted preview, so the outcome does
// not depend on the order in which observer callbacks arrive.
func (a *Arbitrator) Observe(id ID, ratio float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.pairs[id]
	if !ok {
		return
	}
	p.ratio = ratio
	a.arbitrate()
}

func (a *Arbitrator) arbitrate() {
	ratios := make(map[ID]float64, len(a.pairs))
	for id, p := range a.pairs {
		if !p.promoted {
			ratios[id] = p.ratio
		}
	}
	winner, ok := ResolveWinner(ratios)

	for id, p := range a.pairs {
		if p.promoted || (ok && id == winner) {
			continue
		}
		p.preview.Pause()
		if a.activePreview == id {
			a.activePreview = ""
		}
	}
	if !ok {
		return
	}

	w := a.pairs[winner]
	if w.real.Playing() || a.activePreview == winner {
		return
	}
	if prev, ok := a.pairs[a.activePreview]; ok {
		prev.preview.Pause()
	}
	a.activePreview = winner
	if err := w.preview.Seek(w.window.Start); err != nil {
		slog.Debug("playback: preview seek failed", "id", winner, "error", err)
	}
	if err := w.preview.Play(); err != nil {
		slog.Debug("playback: preview play failed", "id", winner, "error", err)
	}
}

// Tap promotes a preview to its real element. There is no way back.
func (a *Arbitrator) Tap(id ID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.pairs[id]
	if !ok {
		return
	}
	p.promoted = true
	p.preview.Pause()
	p.preview.SetVisible(false)
	p.real.SetVisible(true)
	if a.activePreview == id {
		a.activePreview = ""
	}
	if err := p.real.Seek(0); err != nil {
		slog.Debug("playback: real seek failed", "id", id, "error", err)
	}
	a.exclusive(id)
	if err := p.real.Play(); err != nil {
		slog.Debug("playback: real play failed", "id", id, "error", err)
	}
}

// RealStarted must be called whenever a real element starts playing, also
// from native controls. Every other element is paused.
func (a *Arbitrator) RealStarted(id ID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.pairs[id]; !ok {
		return
	}
	a.exclusive(id)
}

func (a *Arbitrator) exclusive(id ID) {
	for other, p := range a.pairs {
		if other == id {
			p.preview.Pause()
			continue
		}
		p.preview.Pause()
		p.real.Pause()
	}
	a.activePreview = ""
	a.activeReal = id
}

// TimeUpdate keeps a playing preview inside its loop window.
func (a *Arbitrator) TimeUpdate(id ID, position float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.pairs[id]
	if !ok || p.promoted {
		return
	}
	if target, loop := p.window.Next(position); loop {
		if err := p.preview.Seek(target); err != nil {
			slog.Debug("playback: loop seek failed", "id", id, "error", err)
		}
	}
}

// PauseAll stops every element, e.g. while a transfer takes the bandwidth.
func (a *Arbitrator) PauseAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range a.pairs {
		p.preview.Pause()
		p.real.Pause()
	}
	a.activePreview = ""
	a.activeReal = ""
}

func (a *Arbitrator) ActivePreview() (ID, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.activePreview, a.activePreview != ""
}

func (a *Arbitrator) ActiveReal() (ID, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.activeReal, a.activeReal != ""
}

// ResolveWinner returns the preview with the largest positive visibility
// ratio. Equal ratios resolve to the smallest id so the result depends only
// on the map contents.
func ResolveWinner(ratios map[ID]float64) (ID, bool) {
	var winner ID
	best := 0.0
	for id, r := range ratios {
		if r <= 0 {
			continue
		}
		if r > best || (r == best && id < winner) {
			winner, best = id, r
		}
	}
	return winner, best > 0
}

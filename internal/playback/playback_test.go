package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeMedia struct {
	mu      sync.Mutex
	playing bool
	visible bool
	seeks   []float64
	plays   int
	pauses  int
	playErr error
}

func (m *fakeMedia) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plays++
	if m.playErr != nil {
		return m.playErr
	}
	m.playing = true
	return nil
}

func (m *fakeMedia) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauses++
	m.playing = false
}

func (m *fakeMedia) Seek(seconds float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seeks = append(m.seeks, seconds)
	return nil
}

func (m *fakeMedia) Playing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

func (m *fakeMedia) SetVisible(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visible = v
}

type mounted struct {
	preview *fakeMedia
	real    *fakeMedia
}

func mount(a *Arbitrator, ids ...ID) map[ID]mounted {
	out := make(map[ID]mounted)
	for _, id := range ids {
		m := mounted{preview: &fakeMedia{}, real: &fakeMedia{}}
		a.Register(id, m.preview, m.real, 60)
		out[id] = m
	}
	return out
}

func TestResolveWinner_PicksHighestRatio(t *testing.T) {
	winner, ok := ResolveWinner(map[ID]float64{"a": 0.2, "b": 0.9, "c": 0.5})
	if !ok || winner != "b" {
		t.Errorf("expected b, got %q (%v)", winner, ok)
	}
}

func TestResolveWinner_NoPositiveRatio(t *testing.T) {
	if _, ok := ResolveWinner(map[ID]float64{"a": 0, "b": 0}); ok {
		t.Error("expected no winner")
	}
	if _, ok := ResolveWinner(nil); ok {
		t.Error("expected no winner for empty map")
	}
}

func TestResolveWinner_TiesAreOrderIndependent(t *testing.T) {
	for i := 0; i < 50; i++ {
		winner, _ := ResolveWinner(map[ID]float64{"c": 0.7, "a": 0.7, "b": 0.7})
		if winner != "a" {
			t.Fatalf("expected a, got %q", winner)
		}
	}
}

func TestArbitrator_OnlyMostVisiblePreviewPlays(t *testing.T) {
	a := NewArbitrator()
	m := mount(a, "p1", "p2", "p3")

	a.Observe("p1", 0.2)
	a.Observe("p2", 0.9)
	a.Observe("p3", 0.5)

	if active, ok := a.ActivePreview(); !ok || active != "p2" {
		t.Fatalf("expected p2 active, got %q", active)
	}
	if !m["p2"].preview.Playing() || m["p1"].preview.Playing() || m["p3"].preview.Playing() {
		t.Error("expected only p2 playing")
	}

	a.Observe("p1", 0.9)
	a.Observe("p2", 0.2)

	if active, _ := a.ActivePreview(); active != "p1" {
		t.Fatalf("expected p1 active after swap, got %q", active)
	}
	if m["p2"].preview.Playing() {
		t.Error("expected previous active preview to be paused")
	}
	if !m["p1"].preview.Playing() {
		t.Error("expected p1 playing")
	}
}

func TestArbitrator_StartsFromLoopStart(t *testing.T) {
	a := NewArbitrator()
	m := mount(a, "p1")

	a.Observe("p1", 1)

	seeks := m["p1"].preview.seeks
	if len(seeks) != 1 || seeks[0] != 45 {
		t.Errorf("expected seek to 45s for a 60s clip, got %v", seeks)
	}

	// Further updates of the already active preview do not restart it.
	a.Observe("p1", 0.8)
	if len(m["p1"].preview.seeks) != 1 {
		t.Errorf("expected no restart, got seeks %v", m["p1"].preview.seeks)
	}
}

func TestArbitrator_ZeroIntersectionPauses(t *testing.T) {
	a := NewArbitrator()
	m := mount(a, "p1")

	a.Observe("p1", 0.6)
	a.Observe("p1", 0)

	if m["p1"].preview.Playing() {
		t.Error("expected preview paused when out of view")
	}
	if _, ok := a.ActivePreview(); ok {
		t.Error("expected no active preview")
	}
}

func TestArbitrator_TapPromotesRealElement(t *testing.T) {
	a := NewArbitrator()
	m := mount(a, "p1", "p2")
	a.Observe("p1", 0.9)

	a.Tap("p1")

	p1 := m["p1"]
	if p1.preview.visible || !p1.real.visible {
		t.Error("expected preview hidden and real element shown")
	}
	if !p1.real.Playing() || p1.preview.Playing() {
		t.Error("expected real playing and preview paused")
	}
	if len(p1.real.seeks) != 1 || p1.real.seeks[0] != 0 {
		t.Errorf("expected real element seeked to 0, got %v", p1.real.seeks)
	}
	if id, ok := a.ActiveReal(); !ok || id != "p1" {
		t.Errorf("expected p1 active real, got %q", id)
	}

	// A promoted pair never returns to preview mode.
	a.Observe("p1", 1)
	if p1.preview.Playing() {
		t.Error("expected promoted preview to stay paused")
	}
}

func TestArbitrator_PreviewDoesNotStartWhileRealPlays(t *testing.T) {
	a := NewArbitrator()
	m := mount(a, "p1")
	_ = m["p1"].real.Play()

	a.Observe("p1", 1)

	if m["p1"].preview.Playing() {
		t.Error("expected preview to stay paused while its real element plays")
	}
}

func TestArbitrator_RealElementsAreMutuallyExclusive(t *testing.T) {
	a := NewArbitrator()
	m := mount(a, "p1", "p2", "p3")
	a.Tap("p1")

	_ = m["p2"].real.Play()
	a.RealStarted("p2")

	if m["p1"].real.Playing() {
		t.Error("expected p1 real paused when p2 starts")
	}
	if !m["p2"].real.Playing() {
		t.Error("expected p2 real to keep playing")
	}
	if id, _ := a.ActiveReal(); id != "p2" {
		t.Errorf("expected p2 active real, got %q", id)
	}
	for _, id := range []ID{"p1", "p2", "p3"} {
		if m[id].preview.Playing() {
			t.Errorf("expected preview %s paused", id)
		}
	}
}

func TestArbitrator_PlayFailuresAreSwallowed(t *testing.T) {
	a := NewArbitrator()
	preview := &fakeMedia{playErr: errors.New("autoplay blocked")}
	a.Register("p1", preview, &fakeMedia{}, 0)
	m := mount(a, "p2")

	a.Observe("p1", 0.9)
	a.Observe("p2", 0.4)

	if id, _ := a.ActivePreview(); id != "p1" {
		t.Errorf("expected p1 to remain the active preview, got %q", id)
	}
	if m["p2"].preview.Playing() {
		t.Error("expected p2 paused")
	}
}

func TestArbitrator_TimeUpdateLoopsPreview(t *testing.T) {
	a := NewArbitrator()
	m := mount(a, "p1")

	a.TimeUpdate("p1", 47)
	if len(m["p1"].preview.seeks) != 0 {
		t.Errorf("expected no seek inside the window, got %v", m["p1"].preview.seeks)
	}
	a.TimeUpdate("p1", 50)
	if seeks := m["p1"].preview.seeks; len(seeks) != 1 || seeks[0] != 45 {
		t.Errorf("expected seek back to 45, got %v", seeks)
	}
}

func TestArbitrator_PauseAllAndUnregister(t *testing.T) {
	a := NewArbitrator()
	m := mount(a, "p1", "p2")
	a.Observe("p1", 1)
	a.Tap("p2")

	a.PauseAll()
	for id, mm := range m {
		if mm.preview.Playing() || mm.real.Playing() {
			t.Errorf("expected %s fully paused", id)
		}
	}

	a.Unregister("p1")
	a.Observe("p1", 1)
	if _, ok := a.ActivePreview(); ok {
		t.Error("expected unregistered preview to be ignored")
	}
}

func TestWindow(t *testing.T) {
	cases := []struct {
		duration float64
		start    float64
	}{
		{duration: 0, start: 0},
		{duration: 10, start: 0},
		{duration: 15, start: 0},
		{duration: 60, start: 45},
	}
	for _, c := range cases {
		w := Window(c.duration)
		if w.Start != c.start || w.Length != LoopLength {
			t.Errorf("Window(%v) = %+v, want start %v", c.duration, w, c.start)
		}
	}
}

func TestQueue_LoadsOneAtATimeInOrder(t *testing.T) {
	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	var order []ID

	load := func(ctx context.Context, id ID) error {
		mu.Lock()
		inFlight++
		maxInFlight = max(maxInFlight, inFlight)
		order = append(order, id)
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		if id == "p2" {
			return errors.New("metadata failed")
		}
		return nil
	}

	q := NewQueue(context.Background(), load, 10)
	for _, id := range []ID{"p1", "p2", "p3", "p4"} {
		if !q.Enqueue(context.Background(), id) {
			t.Fatalf("enqueue %s failed", id)
		}
	}
	q.Close()

	if maxInFlight != 1 {
		t.Errorf("expected at most one load in flight, got %d", maxInFlight)
	}
	want := []ID{"p1", "p2", "p3", "p4"}
	if len(order) != len(want) {
		t.Fatalf("expected %d loads, got %v", len(want), order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], order[i])
		}
	}
	if q.Enqueue(context.Background(), "p5") {
		t.Error("expected enqueue after close to fail")
	}
}

func TestQueue_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{}, 1)
	load := func(ctx context.Context, id ID) error {
		started <- struct{}{}
		<-ctx.Done()
		return ctx.Err()
	}

	q := NewQueue(ctx, load, 0)
	if !q.Enqueue(context.Background(), "p1") {
		t.Fatal("expected first enqueue to succeed")
	}
	<-started
	cancel()
	q.Close()
}

// Package transfer downloads a clip with progress feedback and hands the
// payload to a share target, falling back to a local save or a direct
// link so that a transfer action never ends without a way to get the clip.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puntazo/puntazo/internal/catalog"
)

var (
	ErrAborted          = errors.New("transfer: aborted")
	ErrShareUnavailable = errors.New("transfer: share unavailable")
	ErrBusy             = errors.New("transfer: session busy")
	ErrNothingHeld      = errors.New("transfer: no payload ready to share")
)

type State int

const (
	Idle State = iota
	Downloading
	ReadyToShare
	Error
	Canceled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Downloading:
		return "downloading"
	case ReadyToShare:
		return "ready-to-share"
	case Error:
		return "error"
	case Canceled:
		return "canceled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// File is a downloaded clip ready to be shared or saved.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Sharer hands a file to a share target. It returns ErrShareUnavailable
// when the platform has no share capability or refuses file payloads.
type Sharer interface {
	Share(ctx context.Context, f File) (string, error)
}

// Saver stores a file locally and returns where it went.
type Saver interface {
	Save(ctx context.Context, f File) (string, error)
}

// Linker produces a direct, non-streamed download address for a clip.
type Linker interface {
	DirectLink(ctx context.Context, e catalog.Entry) (string, error)
}

// Pauser stops all media playback while a transfer runs.
type Pauser interface {
	PauseAll()
}

type Outcome string

const (
	OutcomeShared     Outcome = "shared"
	OutcomeSaved      Outcome = "saved"
	OutcomeDirectLink Outcome = "direct-link"
	OutcomePending    Outcome = "ready-to-share"
)

// Result reports how a transfer action ended. Location is the share link,
// the saved path or the direct link depending on Outcome.
type Result struct {
	Outcome  Outcome
	Location string
}

type Step string

const (
	StepShare Step = "share"
	StepSave  Step = "save"
	StepLink  Step = "link"
)

// Policy configures the fallback chain.
type Policy struct {
	// AutoShare attempts the share target as soon as the download completes.
	AutoShare bool
	// Order is tried by Session.Share, first success wins.
	Order []Step
	// ErrorDisplay is how long the error state lasts before reverting to idle.
	ErrorDisplay time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		AutoShare:    true,
		Order:        []Step{StepShare, StepSave, StepLink},
		ErrorDisplay: 2500 * time.Millisecond,
	}
}

type Config struct {
	Client   *http.Client
	Sharer   Sharer
	Saver    Saver
	Linker   Linker
	Pauser   Pauser
	Policy   Policy
	OnChange func(id uuid.UUID, state State)
}

type Manager struct {
	client   *http.Client
	sharer   Sharer
	saver    Saver
	linker   Linker
	pauser   Pauser
	policy   Policy
	onChange func(id uuid.UUID, state State)
}

func NewManager(cfg Config) *Manager {
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	if cfg.Policy.Order == nil {
		cfg.Policy.Order = DefaultPolicy().Order
	}
	if cfg.Policy.ErrorDisplay <= 0 {
		cfg.Policy.ErrorDisplay = DefaultPolicy().ErrorDisplay
	}
	return &Manager{
		client:   cfg.Client,
		sharer:   cfg.Sharer,
		saver:    cfg.Saver,
		linker:   cfg.Linker,
		pauser:   cfg.Pauser,
		policy:   cfg.Policy,
		onChange: cfg.OnChange,
	}
}

// Begin creates the idle transfer session of one clip control.
func (m *Manager) Begin(e catalog.Entry) *Session {
	return &Session{ID: uuid.New(), Entry: e, m: m}
}

// Session is the transfer state of one clip control.
type Session struct {
	ID    uuid.UUID
	Entry catalog.Entry
	m     *Manager

	mu       sync.Mutex
	state    State
	held     *File
	cancel   context.CancelFunc
	canceled bool
	progress *ProgressReader
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Held returns the payload kept while the session waits for a share
// gesture; nil in every other state.
func (s *Session) Held() *File {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held
}

// Progress returns the latest progress of a running download.
func (s *Session) Progress() (Progress, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.progress == nil {
		return Progress{}, false
	}
	return s.progress.Snapshot(), true
}

// setState must be called with s.mu held.
func (s *Session) setState(state State) {
	s.state = state
	if state != ReadyToShare {
		s.held = nil
	}
	if s.m.onChange != nil {
		s.m.onChange(s.ID, state)
	}
}

// Run downloads the clip and attempts the automatic share. On a network
// failure the returned error is non-nil and Result carries a direct link
// when one could be produced.
func (s *Session) Run(ctx context.Context, onProgress func(Progress)) (Result, error) {
	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return Result{}, fmt.Errorf("%w: %s", ErrBusy, s.state)
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.canceled = false
	s.setState(Downloading)
	s.mu.Unlock()
	defer cancel()

	if s.m.pauser != nil {
		s.m.pauser.PauseAll()
	}

	file, err := s.fetch(runCtx, onProgress)

	s.mu.Lock()
	s.cancel = nil
	s.progress = nil
	if s.canceled {
		s.setState(Canceled)
		s.setState(Idle)
		s.mu.Unlock()
		slog.Info("transfer: canceled", "id", s.ID, "clip", s.Entry.Name)
		return Result{}, ErrAborted
	}
	if err != nil {
		s.fail()
		s.mu.Unlock()
		slog.Error("transfer: download failed", "id", s.ID, "clip", s.Entry.Name, "error", err)
		return s.directLinkFallback(ctx), err
	}
	s.mu.Unlock()

	if s.m.policy.AutoShare && s.m.sharer != nil {
		link, shareErr := s.m.sharer.Share(ctx, file)
		if shareErr == nil {
			s.mu.Lock()
			s.setState(Idle)
			s.mu.Unlock()
			slog.Info("transfer: shared", "id", s.ID, "clip", s.Entry.Name)
			return Result{Outcome: OutcomeShared, Location: link}, nil
		}
		if !errors.Is(shareErr, ErrShareUnavailable) {
			slog.Warn("transfer: automatic share failed", "id", s.ID, "error", shareErr)
		}
	}

	s.mu.Lock()
	s.setState(ReadyToShare)
	s.held = &file
	s.mu.Unlock()
	return Result{Outcome: OutcomePending}, nil
}

// Cancel aborts a running download. It has no effect in other states and
// never touches other sessions.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Downloading || s.cancel == nil {
		return
	}
	s.canceled = true
	s.cancel()
}

// Share is the explicit follow-up gesture of a session holding a payload.
// The policy order is walked until one step succeeds.
func (s *Session) Share(ctx context.Context) (Result, error) {
	s.mu.Lock()
	if s.state != ReadyToShare || s.held == nil {
		s.mu.Unlock()
		return Result{}, ErrNothingHeld
	}
	file := *s.held
	s.mu.Unlock()

	var errs []error
	for _, step := range s.m.policy.Order {
		res, err := s.attempt(ctx, step, file)
		if err == nil {
			s.mu.Lock()
			s.setState(Idle)
			s.mu.Unlock()
			slog.Info("transfer: delivered", "id", s.ID, "clip", s.Entry.Name, "outcome", res.Outcome)
			return res, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", step, err))
	}

	s.mu.Lock()
	s.fail()
	s.mu.Unlock()
	return Result{}, errors.Join(errs...)
}

func (s *Session) attempt(ctx context.Context, step Step, f File) (Result, error) {
	switch step {
	case StepShare:
		if s.m.sharer == nil {
			return Result{}, ErrShareUnavailable
		}
		link, err := s.m.sharer.Share(ctx, f)
		return Result{Outcome: OutcomeShared, Location: link}, err
	case StepSave:
		if s.m.saver == nil {
			return Result{}, errors.New("no saver configured")
		}
		p, err := s.m.saver.Save(ctx, f)
		return Result{Outcome: OutcomeSaved, Location: p}, err
	case StepLink:
		link, err := s.directLink(ctx)
		return Result{Outcome: OutcomeDirectLink, Location: link}, err
	default:
		return Result{}, fmt.Errorf("unknown step %q", step)
	}
}

// fail enters the error state and schedules the revert to idle. Must be
// called with s.mu held.
func (s *Session) fail() {
	s.setState(Error)
	time.AfterFunc(s.m.policy.ErrorDisplay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.state == Error {
			s.setState(Idle)
		}
	})
}

func (s *Session) directLink(ctx context.Context) (string, error) {
	if s.m.linker != nil {
		return s.m.linker.DirectLink(ctx, s.Entry)
	}
	if s.Entry.URL == "" {
		return "", errors.New("clip has no address")
	}
	return s.Entry.URL, nil
}

func (s *Session) directLinkFallback(ctx context.Context) Result {
	link, err := s.directLink(ctx)
	if err != nil {
		slog.Warn("transfer: direct link unavailable", "id", s.ID, "error", err)
		return Result{}
	}
	return Result{Outcome: OutcomeDirectLink, Location: link}
}

func (s *Session) fetch(ctx context.Context, onProgress func(Progress)) (File, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Entry.URL, nil)
	if err != nil {
		return File{}, fmt.Errorf("create request: %w", err)
	}
	resp, err := s.m.client.Do(req)
	if err != nil {
		return File{}, fmt.Errorf("fetch clip: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return File{}, fmt.Errorf("fetch clip: status %d", resp.StatusCode)
	}

	reader := NewProgressReader(resp.ContentLength, resp.Body, onProgress)
	s.mu.Lock()
	s.progress = reader
	s.mu.Unlock()

	data, err := io.ReadAll(reader)
	if err != nil {
		return File{}, fmt.Errorf("read clip: %w", err)
	}
	return File{
		Name:        path.Base(s.Entry.Name),
		ContentType: contentType(resp.Header.Get("Content-Type"), s.Entry.Name),
		Data:        data,
	}, nil
}

func contentType(header, name string) string {
	if mt, _, err := mime.ParseMediaType(header); err == nil && mt != "application/octet-stream" {
		return mt
	}
	if byExt := mime.TypeByExtension(path.Ext(name)); byExt != "" {
		return byExt
	}
	return "video/mp4"
}

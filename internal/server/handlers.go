package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mssola/useragent"
	"github.com/puntazo/puntazo/internal/catalog"
	"github.com/puntazo/puntazo/internal/gallery"
	"github.com/puntazo/puntazo/internal/gate"
	"github.com/puntazo/puntazo/internal/httputil"
	"github.com/puntazo/puntazo/internal/session"
	"github.com/puntazo/puntazo/internal/validate"
	"github.com/puntazo/puntazo/internal/webhook"
)

// API views never carry feed addresses or folder credentials.

type sideRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type courtView struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Sides []sideRef `json:"sides"`
}

type locationView struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Courts []courtView `json:"courts"`
}

func toSideRef(s catalog.Side) sideRef {
	return sideRef{ID: s.ID, Name: s.Name}
}

func toCourtView(c catalog.Court) courtView {
	v := courtView{ID: c.ID, Name: c.Name, Sides: make([]sideRef, 0, len(c.Sides))}
	for _, s := range c.Sides {
		v.Sides = append(v.Sides, toSideRef(s))
	}
	return v
}

func toLocationView(l catalog.Location) locationView {
	v := locationView{ID: l.ID, Name: l.Name, Courts: make([]courtView, 0, len(l.Courts))}
	for _, c := range l.Courts {
		v.Courts = append(v.Courts, toCourtView(c))
	}
	return v
}

type oppositeView struct {
	Side  sideRef `json:"side"`
	Video string  `json:"video"`
	URL   string  `json:"url"`
}

type clipView struct {
	Name      string        `json:"name"`
	Title     string        `json:"title"`
	URL       string        `json:"url"`
	Duration  float64       `json:"duration,omitempty"`
	Clock     string        `json:"clock,omitempty"`
	Captured  time.Time     `json:"captured,omitzero"`
	ShareLink string        `json:"shareLink"`
	Opposite  *oppositeView `json:"opposite,omitempty"`
}

type pageLinks struct {
	Prev         string `json:"prev,omitempty"`
	Next         string `json:"next,omitempty"`
	Parent       string `json:"parent"`
	RemoveFilter string `json:"removeFilter,omitempty"`
}

type sideViewResponse struct {
	Location        sideRef              `json:"location"`
	Court           sideRef              `json:"court"`
	Side            sideRef              `json:"side"`
	Hour            *int                 `json:"filtro"`
	Page            int                  `json:"page"`
	TotalPages      int                  `json:"totalPages"`
	TotalItems      int                  `json:"totalItems"`
	Items           []clipView           `json:"items"`
	Hours           []gallery.HourBucket `json:"hours"`
	ShowPagination  bool                 `json:"showPagination"`
	Adjacent        *sideRef             `json:"adjacent,omitempty"`
	Empty           bool                 `json:"empty"`
	Links           pageLinks            `json:"links"`
	RetentionNotice string               `json:"retentionNotice"`
}

func query(n gallery.Nav) string {
	return "?" + n.Values().Encode()
}

func toSideViewResponse(v *session.SideView) sideViewResponse {
	resp := sideViewResponse{
		Location:        sideRef{ID: v.Location.ID, Name: v.Location.Name},
		Court:           sideRef{ID: v.Court.ID, Name: v.Court.Name},
		Side:            toSideRef(v.Side),
		Hour:            v.Nav.Hour,
		Page:            v.Page.Index,
		TotalPages:      v.Page.TotalPages,
		TotalItems:      v.Page.TotalItems,
		Items:           make([]clipView, 0, len(v.Page.Items)),
		Hours:           v.Hours,
		ShowPagination:  v.ShowPagination,
		Empty:           v.Empty,
		Links:           pageLinks{Parent: query(v.Nav.Parent())},
		RetentionNotice: gallery.RetentionNotice,
	}
	if resp.Hours == nil {
		resp.Hours = []gallery.HourBucket{}
	}
	if v.Adjacent != nil {
		adj := toSideRef(*v.Adjacent)
		resp.Adjacent = &adj
	}
	if v.Page.HasPrev() {
		resp.Links.Prev = query(v.Nav.WithPage(v.Page.Index - 1))
	}
	if v.Page.HasNext() {
		resp.Links.Next = query(v.Nav.WithPage(v.Page.Index + 1))
	}
	if v.Nav.Hour != nil {
		resp.Links.RemoveFilter = query(v.Nav.WithoutHour())
	}
	for _, e := range v.Page.Items {
		item := clipView{
			Name:      e.Name,
			Title:     e.DisplayName(),
			URL:       e.URL,
			Duration:  e.Duration,
			Clock:     e.Clock,
			Captured:  e.Captured,
			ShareLink: query(v.Nav.ClipLink(e.Name)),
		}
		if ref, ok := v.Opposite[e.Name]; ok {
			item.Opposite = &oppositeView{Side: toSideRef(ref.Side), Video: ref.Entry.Name, URL: ref.Entry.URL}
		}
		resp.Items = append(resp.Items, item)
	}
	return resp
}

// writeControllerError maps controller failures onto HTTP statuses.
func writeControllerError(w http.ResponseWriter, r *http.Request, err error) {
	var gated *session.GatedError
	switch {
	case errors.As(err, &gated):
		httputil.WriteJSON(w, http.StatusForbidden, map[string]string{
			"error":    "passphrase required",
			"redirect": query(gated.Redirect),
		})
	case errors.Is(err, catalog.ErrNotFound):
		httputil.WriteError(w, http.StatusNotFound, "not found")
	case errors.Is(err, catalog.ErrNetwork), errors.Is(err, catalog.ErrParse):
		slog.Error("catalog unavailable", "path", r.URL.Path, "error", err)
		httputil.WriteError(w, http.StatusBadGateway, "catalog unavailable")
	default:
		slog.Error("request failed", "path", r.URL.Path, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

// navFromRequest validates the path identifiers and the view query.
func navFromRequest(r *http.Request) (gallery.Nav, string) {
	nav := gallery.Nav{
		Location: chi.URLParam(r, "loc"),
		Court:    chi.URLParam(r, "can"),
		Side:     chi.URLParam(r, "lado"),
	}
	for field, v := range map[string]string{"location": nav.Location, "court": nav.Court, "side": nav.Side} {
		if v == "" {
			continue
		}
		if msg := validate.Identifier(v, field); msg != "" {
			return nav, msg
		}
	}
	q := r.URL.Query()
	hour, msg := validate.Hour(q.Get("filtro"))
	if msg != "" {
		return nav, msg
	}
	nav.Hour = hour
	page, msg := validate.Page(q.Get("page"))
	if msg != "" {
		return nav, msg
	}
	nav.Page = page
	if video := q.Get("video"); video != "" {
		if msg := validate.ClipName(video); msg != "" {
			return nav, msg
		}
		nav.Video = video
	}
	return nav, ""
}

// passAuthorizer accepts the signed pass cookie issued by handlePass.
func (s *Server) passAuthorizer(r *http.Request) session.Authorizer {
	return session.AuthorizerFunc(func(_ context.Context, _ gate.Rules, scope gate.Scope) (bool, error) {
		c, err := r.Cookie(gate.CookieName(scope))
		if err != nil || s.gateSecret == "" {
			return false, nil
		}
		rec, err := gate.VerifyPass(s.gateSecret, c.Value, gate.Key(scope))
		if err != nil {
			return false, nil
		}
		return rec.Valid(s.now()), nil
	})
}

func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request) {
	locs, err := s.controller.Locations(r.Context())
	if err != nil {
		writeControllerError(w, r, err)
		return
	}
	out := make([]locationView, 0, len(locs))
	for _, l := range locs {
		out = append(out, toLocationView(l))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"locations": out})
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	nav, msg := navFromRequest(r)
	if msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	loc, err := s.controller.Courts(r.Context(), nav.Location)
	if err != nil {
		writeControllerError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toLocationView(loc))
}

func (s *Server) handleCourt(w http.ResponseWriter, r *http.Request) {
	nav, msg := navFromRequest(r)
	if msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	court, err := s.controller.Sides(r.Context(), nav.Location, nav.Court)
	if err != nil {
		writeControllerError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCourtView(court))
}

func (s *Server) handleVideos(w http.ResponseWriter, r *http.Request) {
	nav, msg := navFromRequest(r)
	if msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	view, err := s.controller.OpenSide(r.Context(), nav, s.passAuthorizer(r))
	if err != nil {
		writeControllerError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSideViewResponse(view))
}

func (s *Server) handleOpposite(w http.ResponseWriter, r *http.Request) {
	nav, msg := navFromRequest(r)
	if msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	if nav.Video == "" {
		httputil.WriteError(w, http.StatusBadRequest, "video is required")
		return
	}
	ref, err := s.controller.Opposite(r.Context(), nav, nav.Video, s.passAuthorizer(r))
	if err != nil {
		writeControllerError(w, r, err)
		return
	}
	if ref == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, oppositeView{Side: toSideRef(ref.Side), Video: ref.Entry.Name, URL: ref.Entry.URL})
}

type downloadResponse struct {
	DownloadURL     string `json:"downloadUrl"`
	NativeShare     bool   `json:"nativeShare"`
	RetentionNotice string `json:"retentionNotice"`
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	nav, msg := navFromRequest(r)
	if msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	if nav.Video == "" {
		httputil.WriteError(w, http.StatusBadRequest, "video is required")
		return
	}
	entry, err := s.controller.Clip(r.Context(), nav, nav.Video, s.passAuthorizer(r))
	if err != nil {
		writeControllerError(w, r, err)
		return
	}
	link, err := s.linker.DirectLink(r.Context(), entry)
	if err != nil {
		slog.Error("direct link failed", "clip", entry.Name, "error", err)
		httputil.WriteError(w, http.StatusBadGateway, "download link unavailable")
		return
	}

	ua := useragent.New(r.UserAgent())
	s.webhooks.Emit(webhook.EventDirectLink, nav.Location+"/"+nav.Court+"/"+nav.Side, map[string]any{
		"clip":   entry.Name,
		"mobile": ua.Mobile(),
	})
	httputil.WriteJSON(w, http.StatusOK, downloadResponse{
		DownloadURL:     link,
		NativeShare:     ua.Mobile(),
		RetentionNotice: gallery.RetentionNotice,
	})
}

type passRequest struct {
	Passphrase string `json:"passphrase"`
}

type passResponse struct {
	Expiry int64 `json:"expiry"`
}

func (s *Server) handlePass(w http.ResponseWriter, r *http.Request) {
	nav, msg := navFromRequest(r)
	if msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	var req passRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validate.Passphrase(req.Passphrase); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	g := s.controller.Gate()
	if g == nil || s.gateSecret == "" {
		httputil.WriteError(w, http.StatusNotFound, "access control is not configured")
		return
	}

	court, err := s.controller.Sides(r.Context(), nav.Location, nav.Court)
	if err != nil {
		writeControllerError(w, r, err)
		return
	}
	if _, ok := court.Side(nav.Side); !ok {
		httputil.WriteError(w, http.StatusNotFound, "not found")
		return
	}

	scope := gate.Scope{Location: nav.Location, Court: nav.Court, Side: nav.Side}
	key := gate.Key(scope)
	ip := httputil.ClientIP(r)
	fields := s.geo.Locate(ip).Fields()
	fields["ip"] = ip

	rec, err := g.Verify(r.Context(), g.Rules(r.Context()), scope, req.Passphrase)
	if errors.Is(err, gate.ErrAuthFailure) {
		s.webhooks.Emit(webhook.EventGateDenied, key, fields)
		httputil.WriteError(w, http.StatusUnauthorized, "wrong passphrase")
		return
	}
	if err != nil {
		slog.Error("gate verify failed", "key", key, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	rec = rec.WholeSeconds()
	token, err := gate.IssuePass(s.gateSecret, key, rec)
	if err != nil {
		slog.Error("failed to issue pass", "key", key, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     gate.CookieName(scope),
		Value:    token,
		Path:     "/",
		Expires:  time.UnixMilli(rec.Expiry),
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	s.webhooks.Emit(webhook.EventGateGranted, key, fields)
	httputil.WriteJSON(w, http.StatusOK, passResponse{Expiry: rec.Expiry})
}

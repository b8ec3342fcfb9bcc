package server

import (
	"context"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/puntazo/puntazo/internal/docs"
	"github.com/puntazo/puntazo/internal/geoip"
	"github.com/puntazo/puntazo/internal/httputil"
	"github.com/puntazo/puntazo/internal/ratelimit"
	"github.com/puntazo/puntazo/internal/session"
	"github.com/puntazo/puntazo/internal/transfer"
	"github.com/puntazo/puntazo/internal/webhook"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Controller *session.Controller
	Pinger     Pinger
	// GateSecret signs pass cookies.
	GateSecret string
	BaseURL    string
	// MediaOrigin is allowed by the content security policy for clips.
	MediaOrigin string
	// DataFS is served under /data/ when set.
	DataFS   fs.FS
	Linker   transfer.Linker
	Webhooks *webhook.Client
	GeoIP    *geoip.Resolver
	// PassBurst bounds passphrase attempts per client and side.
	PassBurst  int
	EnableDocs bool
}

type Server struct {
	router        chi.Router
	controller    *session.Controller
	pinger        Pinger
	gateSecret    string
	secureCookies bool
	dataFS        fs.FS
	linker        transfer.Linker
	webhooks      *webhook.Client
	geo           *geoip.Resolver
	passLimiter   *ratelimit.Limiter
	enableDocs    bool
	now           func() time.Time
}

func New(cfg Config) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(slogMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders(SecurityConfig{
		BaseURL:     cfg.BaseURL,
		MediaOrigin: cfg.MediaOrigin,
	}))

	burst := cfg.PassBurst
	if burst <= 0 {
		burst = 3
	}
	linker := cfg.Linker
	if linker == nil {
		linker = transfer.URLLinker{}
	}

	s := &Server{
		router:        r,
		controller:    cfg.Controller,
		pinger:        cfg.Pinger,
		gateSecret:    cfg.GateSecret,
		secureCookies: strings.HasPrefix(cfg.BaseURL, "https://"),
		dataFS:        cfg.DataFS,
		linker:        linker,
		webhooks:      cfg.Webhooks,
		geo:           cfg.GeoIP,
		passLimiter: ratelimit.NewLimiter(1.0/60, burst).WithKey(func(r *http.Request) string {
			return httputil.ClientIP(r) + "|" + r.URL.Path
		}),
		enableDocs: cfg.EnableDocs,
		now:        time.Now,
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// PassLimiter exposes the attempt limiter so the caller can run its
// eviction loop.
func (s *Server) PassLimiter() *ratelimit.Limiter {
	return s.passLimiter
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)

	if s.enableDocs {
		s.router.Mount("/api/docs", docs.Routes("/api/docs"))
	}

	if s.controller != nil {
		s.router.Route("/api/locations", func(r chi.Router) {
			r.Get("/", s.handleLocations)
			r.Get("/{loc}", s.handleLocation)
			r.Get("/{loc}/courts/{can}", s.handleCourt)
			r.Route("/{loc}/courts/{can}/sides/{lado}", func(r chi.Router) {
				r.Get("/videos", s.handleVideos)
				r.Get("/opposite", s.handleOpposite)
				r.Get("/download", s.handleDownload)
				r.With(s.passLimiter.Middleware).Post("/pass", s.handlePass)
			})
		})
	}

	if s.dataFS != nil {
		s.router.Handle("/data/*", http.StripPrefix("/data", newNoStoreFileServer(s.dataFS)))
	}

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, http.StatusNotFound, "not found")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": "database unreachable"})
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

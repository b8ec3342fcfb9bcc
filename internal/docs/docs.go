// Package docs serves the OpenAPI description of the gallery API and a
// reference page rendering it.
package docs

import (
	_ "embed"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

//go:embed openapi.yaml
var document []byte

// pageCSP loosens the server policy for the reference renderer, which is
// loaded from a CDN and injects inline styles.
var pageCSP = strings.Join([]string{
	"default-src 'self'",
	"script-src 'self' https://cdn.jsdelivr.net 'unsafe-inline'",
	"style-src 'self' https://cdn.jsdelivr.net 'unsafe-inline'",
	"font-src 'self' https://cdn.jsdelivr.net data:",
	"img-src 'self' data:",
	"connect-src 'self'",
	"frame-ancestors 'self'",
}, "; ") + ";"

// Routes returns the reference page at "/" and the raw document at
// "/openapi.yaml". mount is the prefix the router is mounted under.
func Routes(mount string) chi.Router {
	page := []byte(strings.Replace(pageHTML, "{{document}}", strings.TrimSuffix(mount, "/")+"/openapi.yaml", 1))
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Security-Policy", pageCSP)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(page)
	})
	r.Get("/openapi.yaml", serveDocument)
	return r
}

func serveDocument(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(document)
}

const pageHTML = `<!DOCTYPE html>
<html lang="es"><head>
  <title>Puntazo API</title>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
</head><body>
  <script id="api-reference" data-url="{{document}}"></script>
  <script src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"></script>
</body></html>`

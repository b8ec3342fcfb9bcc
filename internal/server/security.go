package server

import (
	"fmt"
	"net/http"
	"strings"
)

type SecurityConfig struct {
	BaseURL string
	// MediaOrigin hosts clip files and thumbnails.
	MediaOrigin string
}

func securityHeaders(cfg SecurityConfig) func(http.Handler) http.Handler {
	strictTransport := strings.HasPrefix(cfg.BaseURL, "https://")

	mediaSuffix := ""
	if cfg.MediaOrigin != "" {
		mediaSuffix = " " + cfg.MediaOrigin
	}
	csp := fmt.Sprintf(
		"default-src 'self'; img-src 'self' data:%s; media-src 'self' blob:%s; connect-src 'self'%s; frame-ancestors 'self';",
		mediaSuffix, mediaSuffix, mediaSuffix,
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Referrer-Policy", "no-referrer")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "SAMEORIGIN")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=(), screen-wake-lock=(self)")
			w.Header().Set("Content-Security-Policy", csp)

			if strictTransport {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

package security

import (
	"fmt"
	"net/http"

	applog "ssfarm/internal/log"

	"github.com/unrolled/secure"
)

// HeadersConfig holds the security headers applied to every response.
type HeadersConfig struct {
	CSP string

	HSTSMaxAge            int64
	HSTSIncludeSubdomains bool

	ReferrerPolicy    string
	PermissionsPolicy string

	// SSLRedirect sends plain HTTP requests to HTTPS; only enabled in production.
	SSLRedirect bool
	IsDev       bool
}

// DefaultHeadersConfig allows htmx from unpkg and inline styles for the
// status badges.
func DefaultHeadersConfig(production bool) HeadersConfig {
	return HeadersConfig{
		CSP: "default-src 'self'; " +
			"script-src 'self' https://unpkg.com; " +
			"style-src 'self' 'unsafe-inline'; " +
			"img-src 'self' data:; " +
			"connect-src 'self'; " +
			"object-src 'none'; " +
			"frame-ancestors 'none'; " +
			"base-uri 'self'; " +
			"form-action 'self' https://wa.me",
		HSTSMaxAge:            31536000,
		HSTSIncludeSubdomains: true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		PermissionsPolicy:     "geolocation=(), microphone=(), camera=(), payment=()",
		SSLRedirect:           production,
		IsDev:                 !production,
	}
}

func (c HeadersConfig) options() secure.Options {
	return secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ContentSecurityPolicy: c.CSP,
		ReferrerPolicy:        c.ReferrerPolicy,
		PermissionsPolicy:     c.PermissionsPolicy,
		STSSeconds:            c.HSTSMaxAge,
		STSIncludeSubdomains:  c.HSTSIncludeSubdomains,
		SSLRedirect:           c.SSLRedirect,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         c.IsDev,
	}
}

// HeadersMiddleware applies security headers through unrolled/secure.
type HeadersMiddleware struct {
	secure *secure.Secure
	logger *applog.Logger
}

func NewHeadersMiddleware(config HeadersConfig) *HeadersMiddleware {
	return &HeadersMiddleware{
		secure: secure.New(config.options()),
		logger: applog.ForComponent(applog.ComponentSecurity),
	}
}

func (h *HeadersMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.secure.Process(w, r); err != nil {
			// Process has already written the redirect or rejection.
			h.logger.WarnContext(r.Context(), "Secure headers blocked request",
				applog.FieldPath, r.URL.Path,
				applog.FieldError, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// StaticAssetMiddleware adds caching headers for static assets.
func StaticAssetMiddleware(maxAge int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxAge > 0 {
				w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d, immutable", maxAge))
			}
			next.ServeHTTP(w, r)
		})
	}
}

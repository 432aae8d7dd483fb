package ratelimit

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	applog "ssfarm/internal/log"

	"github.com/go-chi/httprate"
)

// Config holds one limiter's budget.
type Config struct {
	Requests int
	Window   time.Duration
}

// DefaultConfig allows 60 requests per minute.
func DefaultConfig() Config {
	return Config{Requests: 60, Window: time.Minute}
}

// Limiter limits requests per client key with httprate and counts rejections.
type Limiter struct {
	name    string
	config  Config
	keyFunc func(*http.Request) string
	hits    int64
	logger  *applog.Logger
}

// NewLimiter builds a limiter keyed by keyFunc, usually the client IP.
// A nil keyFunc falls back to httprate.KeyByIP.
func NewLimiter(name string, config Config, keyFunc func(*http.Request) string) *Limiter {
	if config.Requests <= 0 || config.Window <= 0 {
		config = DefaultConfig()
	}
	return &Limiter{
		name:    name,
		config:  config,
		keyFunc: keyFunc,
		logger:  applog.ForComponent(applog.ComponentRateLimit),
	}
}

func (l *Limiter) key(r *http.Request) (string, error) {
	if l.keyFunc != nil {
		return l.name + ":" + l.keyFunc(r), nil
	}
	k, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return l.name + ":" + k, nil
}

// Middleware limits every request passing through it.
func (l *Limiter) Middleware() func(http.Handler) http.Handler {
	return httprate.Limit(l.config.Requests, l.config.Window,
		httprate.WithKeyFuncs(l.key),
		httprate.WithLimitHandler(l.onLimit),
	)
}

// WritesOnly limits unsafe methods and lets reads through untouched.
func (l *Limiter) WritesOnly() func(http.Handler) http.Handler {
	limit := l.Middleware()
	return func(next http.Handler) http.Handler {
		limited := limit(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
			default:
				limited.ServeHTTP(w, r)
			}
		})
	}
}

func (l *Limiter) onLimit(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt64(&l.hits, 1)
	key, _ := l.key(r)
	l.logger.WarnContext(r.Context(), "Rate limit exceeded",
		"limiter", l.name,
		"key", key,
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)

	w.Header().Set("Retry-After", strconv.Itoa(int(l.config.Window.Seconds())))
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`<div class="error">Too many requests. Please wait a minute and try again.</div>`))
		return
	}
	http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
}

// Hits returns how many requests were rejected.
func (l *Limiter) Hits() int64 {
	return atomic.LoadInt64(&l.hits)
}

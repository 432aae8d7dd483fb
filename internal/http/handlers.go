package http

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"ssfarm/internal/auth"
	applog "ssfarm/internal/log"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady runs the configured dependency checks. Any failure answers 503.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{"templates": "ok"}
	ready := true
	if s.templates == nil {
		checks["templates"] = errTemplatesUnavailable.Error()
		ready = false
	}

	names := make([]string, 0, len(s.readyChecks))
	for name := range s.readyChecks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.readyChecks[name](ctx); err != nil {
			checks[name] = err.Error()
			ready = false
			s.logger.WarnContext(ctx, "Readiness check failed", "check", name, applog.FieldError, err)
			continue
		}
		checks[name] = "ok"
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{"status": status, "checks": checks})
}

type loginPage struct {
	FarmName string
	Email    string
	Error    string
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(auth.CookieName); err == nil {
		if _, err := s.auth.Verify(c.Value); err == nil {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
	}
	s.render(w, r, "login.html", loginPage{FarmName: s.farmName})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	form := loginForm{
		Email:    sanitizeInput(r.PostForm.Get("email")),
		Password: r.PostForm.Get("password"),
	}
	page := loginPage{FarmName: s.farmName, Email: form.Email}
	if err := s.forms.Check(form); err != nil {
		page.Error = err.Error()
		s.renderStatus(w, r, http.StatusUnprocessableEntity, "login.html", page)
		return
	}

	token, sess, err := s.auth.Login(r.Context(), form.Email, form.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		page.Error = "Wrong email or password"
		s.renderStatus(w, r, http.StatusUnauthorized, "login.html", page)
		return
	}
	if err != nil {
		s.fail(w, r, "login", err)
		return
	}

	auth.SetCookie(w, r, token, sess.ExpiresAt)
	if isHTMX(r) {
		NewHTMXResponse().Redirect("/").Write(w)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearCookie(w, r)
	if isHTMX(r) {
		NewHTMXResponse().Redirect("/login").Write(w)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

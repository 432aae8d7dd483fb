package http

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"ssfarm/internal/auth"
	"ssfarm/internal/billing"
	"ssfarm/internal/calendar"
	"ssfarm/internal/core"
	applog "ssfarm/internal/log"
	appweb "ssfarm/web"
)

var errTemplatesUnavailable = errors.New("templates unavailable")

// pageData is what every full page template receives.
type pageData struct {
	Title    string
	Active   string
	FarmName string
	Session  auth.Session
	Period   billing.Period
	Data     any
}

var templateFuncs = template.FuncMap{
	"rupees": core.FormatRupees,
	"litres": core.FormatLitres,
	"amount": core.FormatAmount,
	"date": func(d core.Date) string {
		if d.IsZero() {
			return ""
		}
		return d.Format("02 Jan 2006")
	},
	"isoDate": func(d core.Date) string {
		if d.IsZero() {
			return ""
		}
		return d.String()
	},
	"monthTitle": func(p billing.Period) string {
		return fmt.Sprintf("%s %d", p.Month, p.Year)
	},
	"statusClass": func(s billing.PaymentStatus) string {
		return "status-" + string(s)
	},
	"deref": func(v *float64) float64 {
		if v == nil {
			return 0
		}
		return *v
	},
	"derefDate": func(d *core.Date) string {
		if d == nil {
			return ""
		}
		return d.String()
	},
	"neg": func(v float64) bool { return v < 0 },
	"abs": func(v float64) float64 {
		if v < 0 {
			return -v
		}
		return v
	},
	"weekdays": func() [7]string { return calendar.Weekdays },
}

func parseTemplates() (*template.Template, error) {
	return template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
}

// page fills the layout fields shared by all pages.
func (s *Server) page(r *http.Request, title, active string, p billing.Period, data any) pageData {
	sess, _ := auth.FromContext(r.Context())
	return pageData{
		Title:    title,
		Active:   active,
		FarmName: s.farmName,
		Session:  sess,
		Period:   p,
		Data:     data,
	}
}

func (s *Server) execute(name string, data any) ([]byte, error) {
	if s.templates == nil {
		return nil, errTemplatesUnavailable
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("execute %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// render executes a template into a buffer so a failure never leaves a
// half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	s.renderStatus(w, r, http.StatusOK, name, data)
}

func (s *Server) renderStatus(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	start := time.Now()
	body, err := s.execute(name, data)
	if err != nil {
		s.slog.LogError(r.Context(), "Template render failed", err, applog.ComponentHTTP, applog.OpRender,
			applog.NewFields().WithOperation(name))
		InternalServerError("Failed to render page").Write(w)
		return
	}
	applog.FromContext(r.Context()).DebugContext(r.Context(), "Rendered template",
		"template", name,
		applog.FieldDuration, time.Since(start).Milliseconds())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// respond renders a partial into b's body and writes it.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, name string, data any) {
	body, err := s.execute(name, data)
	if err != nil {
		s.slog.LogError(r.Context(), "Template render failed", err, applog.ComponentHTTP, applog.OpRender,
			applog.NewFields().WithOperation(name))
		InternalServerError("Failed to render page").Write(w)
		return
	}
	b.BodyHTML(string(body)).Write(w)
}

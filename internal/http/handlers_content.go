package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ssfarm/internal/billing"
	"ssfarm/internal/core"
	applog "ssfarm/internal/log"
)

type contentSection struct {
	Kind core.SectionKind
	JSON string
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	all, err := s.svc.Content.All(r.Context())
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	sections := make([]contentSection, 0, len(all))
	for _, sec := range all {
		raw, err := json.MarshalIndent(sec, "", "  ")
		if err != nil {
			s.fail(w, r, applog.OpRender, err)
			return
		}
		sections = append(sections, contentSection{Kind: sec.Kind(), JSON: string(raw)})
	}
	s.render(w, r, "content.html", s.page(r, "Website content", "content", billing.PeriodOf(core.DateOf(s.now())), sections))
}

// handleSaveContent stores one section posted as JSON in the "data" field.
// Decode and validation failures are reported to the editor.
func (s *Server) handleSaveContent(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.fail(w, r, applog.OpUpdate, errBadForm)
		return
	}
	kind := core.SectionKind(chi.URLParam(r, "kind"))
	data := bytes.TrimSpace([]byte(r.PostForm.Get("data")))

	sec, err := core.DecodeSectionData(kind, data)
	if errors.Is(err, core.ErrUnknownSection) {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	if err == nil {
		err = sec.Validate()
	}
	if err != nil {
		s.fail(w, r, applog.OpValidate, &FormError{Messages: []string{err.Error()}})
		return
	}
	if err := s.svc.Content.Save(r.Context(), sec); err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	NewHTMXResponse().
		Trigger(EventContentSaved, map[string]string{"kind": string(kind)}).
		TriggerSuccessNotification("Saved " + string(kind) + " section").
		Write(w)
}

// handlePublicContent feeds the marketing site.
func (s *Server) handlePublicContent(w http.ResponseWriter, r *http.Request) {
	payload, err := s.svc.Content.PublicJSON(r.Context())
	if err != nil {
		s.failJSON(w, r, applog.OpList, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write(payload)
}

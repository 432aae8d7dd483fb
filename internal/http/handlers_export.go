package http

import (
	"fmt"
	"net/http"

	"ssfarm/internal/billing"
	"ssfarm/internal/core"
	"ssfarm/internal/export/csvio"
	applog "ssfarm/internal/log"
)

const maxUploadBytes = 8 << 20

const csvContentType = "text/csv; charset=utf-8"

// CSV downloads stream straight to the client; a failure after the first
// row can only be logged.
func (s *Server) logStreamError(r *http.Request, what string, err error) {
	if err == nil {
		return
	}
	s.slog.LogError(r.Context(), "CSV export failed", err, applog.ComponentExport, applog.OpExport,
		applog.NewFields().WithOperation(what))
}

func (s *Server) handleExportCustomers(w http.ResponseWriter, r *http.Request) {
	attachment(w, csvContentType, "customers.csv")
	s.logStreamError(r, "customers", s.svc.Export.CustomersCSV(r.Context(), w))
}

func (s *Server) handleExportDeliveries(w http.ResponseWriter, r *http.Request) {
	start, end := billing.PeriodOf(core.DateOf(s.now())).Bounds()
	from, err := ParseDateParam(r.URL.Query().Get("from"), start)
	if err != nil {
		s.fail(w, r, applog.OpExport, err)
		return
	}
	to, err := ParseDateParam(r.URL.Query().Get("to"), end)
	if err != nil {
		s.fail(w, r, applog.OpExport, err)
		return
	}
	if to.Before(from) {
		s.fail(w, r, applog.OpExport, errBadRange)
		return
	}
	attachment(w, csvContentType, fmt.Sprintf("deliveries-%s-to-%s.csv", from, to))
	s.logStreamError(r, "deliveries", s.svc.Export.DeliveriesCSV(r.Context(), w, from, to))
}

func (s *Server) handleExportBills(w http.ResponseWriter, r *http.Request) {
	p, err := ParsePeriod(r.URL.Query(), s.now())
	if err != nil {
		s.fail(w, r, applog.OpExport, err)
		return
	}
	attachment(w, csvContentType, fmt.Sprintf("bills-%s.csv", p))
	s.logStreamError(r, "bills", s.svc.Export.BillsCSV(r.Context(), w, p))
}

// handleExportSheets queues the month for the spreadsheet worker, or
// writes it inline when no queue is configured.
func (s *Server) handleExportSheets(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.fail(w, r, applog.OpExport, errBadForm)
		return
	}
	p, err := ParsePeriod(r.Form, s.now())
	if err != nil {
		s.fail(w, r, applog.OpExport, err)
		return
	}
	queued, err := s.svc.Export.RequestSheetExport(r.Context(), p, actor(r))
	if err != nil {
		s.fail(w, r, applog.OpExport, err)
		return
	}
	msg := "Spreadsheet updated for " + p.String()
	if queued {
		msg = "Spreadsheet export queued for " + p.String()
	}
	NewHTMXResponse().TriggerSuccessNotification(msg).Write(w)
}

type importView struct {
	Kind   string
	Result csvio.ImportResult
}

func (s *Server) handleImportCustomers(w http.ResponseWriter, r *http.Request) {
	s.handleImport(w, r, "customers")
}

func (s *Server) handleImportDeliveries(w http.ResponseWriter, r *http.Request) {
	s.handleImport(w, r, "deliveries")
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request, kind string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.fail(w, r, applog.OpImport, errBadForm)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		s.fail(w, r, applog.OpImport, fmt.Errorf("%w: missing file", errBadForm))
		return
	}
	defer file.Close()

	var res csvio.ImportResult
	b := NewHTMXResponse()
	switch kind {
	case "customers":
		res, err = s.svc.Export.ImportCustomers(r.Context(), file)
		b.TriggerCustomersChanged()
	default:
		res, err = s.svc.Export.ImportDeliveries(r.Context(), file)
		s.metrics.LedgerWrite("delivery", res.Imported)
		now := s.now()
		b.TriggerLedgerChanged(now.Year(), int(now.Month()))
	}
	if err != nil {
		s.fail(w, r, applog.OpImport, err)
		return
	}
	if res.Skipped > 0 {
		b.TriggerErrorNotification(fmt.Sprintf("Imported %d %s, skipped %d rows", res.Imported, kind, res.Skipped))
	} else {
		b.TriggerSuccessNotification(fmt.Sprintf("Imported %d %s", res.Imported, kind))
	}
	s.respond(w, r, b, "import_result", importView{Kind: kind, Result: res})
}

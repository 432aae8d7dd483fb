package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ssfarm/internal/billing"
	"ssfarm/internal/export/pdf"
	"ssfarm/internal/services"
)

type billsView struct {
	Period  billing.Period
	Prev    billing.Period
	Next    billing.Period
	Bills   []services.CustomerBill
	Totals  services.MonthTotals
	ShowAll bool
}

type statusCount struct {
	Status billing.PaymentStatus
	Count  int
}

type statusView struct {
	Report services.StatusReport
	Counts []statusCount
	Prev   billing.Period
	Next   billing.Period
}

var statusOrder = []billing.PaymentStatus{
	billing.StatusPending,
	billing.StatusPartiallyPaid,
	billing.StatusPaid,
	billing.StatusOverpaid,
	billing.StatusNoBill,
}

func (s *Server) bills(r *http.Request) (billsView, error) {
	p, err := ParsePeriod(r.URL.Query(), s.now())
	if err != nil {
		return billsView{}, err
	}
	showAll := r.URL.Query().Get("all") == "1"
	bills, err := s.svc.Billing.MonthlyBills(r.Context(), p, showAll)
	if err != nil {
		return billsView{}, err
	}
	return billsView{
		Period:  p,
		Prev:    p.Prev(),
		Next:    p.Next(),
		Bills:   bills,
		Totals:  services.Totals(bills),
		ShowAll: showAll,
	}, nil
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	view, err := s.bills(r)
	if err != nil {
		s.fail(w, r, "dashboard", err)
		return
	}
	s.render(w, r, "dashboard.html", s.page(r, "Monthly bills", "dashboard", view.Period, view))
}

// handleBillsPartial serves the bills table swapped in by month navigation.
func (s *Server) handleBillsPartial(w http.ResponseWriter, r *http.Request) {
	view, err := s.bills(r)
	if err != nil {
		s.fail(w, r, "bills", err)
		return
	}
	s.render(w, r, "bills_table", view)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	p, err := ParsePeriod(r.URL.Query(), s.now())
	if err != nil {
		s.fail(w, r, "status", err)
		return
	}
	report, err := s.svc.Billing.StatusView(r.Context(), p)
	if err != nil {
		s.fail(w, r, "status", err)
		return
	}
	view := statusView{Report: report, Prev: p.Prev(), Next: p.Next()}
	for _, st := range statusOrder {
		view.Counts = append(view.Counts, statusCount{Status: st, Count: report.Counts[st]})
	}
	s.render(w, r, "status.html", s.page(r, "Payment status", "status", p, view))
}

type billView struct {
	Bill services.BillDetail
	Prev billing.Period
	Next billing.Period
}

func (s *Server) handleBill(w http.ResponseWriter, r *http.Request) {
	p, err := ParsePeriod(r.URL.Query(), s.now())
	if err != nil {
		s.fail(w, r, "bill", err)
		return
	}
	b, err := s.svc.Billing.Bill(r.Context(), chi.URLParam(r, "customerID"), p)
	if err != nil {
		s.fail(w, r, "bill", err)
		return
	}
	s.slog.LogBillComputed(r.Context(), b.Customer.ID, p.String(), b.Summary.ClosingBalance)
	s.render(w, r, "bill.html", s.page(r, "Bill for "+b.Customer.Name, "dashboard", p, billView{Bill: b, Prev: p.Prev(), Next: p.Next()}))
}

// handleBillPDF downloads the bill as PDF. Without a PDF renderer the
// printable HTML is served instead.
func (s *Server) handleBillPDF(w http.ResponseWriter, r *http.Request) {
	p, err := ParsePeriod(r.URL.Query(), s.now())
	if err != nil {
		s.fail(w, r, "bill_pdf", err)
		return
	}
	customerID := chi.URLParam(r, "customerID")
	out, b, err := s.svc.Share.PDF(r.Context(), customerID, p)
	if errors.Is(err, pdf.ErrDisabled) {
		html, herr := s.svc.Share.BillHTML(r.Context(), customerID, p)
		if herr != nil {
			s.fail(w, r, "bill_pdf", herr)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(html)
		return
	}
	if err != nil {
		s.fail(w, r, "bill_pdf", err)
		return
	}
	attachment(w, "application/pdf", fmt.Sprintf("bill-%s-%s.pdf", slug(b.Customer.Name), p))
	_, _ = w.Write(out)
}

func (s *Server) handleBillShare(w http.ResponseWriter, r *http.Request) {
	p, err := ParsePeriod(r.URL.Query(), s.now())
	if err != nil {
		s.fail(w, r, "share", err)
		return
	}
	res, err := s.svc.Share.Share(r.Context(), chi.URLParam(r, "customerID"), p)
	if err != nil {
		s.fail(w, r, "share", err)
		return
	}
	if isHTMX(r) {
		s.render(w, r, "share_panel", res)
		return
	}
	s.render(w, r, "share.html", s.page(r, "Share bill", "dashboard", p, res))
}

// handleBillShared records that the WhatsApp link was opened for the bill.
func (s *Server) handleBillShared(w http.ResponseWriter, r *http.Request) {
	p, err := ParsePeriod(r.URL.Query(), s.now())
	if err != nil {
		s.fail(w, r, "share", err)
		return
	}
	if err := s.svc.Share.MarkShared(r.Context(), chi.URLParam(r, "customerID"), p, services.ChannelWhatsApp); err != nil {
		s.fail(w, r, "share", err)
		return
	}
	NewHTMXResponse().TriggerSuccessNotification("Share recorded").Write(w)
}

package http

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"ssfarm/internal/billing"
	"ssfarm/internal/core"
	applog "ssfarm/internal/log"
	"ssfarm/internal/services"
)

type daySheetView struct {
	Date core.Date
	Prev core.Date
	Next core.Date
	Rows []services.DaySheetRow
}

func (s *Server) daySheet(r *http.Request, date core.Date) (daySheetView, error) {
	rows, err := s.svc.Deliveries.DaySheet(r.Context(), date)
	if err != nil {
		return daySheetView{}, err
	}
	return daySheetView{Date: date, Prev: date.AddDays(-1), Next: date.AddDays(1), Rows: rows}, nil
}

func (s *Server) handleDeliveries(w http.ResponseWriter, r *http.Request) {
	date, err := ParseDateParam(r.URL.Query().Get("date"), core.DateOf(s.now()))
	if err != nil {
		s.fail(w, r, "day_sheet", err)
		return
	}
	view, err := s.daySheet(r, date)
	if err != nil {
		s.fail(w, r, "day_sheet", err)
		return
	}
	if isHTMX(r) {
		s.render(w, r, "day_sheet", view)
		return
	}
	s.render(w, r, "deliveries.html", s.page(r, "Daily deliveries", "deliveries", billing.PeriodOf(date), view))
}

// handleRecordDeliveries saves either one customer's quantity
// (customer_id + quantity) or the whole daily entry sheet (qty_<id> fields).
func (s *Server) handleRecordDeliveries(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.fail(w, r, applog.OpUpsert, errBadForm)
		return
	}
	date, err := core.ParseDate(sanitizeInput(r.PostForm.Get("date")))
	if err != nil {
		s.fail(w, r, applog.OpUpsert, err)
		return
	}

	b := NewHTMXResponse().TriggerLedgerChanged(date.Year(), int(date.Month()))
	if id := sanitizeInput(r.PostForm.Get("customer_id")); id != "" {
		qty, err := core.ParseQuantity(sanitizeInput(r.PostForm.Get("quantity")))
		if err != nil {
			s.fail(w, r, applog.OpUpsert, core.ErrInvalidQuantity)
			return
		}
		if err := s.svc.Deliveries.Record(r.Context(), id, date, qty); err != nil {
			s.fail(w, r, applog.OpUpsert, err)
			return
		}
		s.metrics.LedgerWrite("delivery", 1)
		s.slog.LogDeliveryRecorded(r.Context(), id, date.String(), qty)
		b.TriggerSuccessNotification("Delivery saved")
	} else {
		raw, ids := daySheetEntries(r.PostForm)
		sort.Strings(ids)
		entries := make([]services.DayEntry, 0, len(ids))
		var invalid int
		for _, id := range ids {
			qty, err := core.ParseQuantity(raw[id])
			if err != nil {
				invalid++
				continue
			}
			entries = append(entries, services.DayEntry{CustomerID: id, Quantity: qty})
		}
		res := s.svc.Deliveries.RecordDay(r.Context(), date, entries)
		s.metrics.LedgerWrite("delivery", res.Saved+res.Cleared)
		if failed := invalid + len(res.Failed); failed > 0 {
			b.TriggerErrorNotification(fmt.Sprintf("Saved %d, cleared %d, %d entries rejected", res.Saved, res.Cleared, failed))
		} else {
			b.TriggerSuccessNotification(fmt.Sprintf("Saved %d deliveries for %s", res.Saved, date.Format("02 Jan")))
		}
	}

	view, err := s.daySheet(r, date)
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	s.respond(w, r, b, "day_sheet", view)
}

type paymentsView struct {
	Period    billing.Period
	Prev      billing.Period
	Next      billing.Period
	Rows      []services.PaymentRow
	Customers []core.Customer
	Received  float64
	Refunded  float64
	Today     core.Date
}

func (s *Server) payments(r *http.Request, p billing.Period) (paymentsView, error) {
	rows, err := s.svc.Payments.ForPeriod(r.Context(), p)
	if err != nil {
		return paymentsView{}, err
	}
	cs, err := s.svc.Customers.List(r.Context())
	if err != nil {
		return paymentsView{}, err
	}
	view := paymentsView{Period: p, Prev: p.Prev(), Next: p.Next(), Rows: rows, Customers: cs, Today: core.DateOf(s.now())}
	for _, row := range rows {
		if row.Payment.IsRefund() {
			view.Refunded -= row.Payment.Amount
		} else {
			view.Received += row.Payment.Amount
		}
	}
	return view, nil
}

func (s *Server) handlePayments(w http.ResponseWriter, r *http.Request) {
	p, err := ParsePeriod(r.URL.Query(), s.now())
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	view, err := s.payments(r, p)
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	if isHTMX(r) {
		s.render(w, r, "payments_table", view)
		return
	}
	s.render(w, r, "payments.html", s.page(r, "Payments", "payments", p, view))
}

func (s *Server) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.fail(w, r, applog.OpCreate, errBadForm)
		return
	}
	form := readPaymentForm(r.PostForm)
	if err := s.forms.Check(form); err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	pay, err := form.payment()
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	pay, err = s.svc.Payments.Record(r.Context(), pay)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	s.metrics.LedgerWrite("payment", 1)
	s.slog.LogPaymentRecorded(r.Context(), pay.CustomerID, pay.Date.String(), pay.Amount)

	p := billing.PeriodOf(pay.Date)
	view, err := s.payments(r, p)
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	msg := "Payment of " + core.FormatRupees(pay.Amount) + " recorded"
	if pay.IsRefund() {
		msg = "Refund of " + core.FormatRupees(-pay.Amount) + " recorded"
	}
	b := NewHTMXResponse().
		TriggerLedgerChanged(p.Year, int(p.Month)).
		TriggerFormReset().
		TriggerSuccessNotification(msg)
	s.respond(w, r, b, "payments_table", view)
}

func (s *Server) handleDeletePayment(w http.ResponseWriter, r *http.Request) {
	pay, err := s.svc.Payments.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	s.metrics.LedgerWrite("payment_delete", 1)
	p := billing.PeriodOf(pay.Date)
	NewHTMXResponse().
		TriggerLedgerChanged(p.Year, int(p.Month)).
		TriggerSuccessNotification("Payment deleted").
		Write(w)
}

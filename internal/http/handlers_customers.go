package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"ssfarm/internal/billing"
	"ssfarm/internal/calendar"
	"ssfarm/internal/core"
	applog "ssfarm/internal/log"
)

type customersView struct {
	Customers []core.Customer
	Today     core.Date
}

func (s *Server) customers(r *http.Request) (customersView, error) {
	cs, err := s.svc.Customers.List(r.Context())
	if err != nil {
		return customersView{}, err
	}
	return customersView{Customers: cs, Today: core.DateOf(s.now())}, nil
}

func (s *Server) handleCustomers(w http.ResponseWriter, r *http.Request) {
	view, err := s.customers(r)
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	s.render(w, r, "customers.html", s.page(r, "Customers", "customers", billing.PeriodOf(view.Today), view))
}

// customersChanged re-renders the customers table after a mutation.
func (s *Server) customersChanged(w http.ResponseWriter, r *http.Request, message string) {
	view, err := s.customers(r)
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	b := NewHTMXResponse().
		TriggerCustomersChanged().
		TriggerFormReset().
		TriggerSuccessNotification(message)
	s.respond(w, r, b, "customers_table", view)
}

func (s *Server) bindCustomer(r *http.Request) (core.Customer, error) {
	if err := r.ParseForm(); err != nil {
		return core.Customer{}, errBadForm
	}
	form := readCustomerForm(r.PostForm)
	if err := s.forms.Check(form); err != nil {
		return core.Customer{}, err
	}
	return form.customer()
}

func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := s.bindCustomer(r)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	c, err = s.svc.Customers.Create(r.Context(), c)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	s.customersChanged(w, r, "Customer "+c.Name+" added")
}

func (s *Server) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := s.bindCustomer(r)
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	c.ID = chi.URLParam(r, "id")
	c, err = s.svc.Customers.Update(r.Context(), c)
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	s.customersChanged(w, r, "Customer "+c.Name+" updated")
}

func (s *Server) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Customers.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	s.customersChanged(w, r, "Customer deleted")
}

func (s *Server) handleSetBalance(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	form := readBalanceForm(r.PostForm)
	if err := s.forms.Check(form); err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	amount, asOf, err := form.snapshot()
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	c, err := s.svc.Customers.SetBalanceSnapshot(r.Context(), chi.URLParam(r, "id"), amount, asOf)
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	msg := "Opening balance cleared for " + c.Name
	if amount != nil {
		msg = "Opening balance saved for " + c.Name
	}
	s.customersChanged(w, r, msg)
}

type calendarView struct {
	Customer core.Customer
	Month    calendar.Month
	Period   billing.Period
}

// handleCalendar serves a customer's delivery grid, as a partial for HTMX
// month navigation and as a full page otherwise.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	p, err := ParsePeriod(r.URL.Query(), s.now())
	if err != nil {
		s.fail(w, r, "calendar", err)
		return
	}
	id := chi.URLParam(r, "id")
	c, err := s.svc.Customers.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, "calendar", err)
		return
	}
	grid, err := s.svc.Deliveries.Calendar(r.Context(), id, p)
	if err != nil {
		s.fail(w, r, "calendar", err)
		return
	}
	view := calendarView{Customer: c, Month: grid, Period: p}
	if isHTMX(r) {
		s.render(w, r, "calendar", view)
		return
	}
	s.render(w, r, "calendar.html", s.page(r, c.Name+" deliveries", "customers", p, view))
}

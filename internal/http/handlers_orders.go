package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"ssfarm/internal/billing"
	"ssfarm/internal/core"
	applog "ssfarm/internal/log"
	"ssfarm/internal/services"
)

type ordersView struct {
	Status string
	Orders []services.OrderRow
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("status")
	var status core.OrderStatus
	switch filter {
	case "all":
	case "":
		filter, status = string(core.OrderPending), core.OrderPending
	default:
		status = core.OrderStatus(filter)
		if !status.Valid() {
			s.fail(w, r, applog.OpList, core.ErrInvalidStatus)
			return
		}
	}
	orders, err := s.svc.Orders.List(r.Context(), status)
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	view := ordersView{Status: filter, Orders: orders}
	if isHTMX(r) {
		s.render(w, r, "orders_table", view)
		return
	}
	s.render(w, r, "orders.html", s.page(r, "Orders", "orders", billing.PeriodOf(core.DateOf(s.now())), view))
}

// Decided rows are removed by the client; the body stays empty.
func (s *Server) handleConfirmOrder(w http.ResponseWriter, r *http.Request) {
	o, err := s.svc.Orders.Confirm(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, "confirm", err)
		return
	}
	s.metrics.LedgerWrite("delivery", 1)
	s.slog.LogDeliveryRecorded(r.Context(), o.CustomerID, o.Date.String(), o.Quantity)
	NewHTMXResponse().
		TriggerOrdersChanged().
		TriggerLedgerChanged(o.Date.Year(), int(o.Date.Month())).
		TriggerSuccessNotification("Order confirmed").
		Write(w)
}

func (s *Server) handleRejectOrder(w http.ResponseWriter, r *http.Request) {
	if _, err := s.svc.Orders.Reject(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, "reject", err)
		return
	}
	NewHTMXResponse().
		TriggerOrdersChanged().
		TriggerSuccessNotification("Order rejected").
		Write(w)
}

type orderResponse struct {
	ID         string  `json:"id"`
	CustomerID string  `json:"customer_id"`
	Date       string  `json:"date"`
	Quantity   float64 `json:"quantity"`
	Status     string  `json:"status"`
}

// handleSubmitOrder is the public order endpoint. It accepts JSON or a
// form-encoded body.
func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	body := NewRequestBodyParser(r)
	if err := body.Parse(); err != nil {
		s.failJSON(w, r, "submit_order", errBadForm)
		return
	}
	req := orderRequest{
		CustomerID: sanitizeInput(body.Get("customer_id")),
		Date:       sanitizeInput(body.Get("date")),
		Quantity:   sanitizeInput(body.Get("quantity")),
	}
	if err := s.forms.Check(req); err != nil {
		s.failJSON(w, r, "submit_order", err)
		return
	}
	date, err := core.ParseDate(req.Date)
	if err != nil {
		s.failJSON(w, r, "submit_order", err)
		return
	}
	qty, err := core.ParseQuantity(req.Quantity)
	if err != nil || qty <= 0 {
		s.failJSON(w, r, "submit_order", core.ErrInvalidQuantity)
		return
	}
	o, err := s.svc.Orders.Submit(r.Context(), req.CustomerID, date, qty)
	if err != nil {
		s.failJSON(w, r, "submit_order", err)
		return
	}
	s.metrics.LedgerWrite("order", 1)
	writeJSON(w, http.StatusCreated, orderResponse{
		ID:         o.ID,
		CustomerID: o.CustomerID,
		Date:       o.Date.String(),
		Quantity:   o.Quantity,
		Status:     string(o.Status),
	})
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ssfarm/internal/billing"
	"ssfarm/internal/calendar"
	"ssfarm/internal/core"
	applog "ssfarm/internal/log"
	"ssfarm/internal/ports"
)

type (
	// DayEntry is one customer's quantity on the daily entry sheet.
	DayEntry struct {
		CustomerID string
		Quantity   float64
	}

	DayResult struct {
		Saved   int
		Cleared int
		Failed  map[string]error
	}

	// DaySheetRow pre-fills the daily entry form.
	DaySheetRow struct {
		Customer core.Customer
		Quantity float64
		Recorded bool
	}
)

type DeliveryService struct {
	store  ports.Store
	inval  Invalidator
	now    func() time.Time
	logger *applog.Logger
}

func NewDeliveryService(store ports.Store, inval Invalidator) *DeliveryService {
	return &DeliveryService{
		store:  store,
		inval:  inval,
		now:    time.Now,
		logger: applog.ForComponent(applog.ComponentLedger),
	}
}

// Record upserts the delivery for (customerID, date). A zero quantity
// removes the record, since a day without milk has no row.
func (s *DeliveryService) Record(ctx context.Context, customerID string, date core.Date, qty float64) error {
	if err := s.record(ctx, customerID, date, qty); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *DeliveryService) record(ctx context.Context, customerID string, date core.Date, qty float64) error {
	d := core.Delivery{ID: uuid.NewString(), CustomerID: customerID, Date: date, Quantity: qty}
	if err := d.Validate(); err != nil {
		return err
	}
	if qty == 0 {
		if err := s.store.DeleteDelivery(ctx, customerID, date); err != nil {
			return fmt.Errorf("delete delivery: %w", err)
		}
		s.logger.DebugContext(ctx, "Delivery cleared", applog.FieldCustomerID, customerID, applog.FieldDate, date.String())
		return nil
	}
	if err := s.store.UpsertDelivery(ctx, d); err != nil {
		return fmt.Errorf("upsert delivery: %w", err)
	}
	s.logger.InfoContext(ctx, "Delivery recorded",
		applog.FieldCustomerID, customerID,
		applog.FieldDate, date.String(),
		applog.FieldQuantity, qty)
	return nil
}

// RecordDay saves a whole day's entry sheet. Entries fail independently;
// the cache is invalidated once at the end.
func (s *DeliveryService) RecordDay(ctx context.Context, date core.Date, entries []DayEntry) DayResult {
	res := DayResult{Failed: map[string]error{}}
	for _, e := range entries {
		if err := s.record(ctx, e.CustomerID, date, e.Quantity); err != nil {
			res.Failed[e.CustomerID] = err
			continue
		}
		if e.Quantity == 0 {
			res.Cleared++
		} else {
			res.Saved++
		}
	}
	if res.Saved+res.Cleared > 0 {
		s.invalidate(ctx)
	}
	s.logger.InfoContext(ctx, "Day sheet saved",
		applog.FieldDate, date.String(),
		applog.FieldCount, res.Saved,
		"cleared", res.Cleared,
		"failed", len(res.Failed))
	return res
}

// DaySheet lists active customers with their quantity for date. Customers
// without a record are pre-filled with their default quantity.
func (s *DeliveryService) DaySheet(ctx context.Context, date core.Date) ([]DaySheetRow, error) {
	customers, err := s.store.ListCustomers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	ds, err := s.store.ListDeliveriesBetween(ctx, date, date)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	byCustomer := make(map[string]float64, len(ds))
	for _, d := range ds {
		byCustomer[d.CustomerID] = d.Quantity
	}

	var rows []DaySheetRow
	for _, c := range customers {
		q, ok := byCustomer[c.ID]
		if c.Status != core.CustomerActive && !ok {
			continue
		}
		if !ok {
			q = c.DefaultQty
		}
		rows = append(rows, DaySheetRow{Customer: c, Quantity: q, Recorded: ok})
	}
	return rows, nil
}

// Calendar builds the month grid of one customer's deliveries.
func (s *DeliveryService) Calendar(ctx context.Context, customerID string, p billing.Period) (calendar.Month, error) {
	if _, err := s.store.GetCustomer(ctx, customerID); err != nil {
		return calendar.Month{}, fmt.Errorf("get customer: %w", err)
	}
	start, end := p.Bounds()
	// Include the padding days shown around the month.
	ds, err := s.store.ListDeliveriesBetween(ctx, start.AddDays(-6), end.AddDays(6))
	if err != nil {
		return calendar.Month{}, fmt.Errorf("list deliveries: %w", err)
	}
	own := ds[:0]
	for _, d := range ds {
		if d.CustomerID == customerID {
			own = append(own, d)
		}
	}
	return calendar.Build(p.Year, p.Month, calendar.Quantities(own), core.DateOf(s.now())), nil
}

// Between lists all deliveries in [from, to].
func (s *DeliveryService) Between(ctx context.Context, from, to core.Date) ([]core.Delivery, error) {
	if to.Before(from) {
		return nil, errors.New("range end before start")
	}
	ds, err := s.store.ListDeliveriesBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	return ds, nil
}

func (s *DeliveryService) invalidate(ctx context.Context) {
	if s.inval != nil {
		s.inval.Invalidate(ctx)
	}
}

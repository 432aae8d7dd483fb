package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ssfarm/internal/core"
	applog "ssfarm/internal/log"
	"ssfarm/internal/ports"
)

var (
	ErrOrderNotPending   = errors.New("order is not pending")
	ErrOrderInPast       = errors.New("order date is in the past")
	ErrDuplicateOrder    = errors.New("an order for this day already exists")
	ErrCustomerNotActive = errors.New("customer is not active")
)

// OrderRow is an order with its customer for listings.
type OrderRow struct {
	Order    core.Order
	Customer core.Customer
}

type OrderService struct {
	store  ports.Store
	inval  Invalidator
	now    func() time.Time
	logger *applog.Logger
}

func NewOrderService(store ports.Store, inval Invalidator) *OrderService {
	return &OrderService{
		store:  store,
		inval:  inval,
		now:    time.Now,
		logger: applog.ForComponent(applog.ComponentOrders),
	}
}

// Submit records a pending order from the public order form. Orders are
// accepted for today onwards, one per customer and day.
func (s *OrderService) Submit(ctx context.Context, customerID string, date core.Date, qty float64) (core.Order, error) {
	c, err := s.store.GetCustomer(ctx, customerID)
	if err != nil {
		return core.Order{}, fmt.Errorf("get customer: %w", err)
	}
	if c.Status != core.CustomerActive {
		return core.Order{}, ErrCustomerNotActive
	}
	if date.Before(today(s.now)) {
		return core.Order{}, ErrOrderInPast
	}

	o := core.Order{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		Date:       date,
		Quantity:   qty,
		Status:     core.OrderPending,
		CreatedAt:  s.now().UTC(),
	}
	if err := o.Validate(); err != nil {
		return core.Order{}, err
	}
	exists, err := s.store.HasOrder(ctx, customerID, date)
	if err != nil {
		return core.Order{}, fmt.Errorf("check order: %w", err)
	}
	if exists {
		return core.Order{}, ErrDuplicateOrder
	}
	if err := s.store.CreateOrder(ctx, o); err != nil {
		return core.Order{}, fmt.Errorf("create order: %w", err)
	}
	s.logger.InfoContext(ctx, "Order submitted",
		applog.FieldOrderID, o.ID,
		applog.FieldCustomerID, customerID,
		applog.FieldDate, date.String(),
		applog.FieldQuantity, qty)
	return o, nil
}

// Pending lists orders awaiting a decision, oldest delivery date first.
func (s *OrderService) Pending(ctx context.Context) ([]OrderRow, error) {
	return s.List(ctx, core.OrderPending)
}

// List returns orders with status, or all orders when status is empty.
func (s *OrderService) List(ctx context.Context, status core.OrderStatus) ([]OrderRow, error) {
	orders, err := s.store.ListOrders(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	cs, err := s.store.ListCustomers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	byID := make(map[string]core.Customer, len(cs))
	for _, c := range cs {
		byID[c.ID] = c
	}
	out := make([]OrderRow, 0, len(orders))
	for _, o := range orders {
		out = append(out, OrderRow{Order: o, Customer: byID[o.CustomerID]})
	}
	return out, nil
}

// Confirm turns a pending order into a delivery for its date.
func (s *OrderService) Confirm(ctx context.Context, id string) (core.Order, error) {
	o, err := s.pending(ctx, id)
	if err != nil {
		return core.Order{}, err
	}
	d := core.Delivery{ID: uuid.NewString(), CustomerID: o.CustomerID, Date: o.Date, Quantity: o.Quantity}
	if err := s.store.UpsertDelivery(ctx, d); err != nil {
		return core.Order{}, fmt.Errorf("upsert delivery: %w", err)
	}
	if err := s.store.SetOrderStatus(ctx, id, core.OrderConfirmed); err != nil {
		return core.Order{}, fmt.Errorf("confirm order: %w", err)
	}
	if s.inval != nil {
		s.inval.Invalidate(ctx)
	}
	o.Status = core.OrderConfirmed
	s.logger.InfoContext(ctx, "Order confirmed", applog.FieldOrderID, id, applog.FieldCustomerID, o.CustomerID)
	return o, nil
}

func (s *OrderService) Reject(ctx context.Context, id string) (core.Order, error) {
	o, err := s.pending(ctx, id)
	if err != nil {
		return core.Order{}, err
	}
	if err := s.store.SetOrderStatus(ctx, id, core.OrderRejected); err != nil {
		return core.Order{}, fmt.Errorf("reject order: %w", err)
	}
	o.Status = core.OrderRejected
	s.logger.InfoContext(ctx, "Order rejected", applog.FieldOrderID, id, applog.FieldCustomerID, o.CustomerID)
	return o, nil
}

func (s *OrderService) pending(ctx context.Context, id string) (core.Order, error) {
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return core.Order{}, fmt.Errorf("get order: %w", err)
	}
	if o.Status != core.OrderPending {
		return core.Order{}, ErrOrderNotPending
	}
	return o, nil
}

// today is the current UTC day.
func today(now func() time.Time) core.Date {
	return core.DateOf(now())
}

package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ssfarm/internal/core"
	applog "ssfarm/internal/log"
	"ssfarm/internal/ports"
)

type CustomerService struct {
	store  ports.CustomerStore
	inval  Invalidator
	now    func() time.Time
	logger *applog.Logger
}

// NewCustomerService creates a customer service; inval may be nil.
func NewCustomerService(store ports.CustomerStore, inval Invalidator) *CustomerService {
	return &CustomerService{
		store:  store,
		inval:  inval,
		now:    time.Now,
		logger: applog.ForComponent(applog.ComponentLedger),
	}
}

// Create assigns an ID when missing, defaults the status to active and stores c.
func (s *CustomerService) Create(ctx context.Context, c core.Customer) (core.Customer, error) {
	c = normalizeCustomer(c)
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = core.CustomerActive
	}
	c.CreatedAt = s.now().UTC()
	if err := c.Validate(); err != nil {
		return core.Customer{}, err
	}
	if err := s.store.CreateCustomer(ctx, c); err != nil {
		return core.Customer{}, fmt.Errorf("create customer: %w", err)
	}
	s.invalidate(ctx)
	s.logger.InfoContext(ctx, "Customer created", applog.FieldCustomerID, c.ID, applog.FieldOperation, applog.OpCreate)
	return c, nil
}

// Update replaces the editable fields of an existing customer. The balance
// snapshot is kept as stored; use SetBalanceSnapshot to change it.
func (s *CustomerService) Update(ctx context.Context, c core.Customer) (core.Customer, error) {
	existing, err := s.store.GetCustomer(ctx, c.ID)
	if err != nil {
		return core.Customer{}, fmt.Errorf("get customer: %w", err)
	}
	c = normalizeCustomer(c)
	c.CreatedAt = existing.CreatedAt
	c.PreviousBalance, c.BalanceAsOf = existing.PreviousBalance, existing.BalanceAsOf
	if c.Status == "" {
		c.Status = existing.Status
	}
	if err := c.Validate(); err != nil {
		return core.Customer{}, err
	}
	if err := s.store.UpdateCustomer(ctx, c); err != nil {
		return core.Customer{}, fmt.Errorf("update customer: %w", err)
	}
	s.invalidate(ctx)
	return c, nil
}

// SetBalanceSnapshot records an operator-entered balance as of a date.
// A nil amount clears the snapshot.
func (s *CustomerService) SetBalanceSnapshot(ctx context.Context, id string, amount *float64, asOf core.Date) (core.Customer, error) {
	c, err := s.store.GetCustomer(ctx, id)
	if err != nil {
		return core.Customer{}, fmt.Errorf("get customer: %w", err)
	}
	if amount == nil {
		c.PreviousBalance, c.BalanceAsOf = nil, nil
	} else {
		if err := asOf.Validate(); err != nil {
			return core.Customer{}, err
		}
		v, d := *amount, asOf
		c.PreviousBalance, c.BalanceAsOf = &v, &d
	}
	if err := s.store.UpdateCustomer(ctx, c); err != nil {
		return core.Customer{}, fmt.Errorf("update customer: %w", err)
	}
	s.invalidate(ctx)
	s.logger.InfoContext(ctx, "Balance snapshot updated", applog.FieldCustomerID, id, applog.FieldDate, asOf.String())
	return c, nil
}

func (s *CustomerService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteCustomer(ctx, id); err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	s.invalidate(ctx)
	s.logger.InfoContext(ctx, "Customer deleted", applog.FieldCustomerID, id, applog.FieldOperation, applog.OpDelete)
	return nil
}

func (s *CustomerService) Get(ctx context.Context, id string) (core.Customer, error) {
	c, err := s.store.GetCustomer(ctx, id)
	if err != nil {
		return core.Customer{}, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

func (s *CustomerService) List(ctx context.Context) ([]core.Customer, error) {
	cs, err := s.store.ListCustomers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	return cs, nil
}

// Active lists customers with active status.
func (s *CustomerService) Active(ctx context.Context) ([]core.Customer, error) {
	cs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := cs[:0]
	for _, c := range cs {
		if c.Status == core.CustomerActive {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *CustomerService) invalidate(ctx context.Context) {
	if s.inval != nil {
		s.inval.Invalidate(ctx)
	}
}

func normalizeCustomer(c core.Customer) core.Customer {
	c.ID = strings.TrimSpace(c.ID)
	c.Name = strings.TrimSpace(c.Name)
	c.Address = strings.TrimSpace(c.Address)
	c.Phone = strings.TrimSpace(c.Phone)
	return c
}

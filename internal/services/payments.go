package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"ssfarm/internal/billing"
	"ssfarm/internal/core"
	applog "ssfarm/internal/log"
	"ssfarm/internal/ports"
)

// PaymentRow is a payment with its customer's name for listings.
type PaymentRow struct {
	Payment      core.Payment
	CustomerName string
}

type PaymentService struct {
	store  ports.Store
	inval  Invalidator
	logger *applog.Logger
}

func NewPaymentService(store ports.Store, inval Invalidator) *PaymentService {
	return &PaymentService{
		store:  store,
		inval:  inval,
		logger: applog.ForComponent(applog.ComponentLedger),
	}
}

// Record stores a payment. Negative amounts are refunds.
func (s *PaymentService) Record(ctx context.Context, p core.Payment) (core.Payment, error) {
	p.ID = uuid.NewString()
	p.Note = strings.TrimSpace(p.Note)
	if err := p.Validate(); err != nil {
		return core.Payment{}, err
	}
	if err := s.store.CreatePayment(ctx, p); err != nil {
		return core.Payment{}, fmt.Errorf("create payment: %w", err)
	}
	s.invalidate(ctx)
	s.logger.InfoContext(ctx, "Payment recorded",
		applog.FieldCustomerID, p.CustomerID,
		applog.FieldDate, p.Date.String(),
		applog.FieldAmount, p.Amount,
		"refund", p.IsRefund())
	return p, nil
}

func (s *PaymentService) Delete(ctx context.Context, id string) (core.Payment, error) {
	p, err := s.store.DeletePayment(ctx, id)
	if err != nil {
		return core.Payment{}, fmt.Errorf("delete payment: %w", err)
	}
	s.invalidate(ctx)
	s.logger.InfoContext(ctx, "Payment deleted", applog.FieldCustomerID, p.CustomerID, applog.FieldAmount, p.Amount)
	return p, nil
}

// ForPeriod lists the month's payments, newest first, with customer names.
func (s *PaymentService) ForPeriod(ctx context.Context, p billing.Period) ([]PaymentRow, error) {
	start, end := p.Bounds()
	ps, err := s.store.ListPaymentsBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	names, err := customerNames(ctx, s.store)
	if err != nil {
		return nil, err
	}
	out := make([]PaymentRow, 0, len(ps))
	for i := len(ps) - 1; i >= 0; i-- {
		out = append(out, PaymentRow{Payment: ps[i], CustomerName: names[ps[i].CustomerID]})
	}
	return out, nil
}

func (s *PaymentService) invalidate(ctx context.Context) {
	if s.inval != nil {
		s.inval.Invalidate(ctx)
	}
}

// customerNames maps IDs to names for listings.
func customerNames(ctx context.Context, store ports.CustomerStore) (map[string]string, error) {
	cs, err := store.ListCustomers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	out := make(map[string]string, len(cs))
	for _, c := range cs {
		out[c.ID] = c.Name
	}
	return out, nil
}

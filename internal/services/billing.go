// Package services provides business logic and orchestration services.
package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"ssfarm/internal/billing"
	"ssfarm/internal/cache"
	"ssfarm/internal/core"
	applog "ssfarm/internal/log"
	"ssfarm/internal/ports"
)

const defaultConcurrency = 8

type (
	// CustomerBill is one row of the monthly bills table.
	CustomerBill struct {
		Customer core.Customer
		Summary  billing.BillSummary
		Status   billing.PaymentStatus
		Visible  bool
	}

	// BillDetail is a single customer's bill with its line items.
	BillDetail struct {
		Customer core.Customer
		Period   billing.Period
		Summary  billing.BillSummary
		Items    []billing.LineItem
		Payments []core.Payment
	}

	MonthTotals struct {
		Customers int
		Quantity  float64
		Amount    float64
		Paid      float64
		Closing   float64
	}

	StatusReport struct {
		Period      billing.Period
		Rows        []CustomerBill
		Counts      map[billing.PaymentStatus]int
		Outstanding float64
	}

	// Invalidator drops cached bills after ledger changes.
	Invalidator interface {
		Invalidate(ctx context.Context)
	}
)

// BillingService reads customer ledgers from the store and runs the
// calculator over them.
type BillingService struct {
	store       ports.Store
	cache       *cache.BillCache[[]CustomerBill]
	group       singleflight.Group
	concurrency int
	logger      *applog.Logger
}

// NewBillingService creates a billing service. A nil bills cache gets a
// process-local one.
func NewBillingService(store ports.Store, bills *cache.BillCache[[]CustomerBill], concurrency int) *BillingService {
	if bills == nil {
		bills = cache.NewBillCache[[]CustomerBill](64, 5*time.Minute, nil)
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &BillingService{
		store:       store,
		cache:       bills,
		concurrency: concurrency,
		logger:      applog.ForComponent(applog.ComponentBilling),
	}
}

// Snapshot loads a customer's records up to the end of p.
func (s *BillingService) Snapshot(ctx context.Context, customerID string, p billing.Period) (billing.Snapshot, error) {
	c, err := s.store.GetCustomer(ctx, customerID)
	if err != nil {
		return billing.Snapshot{}, fmt.Errorf("get customer: %w", err)
	}
	return s.snapshotOf(ctx, c, p)
}

func (s *BillingService) snapshotOf(ctx context.Context, c core.Customer, p billing.Period) (billing.Snapshot, error) {
	_, end := p.Bounds()
	deliveries, err := s.store.ListDeliveries(ctx, c.ID, end)
	if err != nil {
		return billing.Snapshot{}, fmt.Errorf("list deliveries: %w", err)
	}
	payments, err := s.store.ListPayments(ctx, c.ID, end)
	if err != nil {
		return billing.Snapshot{}, fmt.Errorf("list payments: %w", err)
	}
	return billing.Snapshot{Customer: c, Deliveries: deliveries, Payments: payments}, nil
}

// Bill computes one customer's bill for p.
func (s *BillingService) Bill(ctx context.Context, customerID string, p billing.Period) (BillDetail, error) {
	snap, err := s.Snapshot(ctx, customerID, p)
	if err != nil {
		return BillDetail{}, err
	}
	summary := snap.Bill(p)
	s.logger.DebugContext(ctx, "Computed bill",
		applog.FieldCustomerID, customerID,
		applog.FieldPeriod, p.String(),
		applog.FieldClosing, summary.ClosingBalance)
	return BillDetail{
		Customer: snap.Customer,
		Period:   p,
		Summary:  summary,
		Items:    snap.LineItems(p),
		Payments: snap.PeriodPayments(p),
	}, nil
}

// MonthlyBills returns every customer's bill for p, ordered like
// ListCustomers. Hidden customers are dropped unless includeHidden is set.
func (s *BillingService) MonthlyBills(ctx context.Context, p billing.Period, includeHidden bool) ([]CustomerBill, error) {
	key := p.String()
	flight := key + "@" + strconv.FormatInt(s.cache.Generation(), 10)
	v, err, _ := s.group.Do(flight, func() (any, error) {
		return s.cache.Fetch(ctx, key, func(ctx context.Context) ([]CustomerBill, error) {
			return s.computeAll(ctx, p)
		})
	})
	if err != nil {
		return nil, err
	}
	all := v.([]CustomerBill)
	if includeHidden {
		return append([]CustomerBill(nil), all...), nil
	}
	out := make([]CustomerBill, 0, len(all))
	for _, b := range all {
		if b.Visible {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *BillingService) computeAll(ctx context.Context, p billing.Period) ([]CustomerBill, error) {
	start := time.Now()
	customers, err := s.store.ListCustomers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}

	out := make([]CustomerBill, len(customers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, c := range customers {
		i, c := i, c
		g.Go(func() error {
			snap, err := s.snapshotOf(gctx, c, p)
			if err != nil {
				return fmt.Errorf("customer %s: %w", c.ID, err)
			}
			summary := snap.Bill(p)
			out[i] = CustomerBill{
				Customer: c,
				Summary:  summary,
				Status:   summary.Status(),
				Visible:  billing.IsVisible(c.Status, summary),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("compute monthly bills: %w", err)
	}

	s.logger.InfoContext(ctx, "Computed monthly bills",
		applog.FieldPeriod, p.String(),
		applog.FieldCount, len(out),
		applog.FieldDuration, time.Since(start).Milliseconds())
	return out, nil
}

// Totals sums the rows of a bills table.
func Totals(bills []CustomerBill) MonthTotals {
	var t MonthTotals
	for _, b := range bills {
		t.Customers++
		t.Quantity += b.Summary.PeriodDeliveryQuantity
		t.Amount += b.Summary.PeriodDeliveryAmount
		t.Paid += b.Summary.PeriodPaymentTotal
		t.Closing += b.Summary.ClosingBalance
	}
	return t
}

// StatusView groups the month's visible customers by payment status,
// largest pending amounts first within each status.
func (s *BillingService) StatusView(ctx context.Context, p billing.Period) (StatusReport, error) {
	bills, err := s.MonthlyBills(ctx, p, false)
	if err != nil {
		return StatusReport{}, err
	}
	r := StatusReport{Period: p, Rows: bills, Counts: map[billing.PaymentStatus]int{}}
	for _, b := range bills {
		r.Counts[b.Status]++
		if b.Summary.ClosingBalance > billing.Epsilon {
			r.Outstanding += b.Summary.ClosingBalance
		}
	}
	sort.SliceStable(r.Rows, func(i, j int) bool {
		a, b := r.Rows[i], r.Rows[j]
		if statusRank(a.Status) != statusRank(b.Status) {
			return statusRank(a.Status) < statusRank(b.Status)
		}
		return a.Summary.Pending() > b.Summary.Pending()
	})
	return r, nil
}

func statusRank(s billing.PaymentStatus) int {
	switch s {
	case billing.StatusPending:
		return 0
	case billing.StatusPartiallyPaid:
		return 1
	case billing.StatusPaid:
		return 2
	case billing.StatusOverpaid:
		return 3
	default:
		return 4
	}
}

// Invalidate drops all cached months. Called after any ledger or customer change.
func (s *BillingService) Invalidate(ctx context.Context) {
	s.cache.Invalidate(ctx)
}

// InvalidateLocal drops this instance's cached months after a remote bump.
func (s *BillingService) InvalidateLocal() {
	s.cache.InvalidateLocal()
}

// CachedMonths is the number of entries in the local bill cache.
func (s *BillingService) CachedMonths() int {
	return s.cache.Local().Size()
}

// CacheStats reports hit and miss counts for /metrics.
func (s *BillingService) CacheStats() (hits, misses int64) {
	return s.cache.Stats()
}

package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"ssfarm/internal/core"
	applog "ssfarm/internal/log"
	"ssfarm/internal/ports"
)

// OrderScheduler creates next-day pending orders from customers' default
// quantities so the morning round only needs confirming.
type OrderScheduler struct {
	store    ports.Store
	interval time.Duration
	logger   *applog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewOrderScheduler(store ports.Store, interval time.Duration) *OrderScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &OrderScheduler{
		store:    store,
		interval: interval,
		logger:   applog.ForComponent(applog.ComponentScheduler),
	}
}

// CreateNextDayOrders adds a pending order dated the day after now for every
// active customer with a default quantity, unless an order or a delivery
// already exists for that day. Returns the number of orders created.
func (p *OrderScheduler) CreateNextDayOrders(ctx context.Context, now time.Time) (int, error) {
	if p.store == nil {
		return 0, fmt.Errorf("scheduler not properly initialized")
	}
	target := core.DateOf(now).AddDays(1)

	customers, err := p.store.ListCustomers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list customers: %w", err)
	}
	delivered, err := p.store.ListDeliveriesBetween(ctx, target, target)
	if err != nil {
		return 0, fmt.Errorf("list deliveries: %w", err)
	}
	hasDelivery := make(map[string]bool, len(delivered))
	for _, d := range delivered {
		hasDelivery[d.CustomerID] = true
	}

	p.logger.InfoContext(ctx, "Scheduling next-day orders",
		applog.FieldDate, target.String(),
		"customers", len(customers))

	created := 0
	for _, c := range customers {
		if c.Status != core.CustomerActive || c.DefaultQty <= 0 || hasDelivery[c.ID] {
			continue
		}

		exists, err := p.store.HasOrder(ctx, c.ID, target)
		if err != nil {
			p.logger.ErrorContext(ctx, "Failed to check existing order",
				applog.FieldCustomerID, c.ID,
				applog.FieldError, err)
			continue
		}
		if exists {
			continue
		}

		o := core.Order{
			ID:         uuid.NewString(),
			CustomerID: c.ID,
			Date:       target,
			Quantity:   c.DefaultQty,
			Status:     core.OrderPending,
			CreatedAt:  now.UTC(),
		}
		if err := p.store.CreateOrder(ctx, o); err != nil {
			p.logger.ErrorContext(ctx, "Failed to create scheduled order",
				applog.FieldCustomerID, c.ID,
				applog.FieldError, err)
			continue
		}
		created++
	}

	p.logger.InfoContext(ctx, "Next-day order scheduling complete",
		applog.FieldDate, target.String(),
		applog.FieldCount, created)
	return created, nil
}

// Start runs CreateNextDayOrders now and then every interval until Stop or
// ctx cancellation. Returns an error if already running.
func (p *OrderScheduler) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("order scheduler is already running")
	}
	p.running = true
	stop, done := make(chan struct{}), make(chan struct{})
	p.stopCh, p.doneCh = stop, done
	p.mu.Unlock()

	go p.runLoop(ctx, stop, done)

	p.logger.InfoContext(ctx, "Order scheduler started", "interval", p.interval)
	return nil
}

// Stop signals the loop and waits for it to exit.
func (p *OrderScheduler) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	stop, done := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stop)

	select {
	case <-done:
		p.logger.InfoContext(ctx, "Order scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Order scheduler stop timed out")
		return ctx.Err()
	}
}

func (p *OrderScheduler) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *OrderScheduler) runLoop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *OrderScheduler) tick(ctx context.Context) {
	if _, err := p.CreateNextDayOrders(ctx, time.Now()); err != nil {
		p.logger.ErrorContext(ctx, "Scheduled order run failed", applog.FieldError, err)
	}
}

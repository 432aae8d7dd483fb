// Package worker consumes queued bill exports and share events.
package worker

import (
	"context"
	"fmt"
	"time"

	"ssfarm/internal/amqp"
	"ssfarm/internal/billing"
	"ssfarm/internal/core"
	applog "ssfarm/internal/log"
)

// SheetExporter writes one month of bills to the spreadsheet and returns
// the written range. Implemented by services.ExportService.
type SheetExporter interface {
	WriteSheet(ctx context.Context, p billing.Period) (string, error)
}

// ExportWorker handles bill.export and bill.shared messages and
// periodically re-exports recent months in case messages were lost.
type ExportWorker struct {
	exporter SheetExporter
	logger   *applog.Logger
	now      func() time.Time
}

func NewExportWorker(exporter SheetExporter) *ExportWorker {
	return &ExportWorker{
		exporter: exporter,
		logger:   applog.ForComponent(applog.ComponentWorker),
		now:      time.Now,
	}
}

// Handlers returns the AMQP handlers served by this worker.
func (w *ExportWorker) Handlers() amqp.Handlers {
	return amqp.Handlers{
		BillExport: w.HandleBillExport,
		BillShared: w.HandleBillShared,
	}
}

// HandleBillExport recomputes and writes the requested month.
func (w *ExportWorker) HandleBillExport(ctx context.Context, msg *amqp.BillExportMessage) error {
	p, err := billing.NewPeriod(msg.Year, msg.Month)
	if err != nil {
		// A bad period never succeeds; drop it instead of requeueing.
		w.logger.ErrorContext(ctx, "Discarding export with invalid period",
			"year", msg.Year,
			"month", msg.Month,
			applog.FieldError, err)
		return nil
	}

	w.logger.InfoContext(ctx, "Processing bill export",
		applog.FieldPeriod, p.String(),
		"requested_by", msg.RequestedBy,
		"queued_at", msg.Timestamp)

	rng, err := w.exporter.WriteSheet(ctx, p)
	if err != nil {
		return fmt.Errorf("export %s: %w", p, err)
	}
	w.logger.InfoContext(ctx, "Bill export written",
		applog.FieldPeriod, p.String(),
		"range", rng)
	return nil
}

// HandleBillShared records the share event in the worker log.
func (w *ExportWorker) HandleBillShared(ctx context.Context, msg *amqp.BillSharedMessage) error {
	w.logger.InfoContext(ctx, "Bill shared with customer",
		applog.FieldCustomerID, msg.CustomerID,
		applog.FieldPeriod, fmt.Sprintf("%04d-%02d", msg.Year, msg.Month),
		"channel", msg.Channel,
		"shared_at", msg.Timestamp)
	return nil
}

// ExportRecent writes the current and previous month. Late deliveries and
// payments usually land in one of the two.
func (w *ExportWorker) ExportRecent(ctx context.Context) error {
	current := billing.PeriodOf(core.DateOf(w.now()))
	var failed int
	for _, p := range []billing.Period{current.Prev(), current} {
		if _, err := w.exporter.WriteSheet(ctx, p); err != nil {
			w.logger.ErrorContext(ctx, "Periodic export failed",
				applog.FieldPeriod, p.String(),
				applog.FieldError, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("periodic export: %d of 2 months failed", failed)
	}
	return nil
}

// Run re-exports recent months every interval until ctx is done.
func (w *ExportWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.ExportRecent(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Periodic export incomplete", applog.FieldError, err)
			}
		}
	}
}

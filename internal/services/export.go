package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"ssfarm/internal/billing"
	"ssfarm/internal/core"
	"ssfarm/internal/export/csvio"
	applog "ssfarm/internal/log"
	"ssfarm/internal/ports"
	"ssfarm/internal/sheets"
)

var ErrExportUnavailable = errors.New("spreadsheet export is not configured")

// ExportPublisher queues spreadsheet exports; implemented by the AMQP client.
type ExportPublisher interface {
	PublishBillExport(ctx context.Context, year, month int, requestedBy string) error
}

// ExportService moves data in and out as CSV and spreadsheets.
type ExportService struct {
	store      ports.Store
	billing    *BillingService
	customers  *CustomerService
	deliveries *DeliveryService
	publisher  ExportPublisher
	sheet      sheets.BillSheetWriter
	logger     *applog.Logger
}

// NewExportService wires the export paths; publisher and sheet may be nil.
func NewExportService(store ports.Store, billingSvc *BillingService, customers *CustomerService, deliveries *DeliveryService, publisher ExportPublisher, sheet sheets.BillSheetWriter) *ExportService {
	return &ExportService{
		store:      store,
		billing:    billingSvc,
		customers:  customers,
		deliveries: deliveries,
		publisher:  publisher,
		sheet:      sheet,
		logger:     applog.ForComponent(applog.ComponentExport),
	}
}

// RequestSheetExport queues a spreadsheet export of p. Without a queue the
// sheet is written inline when a writer is configured.
func (s *ExportService) RequestSheetExport(ctx context.Context, p billing.Period, requestedBy string) (queued bool, err error) {
	if s.publisher != nil {
		if err := s.publisher.PublishBillExport(ctx, p.Year, int(p.Month), requestedBy); err != nil {
			return false, fmt.Errorf("queue export: %w", err)
		}
		return true, nil
	}
	if s.sheet == nil {
		return false, ErrExportUnavailable
	}
	if _, err := s.WriteSheet(ctx, p); err != nil {
		return false, err
	}
	return false, nil
}

// WriteSheet computes p's visible bills and writes them to the spreadsheet.
func (s *ExportService) WriteSheet(ctx context.Context, p billing.Period) (string, error) {
	if s.sheet == nil {
		return "", ErrExportUnavailable
	}
	bills, err := s.billing.MonthlyBills(ctx, p, false)
	if err != nil {
		return "", err
	}
	rows := make([]sheets.BillRow, 0, len(bills))
	for _, b := range bills {
		rows = append(rows, sheets.BillRow{
			CustomerName: b.Customer.Name,
			Phone:        b.Customer.Phone,
			Opening:      b.Summary.OpeningBalance,
			Quantity:     b.Summary.PeriodDeliveryQuantity,
			Amount:       b.Summary.PeriodDeliveryAmount,
			Paid:         b.Summary.PeriodPaymentTotal,
			Closing:      b.Summary.ClosingBalance,
			Status:       b.Status.Label(),
		})
	}
	rng, err := s.sheet.WriteMonth(ctx, p.String(), rows)
	if err != nil {
		return "", fmt.Errorf("write sheet: %w", err)
	}
	s.logger.InfoContext(ctx, "Exported bills to spreadsheet",
		applog.FieldPeriod, p.String(),
		applog.FieldCount, len(rows),
		"range", rng)
	return rng, nil
}

func (s *ExportService) BillsCSV(ctx context.Context, w io.Writer, p billing.Period) error {
	bills, err := s.billing.MonthlyBills(ctx, p, false)
	if err != nil {
		return err
	}
	lines := make([]csvio.BillLine, 0, len(bills))
	for _, b := range bills {
		lines = append(lines, csvio.BillLine{Customer: b.Customer, Summary: b.Summary})
	}
	return csvio.WriteBills(w, p, lines)
}

func (s *ExportService) CustomersCSV(ctx context.Context, w io.Writer) error {
	cs, err := s.store.ListCustomers(ctx)
	if err != nil {
		return fmt.Errorf("list customers: %w", err)
	}
	return csvio.WriteCustomers(w, cs)
}

func (s *ExportService) DeliveriesCSV(ctx context.Context, w io.Writer, from, to core.Date) error {
	ds, err := s.deliveries.Between(ctx, from, to)
	if err != nil {
		return err
	}
	names, err := customerNames(ctx, s.store)
	if err != nil {
		return err
	}
	return csvio.WriteDeliveries(w, ds, names)
}

// ImportCustomers creates customers from CSV. Rows with an ID that already
// exists update that customer instead.
func (s *ExportService) ImportCustomers(ctx context.Context, r io.Reader) (csvio.ImportResult, error) {
	records, res, err := csvio.ReadCustomers(r)
	if err != nil {
		return res, err
	}
	for _, rec := range records {
		c := rec.Customer
		if c.ID != "" {
			if _, err := s.store.GetCustomer(ctx, c.ID); err == nil {
				if _, err := s.customers.Update(ctx, c); err != nil {
					res.Fail(rec.Line, err)
					continue
				}
				if c.HasSnapshot() {
					if _, err := s.customers.SetBalanceSnapshot(ctx, c.ID, c.PreviousBalance, *c.BalanceAsOf); err != nil {
						res.Fail(rec.Line, err)
						continue
					}
				}
				res.Imported++
				continue
			}
		}
		if _, err := s.customers.Create(ctx, c); err != nil {
			res.Fail(rec.Line, err)
			continue
		}
		res.Imported++
	}
	s.logImport(ctx, "customers", res)
	return res, nil
}

// ImportDeliveries upserts deliveries from CSV. The customer column is
// matched against IDs first, then case-insensitively against names.
func (s *ExportService) ImportDeliveries(ctx context.Context, r io.Reader) (csvio.ImportResult, error) {
	records, res, err := csvio.ReadDeliveries(r)
	if err != nil {
		return res, err
	}
	cs, err := s.store.ListCustomers(ctx)
	if err != nil {
		return res, fmt.Errorf("list customers: %w", err)
	}
	byID := make(map[string]string, len(cs))
	byName := make(map[string]string, len(cs))
	for _, c := range cs {
		byID[c.ID] = c.ID
		byName[strings.ToLower(c.Name)] = c.ID
	}

	for _, rec := range records {
		id, ok := byID[rec.CustomerRef]
		if !ok {
			id, ok = byName[strings.ToLower(rec.CustomerRef)]
		}
		if !ok {
			res.Fail(rec.Line, fmt.Errorf("unknown customer %q", rec.CustomerRef))
			continue
		}
		if err := s.deliveries.record(ctx, id, rec.Date, rec.Quantity); err != nil {
			res.Fail(rec.Line, err)
			continue
		}
		res.Imported++
	}
	if res.Imported > 0 {
		s.billing.Invalidate(ctx)
	}
	s.logImport(ctx, "deliveries", res)
	return res, nil
}

func (s *ExportService) logImport(ctx context.Context, what string, res csvio.ImportResult) {
	s.logger.InfoContext(ctx, "CSV import finished",
		"kind", what,
		applog.FieldOperation, applog.OpImport,
		"imported", res.Imported,
		"skipped", res.Skipped)
}

package services

import (
	"context"
	"fmt"

	"ssfarm/internal/billing"
	"ssfarm/internal/export/pdf"
	"ssfarm/internal/export/whatsapp"
	applog "ssfarm/internal/log"
)

// ChannelWhatsApp is the share channel recorded for wa.me links.
const ChannelWhatsApp = "whatsapp"

type (
	// SharePublisher announces that a bill was sent; implemented by the AMQP client.
	SharePublisher interface {
		PublishBillShared(ctx context.Context, customerID string, year, month int, channel string) error
	}

	FarmProfile struct {
		Name   string
		Phone  string
		UPIVPA string
	}

	ShareResult struct {
		Bill       BillDetail
		Message    string
		Link       string
		UPIPayload string
	}
)

// ShareService turns bills into WhatsApp messages, UPI payloads and PDFs.
type ShareService struct {
	billing   *BillingService
	publisher SharePublisher
	pdf       *pdf.Client
	farm      FarmProfile
	logger    *applog.Logger
}

// NewShareService creates a share service; publisher and pdfClient may be nil.
func NewShareService(billingSvc *BillingService, publisher SharePublisher, pdfClient *pdf.Client, farm FarmProfile) *ShareService {
	return &ShareService{
		billing:   billingSvc,
		publisher: publisher,
		pdf:       pdfClient,
		farm:      farm,
		logger:    applog.ForComponent(applog.ComponentExport),
	}
}

// Share prepares the WhatsApp message and links for a customer's month.
// It has no side effects; MarkShared records that the bill was sent.
func (s *ShareService) Share(ctx context.Context, customerID string, p billing.Period) (ShareResult, error) {
	b, err := s.billing.Bill(ctx, customerID, p)
	if err != nil {
		return ShareResult{}, err
	}

	msg := whatsapp.FormatBillMessage(whatsapp.Bill{
		Customer: b.Customer,
		Period:   b.Period,
		Summary:  b.Summary,
		Items:    b.Items,
		Payments: b.Payments,
	}, whatsapp.Options{FarmName: s.farm.Name, FarmPhone: s.farm.Phone, UPIVPA: s.farm.UPIVPA})

	return ShareResult{
		Bill:       b,
		Message:    msg,
		Link:       whatsapp.Link(b.Customer.Phone, msg),
		UPIPayload: s.upiPayload(b),
	}, nil
}

// MarkShared records that the operator sent a customer's bill over channel
// and publishes the share event when a publisher is configured.
func (s *ShareService) MarkShared(ctx context.Context, customerID string, p billing.Period, channel string) error {
	if _, err := s.billing.store.GetCustomer(ctx, customerID); err != nil {
		return fmt.Errorf("get customer: %w", err)
	}
	if channel == "" {
		channel = ChannelWhatsApp
	}
	if s.publisher != nil {
		if err := s.publisher.PublishBillShared(ctx, customerID, p.Year, int(p.Month), channel); err != nil {
			// The bill went out anyway; the event is informational.
			s.logger.WarnContext(ctx, "Failed to publish share event",
				applog.FieldCustomerID, customerID,
				applog.FieldError, err)
		}
	}
	s.logger.InfoContext(ctx, "Bill shared",
		applog.FieldCustomerID, customerID,
		applog.FieldPeriod, p.String(),
		"channel", channel,
		applog.FieldOperation, applog.OpShare)
	return nil
}

// PDF renders the bill through Gotenberg. Returns pdf.ErrDisabled when no
// Gotenberg URL is configured.
func (s *ShareService) PDF(ctx context.Context, customerID string, p billing.Period) ([]byte, BillDetail, error) {
	b, err := s.billing.Bill(ctx, customerID, p)
	if err != nil {
		return nil, BillDetail{}, err
	}
	out, err := s.pdf.RenderBill(ctx, s.Document(b))
	if err != nil {
		return nil, b, fmt.Errorf("render bill pdf: %w", err)
	}
	return out, b, nil
}

// BillHTML renders the printable bill without converting it.
func (s *ShareService) BillHTML(ctx context.Context, customerID string, p billing.Period) ([]byte, error) {
	b, err := s.billing.Bill(ctx, customerID, p)
	if err != nil {
		return nil, err
	}
	return pdf.RenderBillHTML(s.Document(b))
}

func (s *ShareService) Document(b BillDetail) pdf.BillDocument {
	return pdf.BillDocument{
		FarmName:   s.farm.Name,
		FarmPhone:  s.farm.Phone,
		Customer:   b.Customer,
		Period:     b.Period,
		Summary:    b.Summary,
		Items:      b.Items,
		Payments:   b.Payments,
		UPIPayload: s.upiPayload(b),
	}
}

func (s *ShareService) upiPayload(b BillDetail) string {
	if s.farm.UPIVPA == "" {
		return ""
	}
	note := fmt.Sprintf("Milk bill %s %s", b.Period.String(), b.Customer.Name)
	return whatsapp.UPIPayload(s.farm.UPIVPA, s.farm.Name, b.Summary.ClosingBalance, note)
}
